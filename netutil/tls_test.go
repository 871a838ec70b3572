package netutil_test

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/modarc-dev/modarc/netutil"
)

func Test_TLSConfig_MinVersion(t *testing.T) {
	cfg := netutil.TLSConfig()

	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.False(t, cfg.InsecureSkipVerify)
}

func Test_TLSConfig_AEADSuitesOnly(t *testing.T) {
	cfg := netutil.TLSConfig()

	assert.NotEmpty(t, cfg.CipherSuites)
	for _, id := range cfg.CipherSuites {
		name := tls.CipherSuiteName(id)
		assert.NotContains(t, name, "CBC", "cipher suite %s is not AEAD", name)
	}
}
