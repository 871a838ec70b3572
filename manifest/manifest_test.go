package manifest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modarc-dev/modarc/entities"
)

func TestDecode(t *testing.T) {
	data := []byte(`modules:
  - name: org.example.web
    version: 1.4.0
  - name: org.example.native
    version: 2.0.0
    platform: linux
    arch: amd64
    path: native/linux
`)

	doc, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, doc.Modules, 2)

	ref, err := doc.Modules[0].Ref()
	require.NoError(t, err)
	assert.Equal(t, "org.example.web@1.4.0", ref.String())
	assert.Empty(t, doc.Modules[0].LayoutPath())

	bound, err := doc.Modules[1].Ref()
	require.NoError(t, err)
	assert.True(t, bound.IsPlatformBound())
	platform, _ := bound.Platform()
	assert.Equal(t, "linux-amd64", platform.String())
	assert.Equal(t, "native/linux", doc.Modules[1].LayoutPath())
}

func TestDecodeEmptyManifest(t *testing.T) {
	doc, err := Decode([]byte("modules: []\n"))
	require.NoError(t, err)
	assert.Empty(t, doc.Modules)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "NotYAML", data: ": : :"},
		{name: "MissingVersion", data: "modules:\n  - name: web\n"},
		{name: "MissingName", data: "modules:\n  - version: 1.0.0\n"},
		{name: "UnknownField", data: "modules:\n  - name: web\n    version: 1.0.0\n    checksum: abc\n"},
		{name: "BadVersion", data: "modules:\n  - name: web\n    version: latest-and-greatest\n"},
		{name: "PlatformWithoutArch", data: "modules:\n  - name: web\n    version: 1.0.0\n    platform: linux\n"},
		{name: "ArchWithoutPlatform", data: "modules:\n  - name: web\n    version: 1.0.0\n    arch: amd64\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, entities.ErrMalformed), "want ErrMalformed, got %v", err)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc := &Document{Modules: []Entry{
		{Name: "web", Version: "1.0.0"},
		{Name: "native", Version: "2.1.0", Platform: "darwin", Arch: "arm64"},
	}}

	data, err := Encode(doc)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Modules, got.Modules)
}
