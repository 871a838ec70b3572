package repository

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/modarc-dev/modarc/archive"
	"github.com/modarc-dev/modarc/content"
	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/policy"
	"github.com/modarc-dev/modarc/ports"
)

// testDescriptor renders a minimal module descriptor.
func testDescriptor(name, version string) []byte {
	return fmt.Appendf(nil, "name: %s\nversion: %s\n", name, version)
}

// testPlatformDescriptor renders a platform-bound module descriptor.
func testPlatformDescriptor(name, version, platform string) []byte {
	return fmt.Appendf(nil, "name: %s\nversion: %s\nplatform: %s\n", name, version, platform)
}

// testArchive builds an archive embedding the descriptor.
func testArchive(t *testing.T, desc []byte, compressed bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := archive.Build(&buf, desc, map[string][]byte{"lib/module.bin": {0x7f, 0x45, 0x4c, 0x46}}, compressed); err != nil {
		t.Fatalf("building test archive: %v", err)
	}
	return buf.Bytes()
}

// readContent drains a content handle.
func readContent(t *testing.T, c content.Content) []byte {
	t.Helper()
	r, err := c.ReadCloser()
	if err != nil {
		t.Fatalf("opening content: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading content: %v", err)
	}
	return data
}

// refStrings projects definitions onto their reference strings.
func refStrings(defs []*entities.Definition) []string {
	out := make([]string, len(defs))
	for i, def := range defs {
		out[i] = def.Ref().String()
	}
	return out
}

// hideEverything is a visibility policy that exposes nothing.
type hideEverything struct{}

func (hideEverything) Visible(*entities.Definition) bool { return false }

// hidingRegistry builds a policy registry with everything hidden.
func hidingRegistry(t *testing.T) *policy.Registry {
	t.Helper()
	reg := policy.NewRegistry(policy.WithLogger(ports.NewTestLogger()))
	if err := reg.SetVisibility(hideEverything{}); err != nil {
		t.Fatalf("installing visibility policy: %v", err)
	}
	return reg
}
