package content

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
)

func TestBytesHandle(t *testing.T) {
	data := []byte("archive bytes")
	b := FromBytes(data)

	r, err := b.ReadCloser()
	if err != nil {
		t.Fatalf("ReadCloser() error = %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	r.Close()
	if string(got) != string(data) {
		t.Errorf("read %q, want %q", got, data)
	}
	if b.Size() != int64(len(data)) {
		t.Errorf("Size() = %d", b.Size())
	}
	dig, ok := b.Digest()
	if !ok || dig != digest.FromBytes(data) {
		t.Errorf("Digest() = %v, %v", dig, ok)
	}

	// A second reader starts from the beginning again.
	r2, err := b.ReadCloser()
	if err != nil {
		t.Fatalf("second ReadCloser() error = %v", err)
	}
	defer r2.Close()
	got2, _ := io.ReadAll(r2)
	if string(got2) != string(data) {
		t.Error("second reader should see the full contents")
	}
}

func TestFileHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mod.mar")
	data := []byte("file backed archive")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	f := FromFile(path)
	if f.Size() != int64(len(data)) {
		t.Errorf("Size() = %d, want %d", f.Size(), len(data))
	}
	dig, ok := f.Digest()
	if !ok || dig != digest.FromBytes(data) {
		t.Errorf("Digest() = %v, %v", dig, ok)
	}

	r, err := f.ReadCloser()
	if err != nil {
		t.Fatalf("ReadCloser() error = %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != string(data) {
		t.Errorf("read %q", got)
	}
}

func TestFileHandleMissing(t *testing.T) {
	f := FromFile(filepath.Join(t.TempDir(), "absent.mar"))
	if f.Size() != SizeUnknown {
		t.Errorf("Size() = %d, want SizeUnknown", f.Size())
	}
	if _, ok := f.Digest(); ok {
		t.Error("Digest() should fail for a missing file")
	}
	if _, err := f.ReadCloser(); err == nil {
		t.Error("ReadCloser() should fail for a missing file")
	}
}
