package cache

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"

	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/values"
)

func TestStore(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ref := values.MustParseRef("org.example.http@1.4.0")
	data := []byte("archive bytes for org.example.http")

	t.Run("Put", func(t *testing.T) {
		path, dig, err := store.Put(ref, true, bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if want := digest.FromBytes(data); dig != want {
			t.Errorf("digest = %s, want %s", dig, want)
		}

		wantPath := filepath.Join(store.Root(), "org.example.http", "1.4.0", "org.example.http-1.4.0.mar.gz")
		if path != wantPath {
			t.Errorf("path = %s, want %s", path, wantPath)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading stored archive: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Error("stored archive differs from input")
		}
	})

	t.Run("PutLeavesNoTempFiles", func(t *testing.T) {
		entries, err := os.ReadDir(filepath.Join(store.Root(), "org.example.http", "1.4.0"))
		if err != nil {
			t.Fatalf("reading version directory: %v", err)
		}
		for _, e := range entries {
			if e.Name() != "org.example.http-1.4.0.mar.gz" {
				t.Errorf("unexpected entry %s", e.Name())
			}
		}
	})

	t.Run("Open", func(t *testing.T) {
		handle, err := store.Open(ref, true)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		r, err := handle.ReadCloser()
		if err != nil {
			t.Fatalf("ReadCloser failed: %v", err)
		}
		defer r.Close()

		if handle.Size() != int64(len(data)) {
			t.Errorf("Size = %d, want %d", handle.Size(), len(data))
		}
	})

	t.Run("OpenMiss", func(t *testing.T) {
		if _, err := store.Open(ref, false); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("uncompressed archive err = %v, want fs.ErrNotExist", err)
		}
		missing := values.MustParseRef("org.example.gone@1.0.0")
		if _, err := store.Open(missing, true); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("missing module err = %v, want fs.ErrNotExist", err)
		}
	})

	t.Run("PlatformLayout", func(t *testing.T) {
		platform := values.NewPlatform("linux", "arm64")
		bound, err := values.NewPlatformModuleRef("org.example.native", ref.Version(), platform)
		if err != nil {
			t.Fatalf("NewPlatformModuleRef failed: %v", err)
		}

		path, _, err := store.Put(bound, false, bytes.NewReader(data))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		want := filepath.Join(store.Root(), "org.example.native", "1.4.0", "linux-arm64", "org.example.native-1.4.0-linux-arm64.mar")
		if path != want {
			t.Errorf("path = %s, want %s", path, want)
		}
	})

	t.Run("List", func(t *testing.T) {
		refs, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(refs) != 2 {
			t.Fatalf("List returned %d refs, want 2", len(refs))
		}
		if !refs[0].Equal(ref) {
			t.Errorf("refs[0] = %s, want %s", refs[0], ref)
		}
		if refs[1].Name() != "org.example.native" || !refs[1].IsPlatformBound() {
			t.Errorf("refs[1] = %s, want platform-bound org.example.native", refs[1])
		}
	})

	t.Run("ListSkipsStrayFiles", func(t *testing.T) {
		stray := filepath.Join(store.Root(), "not-a-version", "stray.mar")
		if err := os.MkdirAll(filepath.Dir(stray), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(stray, []byte("x"), 0o640); err != nil {
			t.Fatal(err)
		}

		refs, err := store.List(context.Background())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(refs) != 2 {
			t.Errorf("List returned %d refs, want 2", len(refs))
		}
	})

	t.Run("Remove", func(t *testing.T) {
		if err := store.Remove(ref); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if _, err := store.Open(ref, true); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("archive still present after Remove: %v", err)
		}
	})
}

func TestStoreRejectsTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	hostile, err := values.NewModuleRef("..", values.MustParseRef("x@1.0.0").Version())
	if err != nil {
		t.Fatalf("NewModuleRef failed: %v", err)
	}

	if _, err := store.Path(hostile, true); !errors.Is(err, entities.ErrInvalidArgument) {
		t.Errorf("Path err = %v, want ErrInvalidArgument", err)
	}
	if _, _, err := store.Put(hostile, true, bytes.NewReader(nil)); !errors.Is(err, entities.ErrInvalidArgument) {
		t.Errorf("Put err = %v, want ErrInvalidArgument", err)
	}
}

func TestStoreDefaultPermissions(t *testing.T) {
	root := filepath.Join(t.TempDir(), "archives")
	store, err := NewStore(root, WithFilePermissions(0o600))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	ref := values.MustParseRef("org.example.app@2.0.0")
	path, _, err := store.Put(ref, true, bytes.NewReader([]byte("data")))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("archive mode = %o, want 0600", perm)
	}
}
