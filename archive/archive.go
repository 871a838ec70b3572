// Package archive reads and writes module archives.
//
// A module archive is a tar stream, gzip-wrapped in its compressed form,
// carrying the module's files plus the embedded descriptor at a fixed entry
// path. The embedded descriptor is what integrity verification compares
// against the published one.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/values"
)

const (
	// DescriptorEntry is the archive entry holding the embedded descriptor.
	DescriptorEntry = "MODULE-INF/MODULE.METADATA"

	// Extension is the plain archive filename extension.
	Extension = ".mar"
	// CompressedExtension is the gzip-compressed archive filename extension.
	CompressedExtension = ".mar.gz"

	// maxDescriptorSize bounds the embedded descriptor entry.
	maxDescriptorSize = 4 << 20
)

// FileName returns the archive filename for a reference, carrying the
// platform suffix iff the reference is platform-bound.
func FileName(ref values.ModuleRef, compressed bool) string {
	name := fmt.Sprintf("%s-%s", ref.Name(), ref.Version().Original())
	if platform, ok := ref.Platform(); ok {
		name += "-" + platform.String()
	}
	if compressed {
		return name + CompressedExtension
	}
	return name + Extension
}

// ExtractDescriptor scans an archive stream for the embedded descriptor and
// returns its bytes.
func ExtractDescriptor(r io.Reader, compressed bool) (_ []byte, err error) {
	if compressed {
		zr, zerr := gzip.NewReader(r)
		if zerr != nil {
			return nil, &entities.FormatError{Source: "archive", Reason: "not a gzip stream", Err: zerr}
		}
		defer func() {
			err = errors.Join(err, zr.Close())
		}()
		r = zr
	}

	tr := tar.NewReader(r)
	for {
		hdr, terr := tr.Next()
		if terr == io.EOF {
			break
		}
		if terr != nil {
			return nil, &entities.FormatError{Source: "archive", Reason: "reading tar stream", Err: terr}
		}
		if strings.Contains(hdr.Name, "..") {
			return nil, &entities.FormatError{Source: "archive", Reason: fmt.Sprintf("entry %q escapes the archive root", hdr.Name)}
		}
		if hdr.Typeflag != tar.TypeReg || hdr.Name != DescriptorEntry {
			continue
		}
		if hdr.Size > maxDescriptorSize {
			return nil, &entities.FormatError{Source: "archive", Reason: fmt.Sprintf("embedded descriptor exceeds %d bytes", maxDescriptorSize)}
		}
		data, rerr := io.ReadAll(io.LimitReader(tr, maxDescriptorSize))
		if rerr != nil {
			return nil, &entities.FormatError{Source: "archive", Reason: "reading embedded descriptor", Err: rerr}
		}
		return data, nil
	}
	return nil, &entities.FormatError{Source: "archive", Reason: fmt.Sprintf("no %s entry", DescriptorEntry)}
}

// Build writes a module archive containing the descriptor and the given
// files, keyed by entry path. Entries are written in sorted order so equal
// inputs produce equal archives.
func Build(w io.Writer, desc []byte, files map[string][]byte, compressed bool) (err error) {
	if compressed {
		zw := gzip.NewWriter(w)
		defer func() {
			err = errors.Join(err, zw.Close())
		}()
		w = zw
	}

	tw := tar.NewWriter(w)
	defer func() {
		err = errors.Join(err, tw.Close())
	}()

	if err := writeEntry(tw, DescriptorEntry, desc); err != nil {
		return err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writeEntry(tw, name, files[name]); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
