package services

import (
	"path"
	"path/filepath"

	"github.com/modarc-dev/modarc/archive"
	"github.com/modarc-dev/modarc/descriptor"
	"github.com/modarc-dev/modarc/manifest"
	"github.com/modarc-dev/modarc/netutil"
	"github.com/modarc-dev/modarc/values"
)

// Candidate is one location an artifact may live at, in probe order.
type Candidate struct {
	Location   string
	Compressed bool
}

// DefaultLayoutPath is the repository-relative directory of a module's
// resources when the manifest names no explicit path: name/version, extended
// by os-arch for platform-bound modules.
func DefaultLayoutPath(ref values.ModuleRef) string {
	p := path.Join(ref.Name(), ref.Version().Original())
	if platform, ok := ref.Platform(); ok {
		p = path.Join(p, platform.String())
	}
	return p
}

// CandidateURLs returns the artifact URLs to probe for a module, most
// preferred first: the compressed archive, then the plain one. Both carry the
// platform suffix iff the reference is platform-bound. There are no other
// candidates; the first success ends the probe.
func CandidateURLs(codebase string, ref values.ModuleRef, layoutPath string) ([]Candidate, error) {
	if layoutPath == "" {
		layoutPath = DefaultLayoutPath(ref)
	}
	candidates := make([]Candidate, 0, 2)
	for _, compressed := range []bool{true, false} {
		u, err := netutil.JoinURL(codebase, layoutPath, archive.FileName(ref, compressed))
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, Candidate{Location: u, Compressed: compressed})
	}
	return candidates, nil
}

// CandidatePaths is CandidateURLs for a directory-backed repository.
func CandidatePaths(dir string, ref values.ModuleRef, layoutPath string) []Candidate {
	if layoutPath == "" {
		layoutPath = DefaultLayoutPath(ref)
	}
	return []Candidate{
		{Location: filepath.Join(dir, filepath.FromSlash(layoutPath), archive.FileName(ref, true)), Compressed: true},
		{Location: filepath.Join(dir, filepath.FromSlash(layoutPath), archive.FileName(ref, false)), Compressed: false},
	}
}

// DescriptorURL returns the published descriptor URL for a module.
func DescriptorURL(codebase string, ref values.ModuleRef, layoutPath string) (string, error) {
	if layoutPath == "" {
		layoutPath = DefaultLayoutPath(ref)
	}
	return netutil.JoinURL(codebase, layoutPath, descriptor.WellKnownName)
}

// ManifestURL returns the repository manifest URL for a codebase.
func ManifestURL(codebase string) (string, error) {
	return netutil.JoinURL(codebase, manifest.WellKnownName)
}
