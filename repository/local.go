package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/modarc-dev/modarc/archive"
	"github.com/modarc-dev/modarc/content"
	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/services"
	"github.com/modarc-dev/modarc/values"
)

const defaultScanPattern = "*.metadata"

// Warning records a descriptor file skipped during a scan. Malformed entries
// never abort the scan; they surface here and in the log.
type Warning struct {
	Path string
	Err  error
}

// Local serves modules from a filesystem directory. Descriptor files matching
// the scan pattern become definitions; archives are probed next to their
// descriptor and under the default layout.
type Local struct {
	base
	dir       string
	pattern   string
	recursive bool
	verifier  *services.IntegrityVerifier

	mu       sync.RWMutex
	defs     []*entities.Definition
	warnings []Warning
	sources  map[string]string
}

// NewLocal creates a directory-backed repository and runs the initial scan.
func NewLocal(ctx context.Context, name, dir string, opts ...Option) (*Local, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(cfg)
	}

	if dir == "" {
		return nil, &entities.InvalidArgumentError{Arg: "dir", Reason: "empty"}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("local repository source: %w", err)
	}
	if !info.IsDir() {
		return nil, &entities.InvalidArgumentError{Arg: "dir", Reason: fmt.Sprintf("%s is not a directory", dir)}
	}

	pattern := cfg.setting(ConfigScanPattern, defaultScanPattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, &entities.InvalidArgumentError{Arg: ConfigScanPattern, Reason: fmt.Sprintf("invalid glob %q", pattern)}
	}

	b, err := newBase(name, dir, cfg)
	if err != nil {
		return nil, err
	}

	l := &Local{
		base:      b,
		dir:       dir,
		pattern:   pattern,
		recursive: cfg.settingBool(ConfigScanRecursive, false),
		verifier:  services.NewIntegrityVerifier(services.WithIntegrityLogger(cfg.logger)),
	}
	if err := l.Rescan(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Rescan re-reads the directory, replacing the definition set and warnings.
func (l *Local) Rescan(ctx context.Context) error {
	pattern := l.pattern
	if l.recursive {
		pattern = "**/" + pattern
	}

	matches, err := doublestar.Glob(os.DirFS(l.dir), pattern)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", l.dir, err)
	}
	slices.Sort(matches)

	var defs []*entities.Definition
	var warnings []Warning
	sources := make(map[string]string)

	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(l.dir, filepath.FromSlash(match))

		data, err := os.ReadFile(path)
		if err != nil {
			warnings = append(warnings, Warning{Path: path, Err: err})
			l.logger.Warn("skipping unreadable descriptor", "path", path, "error", err)
			continue
		}
		def, err := entities.NewDefinition(data, nil, l.id, true)
		if err != nil {
			warnings = append(warnings, Warning{Path: path, Err: err})
			l.logger.Warn("skipping malformed descriptor", "path", path, "error", err)
			continue
		}
		defs = append(defs, def)
		sources[def.Ref().String()] = filepath.Dir(path)
	}
	orderDefinitions(defs)

	l.mu.Lock()
	l.defs = defs
	l.warnings = warnings
	l.sources = sources
	l.mu.Unlock()

	l.logger.Debug("local repository scanned",
		"name", l.name,
		"dir", l.dir,
		"modules", len(defs),
		"warnings", len(warnings))
	return nil
}

// Warnings returns the entries skipped by the last scan.
func (l *Local) Warnings() []Warning {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.warnings)
}

// List returns the definitions found by the last scan.
func (l *Local) List(context.Context) ([]*entities.Definition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.defs), nil
}

// Find searches the delegation chain.
func (l *Local) Find(ctx context.Context, query values.Query) ([]*entities.Definition, error) {
	return l.delegatedFind(ctx, l, query)
}

// Materialize probes the archive candidates for a definition, compressed
// before plain, and verifies the embedded descriptor before handing out the
// file. A verification mismatch is fatal, not a reason to try the next
// candidate.
func (l *Local) Materialize(ctx context.Context, def *entities.Definition) (content.Content, error) {
	if err := l.owns(def); err != nil {
		return nil, err
	}

	published, err := def.Descriptor(ctx)
	if err != nil {
		return nil, err
	}

	var attempts []entities.ProbeAttempt
	for _, cand := range l.candidates(def.Ref()) {
		f, err := os.Open(cand.Location)
		if err != nil {
			attempts = append(attempts, entities.ProbeAttempt{Location: cand.Location, Err: err})
			continue
		}
		embedded, err := archive.ExtractDescriptor(f, cand.Compressed)
		f.Close()
		if err != nil {
			attempts = append(attempts, entities.ProbeAttempt{Location: cand.Location, Err: err})
			continue
		}

		if err := l.verifier.Verify(def.Ref(), published, embedded); err != nil {
			return nil, err
		}
		l.logger.Debug("module archive located", "ref", def.Ref().String(), "path", cand.Location)
		return content.FromFile(cand.Location), nil
	}
	return nil, &entities.ProbeError{Ref: def.Ref(), Attempts: attempts}
}

// candidates lists the archive locations to probe: next to the descriptor
// file when the ref came from a scan, and under the default layout. All
// compressed candidates come first.
func (l *Local) candidates(ref values.ModuleRef) []services.Candidate {
	l.mu.RLock()
	adjacent := l.sources[ref.String()]
	l.mu.RUnlock()

	layout := services.CandidatePaths(l.dir, ref, "")

	var cands []services.Candidate
	for _, compressed := range []bool{true, false} {
		if adjacent != "" {
			cands = append(cands, services.Candidate{
				Location:   filepath.Join(adjacent, archive.FileName(ref, compressed)),
				Compressed: compressed,
			})
		}
		for _, c := range layout {
			if c.Compressed == compressed {
				cands = append(cands, c)
			}
		}
	}

	seen := make(map[string]bool, len(cands))
	deduped := cands[:0]
	for _, c := range cands {
		if seen[c.Location] {
			continue
		}
		seen[c.Location] = true
		deduped = append(deduped, c)
	}
	return deduped
}

// Close is a no-op; the directory handle is not held open.
func (l *Local) Close() error {
	return nil
}

var _ ports.Repository = (*Local)(nil)
