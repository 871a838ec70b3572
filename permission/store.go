package permission

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/modarc-dev/modarc/values"
)

// Grant records one persisted permission: an action, optionally narrowed to a
// resource pattern. An empty resource grants the action everywhere.
type Grant struct {
	Action   string `yaml:"action"`
	Resource string `yaml:"resource,omitempty"`
}

type grantFile struct {
	Grants []Grant `yaml:"grants"`
}

type storeConfig struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func defaultStoreConfig() storeConfig {
	return storeConfig{
		path:     defaultGrantsPath(),
		dirPerm:  0o755,
		filePerm: 0o600,
	}
}

func defaultGrantsPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, "modarc", "grants.yaml")
}

// StoreOption configures a Store instance.
type StoreOption func(*storeConfig)

// WithPath sets the path to the grants file.
func WithPath(path string) StoreOption {
	return func(c *storeConfig) {
		if path != "" {
			c.path = path
		}
	}
}

// WithFilePermissions sets the mode of the grants file.
func WithFilePermissions(perm os.FileMode) StoreOption {
	return func(c *storeConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the mode of created parent directories.
func WithDirPermissions(perm os.FileMode) StoreOption {
	return func(c *storeConfig) {
		c.dirPerm = perm
	}
}

// Store persists grants in a YAML file, by default
// ~/.config/modarc/grants.yaml with mode 0600.
type Store struct {
	config storeConfig
}

// NewStore creates a grant store with the given options.
func NewStore(opts ...StoreOption) *Store {
	cfg := defaultStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Store{config: cfg}
}

// Load reads all persisted grants. A missing file is an empty store.
func (s *Store) Load() ([]Grant, error) {
	data, err := os.ReadFile(s.config.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading grant store: %w", err)
	}

	var doc grantFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing grant store: %w", err)
	}
	return doc.Grants, nil
}

// Save replaces the persisted grants, deduplicated and in stable order.
func (s *Store) Save(grants []Grant) error {
	clean := slices.Clone(grants)
	slices.SortFunc(clean, func(a, b Grant) int {
		if c := strings.Compare(a.Action, b.Action); c != 0 {
			return c
		}
		return strings.Compare(a.Resource, b.Resource)
	})
	clean = slices.Compact(clean)

	data, err := yaml.Marshal(grantFile{Grants: clean})
	if err != nil {
		return fmt.Errorf("marshaling grants: %w", err)
	}

	dir := filepath.Dir(s.config.path)
	if err := os.MkdirAll(dir, s.config.dirPerm); err != nil {
		return fmt.Errorf("creating grant store directory: %w", err)
	}
	if err := os.WriteFile(s.config.path, data, s.config.filePerm); err != nil {
		return fmt.Errorf("writing grant store: %w", err)
	}
	return nil
}

// Add persists one more grant.
func (s *Store) Add(grant Grant) error {
	grants, err := s.Load()
	if err != nil {
		return err
	}
	return s.Save(append(grants, grant))
}

// Granted reports whether a persisted grant covers the action and resource.
func (s *Store) Granted(action values.Action, resource string) (bool, error) {
	grants, err := s.Load()
	if err != nil {
		return false, err
	}
	for _, grant := range grants {
		if grant.Action != string(action) {
			continue
		}
		if matchResource(grant.Resource, resource) {
			return true, nil
		}
	}
	return false, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.config.path
}
