package policy

import (
	"fmt"
	"sync"
)

// VisibilityFactory constructs a visibility policy.
type VisibilityFactory func() (VisibilityPolicy, error)

// ImportOverrideFactory constructs an import override policy.
type ImportOverrideFactory func() (ImportOverridePolicy, error)

// FactorySet is a dynamic registry of named policy constructors. Policies are
// configured by name (environment or static configuration); the set maps those
// names back to code.
type FactorySet struct {
	mu         sync.RWMutex
	visibility map[string]VisibilityFactory
	overrides  map[string]ImportOverrideFactory
}

// NewFactorySet creates an empty registry.
func NewFactorySet() *FactorySet {
	return &FactorySet{
		visibility: make(map[string]VisibilityFactory),
		overrides:  make(map[string]ImportOverrideFactory),
	}
}

// RegisterVisibility adds a named visibility policy constructor.
func (s *FactorySet) RegisterVisibility(name string, factory VisibilityFactory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("visibility policy registration needs a name and a factory")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.visibility[name]; exists {
		return fmt.Errorf("visibility policy %q is already registered", name)
	}
	s.visibility[name] = factory
	return nil
}

// MustRegisterVisibility is RegisterVisibility panicking on error. Intended
// for static initialization.
func (s *FactorySet) MustRegisterVisibility(name string, factory VisibilityFactory) {
	if err := s.RegisterVisibility(name, factory); err != nil {
		panic(err)
	}
}

// RegisterImportOverride adds a named import override policy constructor.
func (s *FactorySet) RegisterImportOverride(name string, factory ImportOverrideFactory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("import override policy registration needs a name and a factory")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.overrides[name]; exists {
		return fmt.Errorf("import override policy %q is already registered", name)
	}
	s.overrides[name] = factory
	return nil
}

// MustRegisterImportOverride is RegisterImportOverride panicking on error.
func (s *FactorySet) MustRegisterImportOverride(name string, factory ImportOverrideFactory) {
	if err := s.RegisterImportOverride(name, factory); err != nil {
		panic(err)
	}
}

// NewVisibility builds the visibility policy registered under name.
func (s *FactorySet) NewVisibility(name string) (VisibilityPolicy, error) {
	s.mu.RLock()
	factory, ok := s.visibility[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no visibility policy registered under %q", name)
	}
	return factory()
}

// NewImportOverride builds the import override policy registered under name.
func (s *FactorySet) NewImportOverride(name string) (ImportOverridePolicy, error) {
	s.mu.RLock()
	factory, ok := s.overrides[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no import override policy registered under %q", name)
	}
	return factory()
}
