package policy

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/ports"
	"github.com/modarc-dev/modarc/values"
)

// hideAll is the opposite of the builtin default, so tests can tell which
// policy a slot resolved to.
type hideAll struct{}

func (hideAll) Visible(*entities.Definition) bool { return false }

func TestRegistryResolvesBuiltinDefaults(t *testing.T) {
	r := NewRegistry(WithLogger(ports.NewTestLogger()))

	if _, ok := r.Visibility().(VisibleAll); !ok {
		t.Errorf("Visibility() = %T, want VisibleAll", r.Visibility())
	}
	if _, ok := r.ImportOverride().(Passthrough); !ok {
		t.Errorf("ImportOverride() = %T, want Passthrough", r.ImportOverride())
	}
}

func TestRegistryResolvesConfiguredName(t *testing.T) {
	set := NewFactorySet()
	set.MustRegisterVisibility("hidden", func() (VisibilityPolicy, error) {
		return hideAll{}, nil
	})

	r := NewRegistry(
		WithFactorySet(set),
		WithSource(StaticSource{Overrides: map[Kind]string{KindVisibility: "hidden"}}),
		WithLogger(ports.NewTestLogger()),
	)

	if _, ok := r.Visibility().(hideAll); !ok {
		t.Errorf("Visibility() = %T, want hideAll", r.Visibility())
	}
	if _, ok := r.ImportOverride().(Passthrough); !ok {
		t.Errorf("ImportOverride() = %T, want builtin Passthrough", r.ImportOverride())
	}
}

func TestRegistryResolvesExactlyOnce(t *testing.T) {
	var calls atomic.Int32
	set := NewFactorySet()
	set.MustRegisterVisibility("counted", func() (VisibilityPolicy, error) {
		calls.Add(1)
		return hideAll{}, nil
	})

	r := NewRegistry(
		WithFactorySet(set),
		WithSource(StaticSource{Overrides: map[Kind]string{KindVisibility: "counted"}}),
		WithLogger(ports.NewTestLogger()),
	)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Visibility()
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("factory ran %d times, want 1", got)
	}
}

func TestRegistrySwallowsLoadFailures(t *testing.T) {
	set := NewFactorySet()
	set.MustRegisterVisibility("broken", func() (VisibilityPolicy, error) {
		return nil, errors.New("no such provider")
	})

	source := StaticSource{Overrides: map[Kind]string{KindVisibility: "broken"}}
	r := NewRegistry(WithFactorySet(set), WithSource(source), WithLogger(ports.NewTestLogger()))

	if _, ok := r.Visibility().(VisibleAll); !ok {
		t.Fatalf("Visibility() = %T, want VisibleAll fallback", r.Visibility())
	}

	// The failed resolution is final. Repairing the configuration afterwards
	// must not change the slot.
	source.Overrides[KindVisibility] = "hidden"
	set.MustRegisterVisibility("hidden", func() (VisibilityPolicy, error) {
		return hideAll{}, nil
	})
	if _, ok := r.Visibility().(VisibleAll); !ok {
		t.Errorf("Visibility() = %T after config repair, want cached VisibleAll", r.Visibility())
	}
}

func TestRegistryUnknownNameFallsBack(t *testing.T) {
	r := NewRegistry(
		WithSource(StaticSource{Overrides: map[Kind]string{KindImportOverride: "nonexistent"}}),
		WithLogger(ports.NewTestLogger()),
	)

	if _, ok := r.ImportOverride().(Passthrough); !ok {
		t.Errorf("ImportOverride() = %T, want Passthrough fallback", r.ImportOverride())
	}
}

func TestRegistryDefaultNameUsedWithoutOverride(t *testing.T) {
	set := NewFactorySet()
	set.MustRegisterVisibility("hidden", func() (VisibilityPolicy, error) {
		return hideAll{}, nil
	})

	r := NewRegistry(
		WithFactorySet(set),
		WithSource(StaticSource{Defaults: map[Kind]string{KindVisibility: "hidden"}}),
		WithLogger(ports.NewTestLogger()),
	)

	if _, ok := r.Visibility().(hideAll); !ok {
		t.Errorf("Visibility() = %T, want hideAll from default name", r.Visibility())
	}
}

func TestSetVisibility(t *testing.T) {
	t.Run("NilPolicy", func(t *testing.T) {
		r := NewRegistry(WithLogger(ports.NewTestLogger()))
		if err := r.SetVisibility(nil); !errors.Is(err, entities.ErrInvalidArgument) {
			t.Errorf("err = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		checker := &ports.MockChecker{Denied: []values.Action{values.ActionSetVisibilityPolicy}}
		r := NewRegistry(WithPermissionChecker(checker), WithLogger(ports.NewTestLogger()))

		if err := r.SetVisibility(hideAll{}); !errors.Is(err, entities.ErrPermissionDenied) {
			t.Fatalf("err = %v, want ErrPermissionDenied", err)
		}
		if _, ok := r.Visibility().(VisibleAll); !ok {
			t.Errorf("Visibility() = %T after denied set, want VisibleAll", r.Visibility())
		}
	})

	t.Run("ReplacesBeforeFirstGet", func(t *testing.T) {
		r := NewRegistry(WithLogger(ports.NewTestLogger()))
		if err := r.SetVisibility(hideAll{}); err != nil {
			t.Fatalf("SetVisibility failed: %v", err)
		}
		if _, ok := r.Visibility().(hideAll); !ok {
			t.Errorf("Visibility() = %T, want hideAll", r.Visibility())
		}
	})

	t.Run("ReplacesAfterResolution", func(t *testing.T) {
		r := NewRegistry(WithLogger(ports.NewTestLogger()))
		r.Bootstrap()
		if err := r.SetVisibility(hideAll{}); err != nil {
			t.Fatalf("SetVisibility failed: %v", err)
		}
		if _, ok := r.Visibility().(hideAll); !ok {
			t.Errorf("Visibility() = %T, want hideAll", r.Visibility())
		}
	})
}

func TestSetImportOverridePermission(t *testing.T) {
	checker := &ports.MockChecker{}
	r := NewRegistry(WithPermissionChecker(checker), WithLogger(ports.NewTestLogger()))

	if err := r.SetImportOverride(Passthrough{}); err != nil {
		t.Fatalf("SetImportOverride failed: %v", err)
	}
	if len(checker.Checked) != 1 || checker.Checked[0] != values.ActionSetImportOverridePolicy {
		t.Errorf("checked actions = %v, want [set-import-override-policy]", checker.Checked)
	}
}

func TestBootstrapPinsSlots(t *testing.T) {
	source := StaticSource{Overrides: map[Kind]string{}}
	set := NewFactorySet()
	set.MustRegisterVisibility("hidden", func() (VisibilityPolicy, error) {
		return hideAll{}, nil
	})

	r := NewRegistry(WithFactorySet(set), WithSource(source), WithLogger(ports.NewTestLogger()))
	r.Bootstrap()

	// Configuration arriving after bootstrap is ignored.
	source.Overrides[KindVisibility] = "hidden"
	if _, ok := r.Visibility().(VisibleAll); !ok {
		t.Errorf("Visibility() = %T after late config, want VisibleAll", r.Visibility())
	}
}

func TestFactorySetDuplicate(t *testing.T) {
	set := NewFactorySet()
	factory := func() (VisibilityPolicy, error) { return VisibleAll{}, nil }

	if err := set.RegisterVisibility("dup", factory); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := set.RegisterVisibility("dup", factory); err == nil {
		t.Error("duplicate registration succeeded, want error")
	}

	defer func() {
		if recover() == nil {
			t.Error("MustRegisterVisibility did not panic on duplicate")
		}
	}()
	set.MustRegisterVisibility("dup", factory)
}
