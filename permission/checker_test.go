package permission

import (
	"errors"
	"testing"

	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/values"
)

func TestAllowAll(t *testing.T) {
	if err := (AllowAll{}).Check(values.ActionCreateRepository, "anything"); err != nil {
		t.Errorf("AllowAll denied: %v", err)
	}
}

func TestDenyAll(t *testing.T) {
	err := (DenyAll{}).Check(values.ActionShutdownRepository, "repo")
	if !errors.Is(err, entities.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}

	var denied *entities.PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatal("error is not a PermissionDeniedError")
	}
	if denied.Action != values.ActionShutdownRepository || denied.Resource != "repo" {
		t.Errorf("denied = %+v, want action shutdown-repository on repo", denied)
	}
}

func TestStatic(t *testing.T) {
	checker := Static{Grants: map[values.Action][]string{
		values.ActionCreateRepository: {"https://mods.example.com/**", "/srv/modules"},
		values.ActionListModules:      {},
	}}

	tests := []struct {
		name     string
		action   values.Action
		resource string
		allowed  bool
	}{
		{"GlobMatch", values.ActionCreateRepository, "https://mods.example.com/stable/v2", true},
		{"ExactMatch", values.ActionCreateRepository, "/srv/modules", true},
		{"NoPatternMatch", values.ActionCreateRepository, "https://other.example.com/", false},
		{"EmptyPatternsAllowAll", values.ActionListModules, "whatever", true},
		{"UnknownAction", values.ActionShutdownRepository, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checker.Check(tt.action, tt.resource)
			if tt.allowed && err != nil {
				t.Errorf("Check(%s, %s) = %v, want nil", tt.action, tt.resource, err)
			}
			if !tt.allowed && !errors.Is(err, entities.ErrPermissionDenied) {
				t.Errorf("Check(%s, %s) = %v, want ErrPermissionDenied", tt.action, tt.resource, err)
			}
		})
	}
}
