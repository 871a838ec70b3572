package ports

import (
	"context"
	"io"
	"log/slog"

	"github.com/modarc-dev/modarc/content"
	"github.com/modarc-dev/modarc/entities"
	"github.com/modarc-dev/modarc/values"
)

// MockRepository implements Repository for testing
type MockRepository struct {
	IDValue     values.RepositoryID
	NameValue   string
	ParentRepo  Repository
	SourceValue string

	ListDefs []*entities.Definition
	ListErr  error

	FindDefs []*entities.Definition
	FindErr  error

	MaterializeContent content.Content
	MaterializeErr     error

	ListCalls int
	Closed    bool
}

func (m *MockRepository) ID() values.RepositoryID {
	return m.IDValue
}

func (m *MockRepository) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return m.IDValue.Name()
}

func (m *MockRepository) Parent() Repository {
	return m.ParentRepo
}

func (m *MockRepository) Source() string {
	return m.SourceValue
}

func (m *MockRepository) List(ctx context.Context) ([]*entities.Definition, error) {
	m.ListCalls++
	return m.ListDefs, m.ListErr
}

func (m *MockRepository) Find(ctx context.Context, query values.Query) ([]*entities.Definition, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	if m.FindDefs != nil {
		return m.FindDefs, nil
	}
	var matches []*entities.Definition
	for _, def := range m.ListDefs {
		if query.Matches(def.Ref()) {
			matches = append(matches, def)
		}
	}
	return matches, nil
}

func (m *MockRepository) Materialize(ctx context.Context, def *entities.Definition) (content.Content, error) {
	if m.MaterializeErr != nil {
		return nil, m.MaterializeErr
	}
	return m.MaterializeContent, nil
}

func (m *MockRepository) Close() error {
	m.Closed = true
	return nil
}

// MockChecker implements PermissionChecker
type MockChecker struct {
	Err     error
	Denied  []values.Action
	Checked []values.Action
}

func (m *MockChecker) Check(action values.Action, resource string) error {
	m.Checked = append(m.Checked, action)
	for _, denied := range m.Denied {
		if denied == action {
			return &entities.PermissionDeniedError{Action: action, Resource: resource}
		}
	}
	return m.Err
}

func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
