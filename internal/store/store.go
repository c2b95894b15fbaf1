// Package store persists studio documents (scenarios, visual scripts, test
// runs, bugs, devices, users) as JSON behind a small document backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientStudio/internal/scenario"
	"github.com/AaronLay10/SentientStudio/internal/testrun"
	"github.com/AaronLay10/SentientStudio/internal/users"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound error = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }

// NotFound lets packages below store (testrun) recognise the error without
// importing it.
func (notFoundError) NotFound() bool { return true }

// Document kinds.
const (
	KindScenario     = "scenario"
	KindVisualScript = "visual_script"
	KindTestRun      = "testrun"
	KindBug          = "bug"
	KindDevice       = "device"
	KindUser         = "user"
)

// Backend stores opaque JSON documents keyed by kind and id. parentID groups
// documents for listing; List with an empty parentID returns the whole kind
// in insertion order.
type Backend interface {
	Put(ctx context.Context, kind, id, parentID string, body []byte) error
	Get(ctx context.Context, kind, id string) ([]byte, error)
	Delete(ctx context.Context, kind, id string) error
	List(ctx context.Context, kind, parentID string) ([][]byte, error)
}

// Store is the typed repository over a Backend. Values are copied in and
// out through JSON, so callers never share memory with the store.
type Store struct {
	b Backend
}

func New(b Backend) *Store {
	return &Store{b: b}
}

// NewMemory returns a store over an in-process backend.
func NewMemory() *Store {
	return New(NewMemoryBackend())
}

func put(ctx context.Context, b Backend, kind, id, parentID string, v interface{}) error {
	if id == "" {
		return fmt.Errorf("put %s: empty id", kind)
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, id, err)
	}
	return b.Put(ctx, kind, id, parentID, body)
}

func get[T any](ctx context.Context, b Backend, kind, id string) (*T, error) {
	body, err := b.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	v := new(T)
	if err := json.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return v, nil
}

func list[T any](ctx context.Context, b Backend, kind, parentID string) ([]*T, error) {
	bodies, err := b.List(ctx, kind, parentID)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(bodies))
	for _, body := range bodies {
		v := new(T)
		if err := json.Unmarshal(body, v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Store) PutScenario(ctx context.Context, sc *scenario.Scenario) error {
	return put(ctx, s.b, KindScenario, sc.ID, sc.ProjectID, sc)
}

func (s *Store) GetScenario(ctx context.Context, id string) (*scenario.Scenario, error) {
	return get[scenario.Scenario](ctx, s.b, KindScenario, id)
}

// DeleteScenario removes the scenario and the visual script it owns. A
// script already gone, or attached to another scenario, is left alone.
func (s *Store) DeleteScenario(ctx context.Context, id string) error {
	sc, err := s.GetScenario(ctx, id)
	if err != nil {
		return err
	}
	if sc.VisualScriptID != "" {
		v, err := s.GetVisualScript(ctx, sc.VisualScriptID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return fmt.Errorf("delete scenario %s: %w", id, err)
		case v.ScenarioID == "" || v.ScenarioID == id:
			if err := s.DeleteVisualScript(ctx, v.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("delete scenario %s: %w", id, err)
			}
		}
	}
	return s.b.Delete(ctx, KindScenario, id)
}

// ListScenarios lists a project's scenarios, or all of them for "".
func (s *Store) ListScenarios(ctx context.Context, projectID string) ([]*scenario.Scenario, error) {
	return list[scenario.Scenario](ctx, s.b, KindScenario, projectID)
}

func (s *Store) PutVisualScript(ctx context.Context, v *scenario.VisualScript) error {
	return put(ctx, s.b, KindVisualScript, v.ID, v.ProjectID, v)
}

func (s *Store) GetVisualScript(ctx context.Context, id string) (*scenario.VisualScript, error) {
	return get[scenario.VisualScript](ctx, s.b, KindVisualScript, id)
}

func (s *Store) DeleteVisualScript(ctx context.Context, id string) error {
	return s.b.Delete(ctx, KindVisualScript, id)
}

func (s *Store) ListVisualScripts(ctx context.Context, projectID string) ([]*scenario.VisualScript, error) {
	return list[scenario.VisualScript](ctx, s.b, KindVisualScript, projectID)
}

func (s *Store) PutTestRun(ctx context.Context, r *testrun.Run) error {
	return put(ctx, s.b, KindTestRun, r.ID, r.ScenarioID, r)
}

func (s *Store) GetTestRun(ctx context.Context, id string) (*testrun.Run, error) {
	return get[testrun.Run](ctx, s.b, KindTestRun, id)
}

// ListTestRuns lists a scenario's runs, or all runs for "".
func (s *Store) ListTestRuns(ctx context.Context, scenarioID string) ([]*testrun.Run, error) {
	return list[testrun.Run](ctx, s.b, KindTestRun, scenarioID)
}

func (s *Store) PutBug(ctx context.Context, b *testrun.BugReport) error {
	return put(ctx, s.b, KindBug, b.ID, b.ScenarioID, b)
}

func (s *Store) GetBug(ctx context.Context, id string) (*testrun.BugReport, error) {
	return get[testrun.BugReport](ctx, s.b, KindBug, id)
}

func (s *Store) ListBugs(ctx context.Context, scenarioID string) ([]*testrun.BugReport, error) {
	return list[testrun.BugReport](ctx, s.b, KindBug, scenarioID)
}

func (s *Store) PutDevice(ctx context.Context, d *testrun.Device) error {
	return put(ctx, s.b, KindDevice, d.ID, "", d)
}

func (s *Store) GetDevice(ctx context.Context, id string) (*testrun.Device, error) {
	return get[testrun.Device](ctx, s.b, KindDevice, id)
}

func (s *Store) ListDevices(ctx context.Context) ([]*testrun.Device, error) {
	return list[testrun.Device](ctx, s.b, KindDevice, "")
}

// PutUser stores u. The username doubles as the parent key so
// UserByUsername can find it.
func (s *Store) PutUser(ctx context.Context, u *users.User) error {
	return put(ctx, s.b, KindUser, u.ID, u.Username, u)
}

func (s *Store) GetUser(ctx context.Context, id string) (*users.User, error) {
	return get[users.User](ctx, s.b, KindUser, id)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*users.User, error) {
	if username == "" {
		return nil, ErrNotFound
	}
	found, err := list[users.User](ctx, s.b, KindUser, username)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return found[0], nil
}
