package engine

import (
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/AaronLay10/SentientStudio/internal/scenario"
)

// recorder captures emitted events instead of sending them to the bus.
type recorder struct {
	mu     sync.Mutex
	names  []string
	fields []map[string]interface{}
}

func (r *recorder) emit(level, name, msg string, fields map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.fields = append(r.fields, fields)
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.names {
		if got == name {
			n++
		}
	}
	return n
}

func newTestEngine(opts Options) (*Engine, *recorder) {
	rec := &recorder{}
	e := New(opts, nil)
	e.SetEmitter(rec.emit)
	return e, rec
}

func demoScenario() *scenario.Scenario {
	s := scenario.New("Demo", "p1", "dev")
	s.States = []scenario.State{
		{ID: "s1", Name: "Начало", Type: scenario.StateStart},
		{ID: "s2", Name: "s2 name", Type: scenario.StateInteraction},
		{ID: "s3", Name: "s3 name", Type: scenario.StateEnd},
	}
	s.Transitions = []scenario.Transition{
		{ID: "t1", Source: "s1", Target: "s2", Condition: "", Priority: 1},
		{ID: "t2", Source: "s2", Target: "s3", Condition: "done==True", Priority: 1},
	}
	s.Variables = map[string]interface{}{"done": true}
	return s
}

func TestExecute_ThreeStatePath(t *testing.T) {
	e, rec := newTestEngine(DefaultOptions())

	tr, err := e.Execute(demoScenario())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !tr.OK {
		t.Fatal("expected OK")
	}
	want := []string{"Начало", "s2 name", "s3 name"}
	if !reflect.DeepEqual(tr.Path, want) {
		t.Errorf("expected path %v, got %v", want, tr.Path)
	}
	if !reflect.DeepEqual(tr.StateIDs, []string{"s1", "s2", "s3"}) {
		t.Errorf("unexpected state ids %v", tr.StateIDs)
	}
	if tr.Stopped != StopExhausted {
		t.Errorf("expected exhausted, got %s", tr.Stopped)
	}
	if !tr.ReachedEnd {
		t.Error("expected ReachedEnd")
	}
	if got := rec.count("transition.taken"); got != 2 {
		t.Errorf("expected 2 transition.taken events, got %d", got)
	}
	if got := rec.count("state.activated"); got != 3 {
		t.Errorf("expected 3 state.activated events, got %d", got)
	}
	if got := rec.count("state.deactivated"); got != 2 {
		t.Errorf("expected 2 state.deactivated events, got %d", got)
	}
}

func TestExecute_GuardNotHeld(t *testing.T) {
	e, _ := newTestEngine(DefaultOptions())
	s := demoScenario()
	s.Variables["done"] = false

	tr, err := e.Execute(s)
	if err != nil {
		t.Fatal(err)
	}
	if !tr.OK {
		t.Error("walk without reaching end is still OK by default")
	}
	if len(tr.Path) != 2 || tr.Stopped != StopNoConditionHeld {
		t.Errorf("expected stop after 2 states with no_condition_held, got %v / %s", tr.Path, tr.Stopped)
	}
	if tr.ReachedEnd {
		t.Error("did not expect ReachedEnd")
	}
}

func TestExecute_InputBindingsOverride(t *testing.T) {
	e, _ := newTestEngine(DefaultOptions())
	s := demoScenario()

	tr, _ := e.Run(s, Input{Bindings: map[string]interface{}{"done": false}})
	if len(tr.Path) != 2 {
		t.Errorf("expected input bindings to override variables, got path %v", tr.Path)
	}
}

func TestExecute_PriorityTieBreakStable(t *testing.T) {
	e, _ := newTestEngine(DefaultOptions())
	s := scenario.New("Ties", "p1", "dev")
	s.States = []scenario.State{
		{ID: "s", Name: "S", Type: scenario.StateStart},
		{ID: "a", Name: "A", Type: scenario.StateEnd},
		{ID: "b", Name: "B", Type: scenario.StateEnd},
	}
	s.Transitions = []scenario.Transition{
		{ID: "ta", Source: "s", Target: "a", Priority: 2},
		{ID: "tb", Source: "s", Target: "b", Priority: 2},
	}

	first, _ := e.Execute(s)
	second, _ := e.Execute(s)
	if !reflect.DeepEqual(first.Path, []string{"S", "A"}) {
		t.Fatalf("expected first-inserted transition to win, got %v", first.Path)
	}
	if !reflect.DeepEqual(first.Path, second.Path) {
		t.Errorf("expected identical paths, got %v and %v", first.Path, second.Path)
	}

	// a higher priority inserted later wins over insertion order
	s.Transitions = append(s.Transitions, scenario.Transition{ID: "tc", Source: "s", Target: "b", Priority: 9})
	tr, _ := e.Execute(s)
	if tr.Path[1] != "B" {
		t.Errorf("expected highest priority to win, got %v", tr.Path)
	}
}

func TestExecute_TerminatesOnTrueCycle(t *testing.T) {
	e, _ := newTestEngine(DefaultOptions())
	s := scenario.New("Loop", "p1", "dev")
	s.States = []scenario.State{
		{ID: "a", Name: "A", Type: scenario.StateStart},
		{ID: "b", Name: "B", Type: scenario.StateIdle},
		{ID: "c", Name: "C", Type: scenario.StateEnd},
	}
	s.Transitions = []scenario.Transition{
		{ID: "ab", Source: "a", Target: "b", Condition: "true"},
		{ID: "ba", Source: "b", Target: "a", Condition: "1 == 1"},
		{ID: "bc", Source: "b", Target: "c", Condition: "false"},
	}

	tr, err := e.Execute(s)
	if err != nil {
		t.Fatal(err)
	}
	if tr.MaxRounds != 6 || tr.Rounds != 6 {
		t.Errorf("expected 6 of 6 rounds, got %d of %d", tr.Rounds, tr.MaxRounds)
	}
	if tr.Stopped != StopRoundCap {
		t.Errorf("expected round_cap, got %s", tr.Stopped)
	}
	if len(tr.Path) != 7 {
		t.Errorf("expected 7 visited states, got %d: %v", len(tr.Path), tr.Path)
	}
}

func TestExecute_GuardErrorFailsClosed(t *testing.T) {
	e, rec := newTestEngine(DefaultOptions())
	s := scenario.New("Guard", "p1", "dev")
	s.States = []scenario.State{
		{ID: "s", Name: "S", Type: scenario.StateStart},
		{ID: "x", Name: "X", Type: scenario.StateEnd},
		{ID: "y", Name: "Y", Type: scenario.StateEnd},
	}
	s.Transitions = []scenario.Transition{
		{ID: "bad", Source: "s", Target: "x", Condition: "undefined_var > 3", Priority: 10},
		{ID: "good", Source: "s", Target: "y", Condition: "", Priority: 1},
	}

	tr, err := e.Execute(s)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Path[len(tr.Path)-1] != "Y" {
		t.Errorf("expected erroring guard to be skipped, got %v", tr.Path)
	}
	if len(tr.GuardErrors) != 1 || !strings.Contains(tr.GuardErrors[0], "bad") {
		t.Errorf("expected one guard error naming the transition, got %v", tr.GuardErrors)
	}
	if rec.count("transition.guard_failed") != 1 {
		t.Error("expected transition.guard_failed event")
	}
}

func TestExecute_MissingTargetFallsThrough(t *testing.T) {
	e, _ := newTestEngine(DefaultOptions())
	s := scenario.New("Dangling", "p1", "dev")
	s.States = []scenario.State{
		{ID: "s", Name: "S", Type: scenario.StateStart},
		{ID: "e", Name: "E", Type: scenario.StateEnd},
	}
	s.Transitions = []scenario.Transition{
		{ID: "ghost", Source: "s", Target: "nowhere", Priority: 5},
		{ID: "real", Source: "s", Target: "e", Priority: 1},
	}

	tr, _ := e.Execute(s)
	if !reflect.DeepEqual(tr.Path, []string{"S", "E"}) {
		t.Errorf("expected dangling transition skipped, got %v", tr.Path)
	}
}

func TestExecute_NoStates(t *testing.T) {
	e, rec := newTestEngine(DefaultOptions())
	tr, err := e.Execute(scenario.New("Empty", "p1", "dev"))
	if err != nil {
		t.Fatal(err)
	}
	if tr.OK || tr.Stopped != StopNoStates {
		t.Errorf("expected failure with no_states, got ok=%v stopped=%s", tr.OK, tr.Stopped)
	}
	if rec.count("scenario.failed") != 1 {
		t.Error("expected scenario.failed event")
	}
}

func TestExecute_NilScenario(t *testing.T) {
	e, _ := newTestEngine(DefaultOptions())
	if _, err := e.Execute(nil); err != ErrNilScenario {
		t.Errorf("expected ErrNilScenario, got %v", err)
	}
}

func TestExecute_StartFallback(t *testing.T) {
	s := scenario.New("NoStart", "p1", "dev")
	s.States = []scenario.State{
		{ID: "i", Name: "Idle", Type: scenario.StateIdle},
		{ID: "e", Name: "End", Type: scenario.StateEnd},
	}
	s.Transitions = []scenario.Transition{{ID: "t", Source: "i", Target: "e"}}

	e, _ := newTestEngine(DefaultOptions())
	tr, _ := e.Execute(s)
	if !tr.OK || !tr.UsedFallback || tr.Path[0] != "Idle" {
		t.Errorf("expected fallback to first state, got %+v", tr)
	}

	strict, _ := newTestEngine(Options{AllowStartFallback: false})
	tr, _ = strict.Execute(s)
	if tr.OK || tr.Stopped != StopNoStart {
		t.Errorf("expected no_start failure, got ok=%v stopped=%s", tr.OK, tr.Stopped)
	}
	if len(tr.Path) != 0 {
		t.Errorf("expected empty path, got %v", tr.Path)
	}
}

func TestExecute_RequireEndState(t *testing.T) {
	s := demoScenario()
	s.Variables["done"] = false

	e, _ := newTestEngine(Options{AllowStartFallback: true, RequireEndState: true})
	tr, _ := e.Execute(s)
	if tr.OK {
		t.Error("expected not OK when end state is required and not reached")
	}

	s.Variables["done"] = true
	tr, _ = e.Execute(s)
	if !tr.OK {
		t.Error("expected OK when end state is reached")
	}
}

func TestExecute_StopAtEnd(t *testing.T) {
	s := demoScenario()
	// an end state with a way out
	s.States = append(s.States, scenario.State{ID: "s4", Name: "After", Type: scenario.StateIdle})
	s.Transitions = append(s.Transitions, scenario.Transition{ID: "t3", Source: "s3", Target: "s4"})

	loose, _ := newTestEngine(DefaultOptions())
	tr, _ := loose.Execute(s)
	if tr.Path[len(tr.Path)-1] != "After" {
		t.Errorf("expected walk to continue past end by default, got %v", tr.Path)
	}

	stop, _ := newTestEngine(Options{AllowStartFallback: true, StopAtEnd: true})
	tr, _ = stop.Execute(s)
	if tr.Stopped != StopEndReached || tr.Path[len(tr.Path)-1] != "s3 name" {
		t.Errorf("expected stop at end state, got %v / %s", tr.Path, tr.Stopped)
	}
}

func TestExecute_ActionsLoggedNotRun(t *testing.T) {
	e, rec := newTestEngine(DefaultOptions())
	s := demoScenario()
	s.Transitions[0].Actions = []map[string]interface{}{{"type": "play_sound", "data": "chime"}}

	tr, _ := e.Execute(s)
	found := false
	for _, line := range tr.Log {
		if strings.Contains(line, "play_sound") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected action in log, got %v", tr.Log)
	}
	if rec.count("transition.action") != 1 {
		t.Error("expected one transition.action event")
	}
}

func TestExecute_ExtraFieldsTagEvents(t *testing.T) {
	e, rec := newTestEngine(DefaultOptions())
	e.Run(demoScenario(), Input{Fields: map[string]interface{}{"testrun_id": "run-1"}})

	for i, f := range rec.fields {
		if f["testrun_id"] != "run-1" {
			t.Fatalf("event %s missing testrun_id", rec.names[i])
		}
	}
}

func TestExecute_DoesNotMutateScenario(t *testing.T) {
	e, _ := newTestEngine(DefaultOptions())
	s := demoScenario()
	before := s.Clone()

	e.Execute(s)
	if !reflect.DeepEqual(before.States, s.States) || !reflect.DeepEqual(before.Transitions, s.Transitions) {
		t.Error("engine mutated the scenario graph")
	}
}
