package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/AaronLay10/SentientStudio/internal/scenario"
)

func newTestScriptEngine() (*ScriptEngine, *recorder) {
	rec := &recorder{}
	e := NewScriptEngine(nil)
	e.SetEmitter(rec.emit)
	return e, rec
}

func TestExecuteNode_Dispatch(t *testing.T) {
	e, _ := newTestScriptEngine()
	bindings := map[string]interface{}{"hp": 3}

	cases := []struct {
		node scenario.Node
		want interface{}
	}{
		{scenario.Node{ID: "1", Type: scenario.NodeEvent, Properties: map[string]interface{}{"event_name": "grab"}}, true},
		{scenario.Node{ID: "2", Type: scenario.NodeAction}, true},
		{scenario.Node{ID: "3", Type: scenario.NodeCondition, Properties: map[string]interface{}{"condition": "hp > 2"}}, true},
		{scenario.Node{ID: "4", Type: scenario.NodeCondition, Properties: map[string]interface{}{"condition": "hp > 5"}}, false},
		{scenario.Node{ID: "5", Type: scenario.NodeCondition, Properties: map[string]interface{}{"condition": "missing > 5"}}, false},
		{scenario.Node{ID: "6", Type: scenario.NodeCondition}, true},
		{scenario.Node{ID: "7", Type: scenario.NodeVariable, Properties: map[string]interface{}{"name": "speed", "value": 2.5}}, 2.5},
		{scenario.Node{ID: "8", Type: scenario.NodeVariable}, nil},
		{scenario.Node{ID: "9", Type: scenario.NodeFunction}, false},
		{scenario.Node{ID: "10", Type: scenario.NodeComment}, false},
	}

	for _, tc := range cases {
		got, err := e.ExecuteNode(&tc.node, bindings)
		if err != nil {
			t.Errorf("node %s: unexpected error %v", tc.node.ID, err)
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("node %s (%s): expected %v, got %v", tc.node.ID, tc.node.Type, tc.want, got)
		}
	}
}

func TestExecuteNode_UnknownType(t *testing.T) {
	e, _ := newTestScriptEngine()
	_, err := e.ExecuteNode(&scenario.Node{ID: "x", Type: "teleport"}, nil)
	if !errors.Is(err, ErrUnknownNodeType) {
		t.Errorf("expected ErrUnknownNodeType, got %v", err)
	}
}

func TestExecuteConnection(t *testing.T) {
	e, _ := newTestScriptEngine()
	v := scenario.NewVisualScript("Conn", "p1")
	v.Nodes = []scenario.Node{
		{ID: "src", Type: scenario.NodeVariable, Properties: map[string]interface{}{"value": 7}},
		{ID: "dst", Type: scenario.NodeAction},
	}

	disabled := &scenario.Connection{ID: "c1", Source: "src", Target: "dst", Type: scenario.ConnData, Enabled: false}
	if got, _ := e.ExecuteConnection(v, disabled, nil); got != nil {
		t.Errorf("expected nil from disabled connection, got %v", got)
	}

	withData := &scenario.Connection{ID: "c2", Source: "src", Target: "dst", Type: scenario.ConnData, Enabled: true,
		Data: map[string]interface{}{"payload": "x"}}
	got, _ := e.ExecuteConnection(v, withData, nil)
	if !reflect.DeepEqual(got, map[string]interface{}{"payload": "x"}) {
		t.Errorf("expected data passthrough, got %v", got)
	}

	pull := &scenario.Connection{ID: "c3", Source: "src", Target: "dst", Type: scenario.ConnData, Enabled: true}
	got, _ = e.ExecuteConnection(v, pull, nil)
	if !reflect.DeepEqual(got, map[string]interface{}{"value": 7}) {
		t.Errorf("expected wrapped source value, got %v", got)
	}
}

func TestExecutionOrder_StableTopological(t *testing.T) {
	v := scenario.NewVisualScript("Order", "p1")
	v.Nodes = []scenario.Node{
		{ID: "a", Type: scenario.NodeEvent},
		{ID: "b", Type: scenario.NodeAction},
		{ID: "c", Type: scenario.NodeAction},
		{ID: "d", Type: scenario.NodeComment},
	}
	v.Connections = []scenario.Connection{
		{ID: "1", Source: "a", Target: "c", Type: scenario.ConnExecution, Enabled: true},
		{ID: "2", Source: "c", Target: "b", Type: scenario.ConnExecution, Enabled: true},
		// disabled and data wiring does not order execution
		{ID: "3", Source: "b", Target: "a", Type: scenario.ConnExecution, Enabled: false},
		{ID: "4", Source: "b", Target: "a", Type: scenario.ConnData, Enabled: true},
	}

	order, err := ExecutionOrder(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(order, []int{0, 3, 2, 1}) {
		t.Errorf("expected [0 3 2 1], got %v", order)
	}
}

func TestRunScript_ConditionGatesSuccessors(t *testing.T) {
	e, _ := newTestScriptEngine()

	build := func() *scenario.VisualScript {
		v := scenario.NewVisualScript("Gate", "p1")
		v.Nodes = []scenario.Node{
			{ID: "start", Name: "OnStart", Type: scenario.NodeEvent},
			{ID: "check", Name: "HasKey", Type: scenario.NodeCondition, Properties: map[string]interface{}{"condition": "keys > 0"}},
			{ID: "open", Name: "OpenDoor", Type: scenario.NodeAction},
			{ID: "after", Name: "Cheer", Type: scenario.NodeAction},
		}
		v.Connect("start", "check", scenario.ConnExecution)
		v.Connect("check", "open", scenario.ConnExecution)
		v.Connect("open", "after", scenario.ConnExecution)
		return v
	}

	log, err := e.RunScript(build(), map[string]interface{}{"keys": 0})
	if err != nil {
		t.Fatal(err)
	}
	if !log.Ordered {
		t.Error("expected topological run")
	}
	if !log.Steps[2].Skipped || !log.Steps[3].Skipped {
		t.Errorf("expected gated nodes to be skipped, got %+v", log.Steps)
	}

	log, _ = e.RunScript(build(), map[string]interface{}{"keys": 2})
	for _, s := range log.Steps {
		if s.Skipped {
			t.Errorf("did not expect %s to be skipped", s.Name)
		}
	}
}

func TestRunScript_VariablesFeedConditions(t *testing.T) {
	e, _ := newTestScriptEngine()
	v := scenario.NewVisualScript("Vars", "p1")
	v.Nodes = []scenario.Node{
		{ID: "var", Name: "Score", Type: scenario.NodeVariable, Properties: map[string]interface{}{"name": "score", "value": 10}},
		{ID: "cond", Name: "HighScore", Type: scenario.NodeCondition, Properties: map[string]interface{}{"condition": "score >= 10"}},
		{ID: "act", Name: "Reward", Type: scenario.NodeAction},
	}
	v.Connect("var", "cond", scenario.ConnExecution)
	v.Connect("cond", "act", scenario.ConnExecution)
	data := v.Connect("var", "act", scenario.ConnData)
	dataID := data.ID

	log, err := e.RunScript(v, nil)
	if err != nil {
		t.Fatal(err)
	}
	if log.Steps[1].Result != true || log.Steps[2].Skipped {
		t.Errorf("expected variable to satisfy condition, got %+v", log.Steps)
	}
	if log.Bindings["score"] != 10 {
		t.Errorf("expected score bound, got %v", log.Bindings["score"])
	}
	if len(log.Transfers) != 1 || log.Transfers[0].ConnectionID != dataID {
		t.Fatalf("expected one data transfer, got %+v", log.Transfers)
	}
	if !reflect.DeepEqual(log.Transfers[0].Value, map[string]interface{}{"value": 10}) {
		t.Errorf("unexpected transfer value %v", log.Transfers[0].Value)
	}
}

func TestRunScript_CycleFallsBackToStorageOrder(t *testing.T) {
	e, rec := newTestScriptEngine()
	v := scenario.NewVisualScript("Cycle", "p1")
	v.Nodes = []scenario.Node{
		{ID: "a", Name: "A", Type: scenario.NodeAction},
		{ID: "b", Name: "B", Type: scenario.NodeAction},
	}
	v.Connect("a", "b", scenario.ConnExecution)
	v.Connect("b", "a", scenario.ConnExecution)

	if _, err := ExecutionOrder(v); !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}

	log, err := e.RunScript(v, nil)
	if err != nil {
		t.Fatal(err)
	}
	if log.Ordered {
		t.Error("expected storage-order fallback")
	}
	if len(log.Steps) != 2 || log.Steps[0].NodeID != "a" || log.Steps[0].Skipped {
		t.Errorf("unexpected steps %+v", log.Steps)
	}
	if rec.count("script.cycle") != 1 {
		t.Error("expected script.cycle event")
	}
}
