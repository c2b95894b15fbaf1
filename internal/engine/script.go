package engine

import (
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientStudio/internal/condition"
	"github.com/AaronLay10/SentientStudio/internal/scenario"
)

// ErrCycleDetected is returned by ExecutionOrder when execution wiring loops.
var ErrCycleDetected = errors.New("visual script execution graph contains a cycle")

// ErrUnknownNodeType is returned for node types the engine cannot dispatch.
var ErrUnknownNodeType = errors.New("unknown node type")

// ScriptEngine runs visual scripts node by node.
type ScriptEngine struct {
	eval *condition.Evaluator
	emit EmitFunc
}

// NewScriptEngine creates a script engine. A nil evaluator gets a private cache.
func NewScriptEngine(eval *condition.Evaluator) *ScriptEngine {
	if eval == nil {
		eval = condition.NewEvaluator(condition.DefaultCacheSize)
	}
	return &ScriptEngine{eval: eval, emit: emitToBus}
}

// SetEmitter replaces the trace event sink. Nil silences events.
func (e *ScriptEngine) SetEmitter(fn EmitFunc) {
	if fn == nil {
		fn = func(string, string, string, map[string]interface{}) {}
	}
	e.emit = fn
}

// ExecuteNode dispatches on node type:
//   - event and action nodes fire and return true
//   - condition nodes return their guard's truth value, false on error
//   - variable nodes return their bound value, which is data, not a branch
//   - function and comment nodes return false
func (e *ScriptEngine) ExecuteNode(n *scenario.Node, bindings map[string]interface{}) (interface{}, error) {
	fields := map[string]interface{}{"node_id": n.ID, "node_type": string(n.Type)}

	switch n.Type {
	case scenario.NodeEvent:
		name, _ := n.Properties["event_name"].(string)
		if name == "" {
			name = n.Name
		}
		fields["event_name"] = name
		e.emit("info", "node.executed", n.Name, fields)
		return true, nil

	case scenario.NodeAction:
		fields["action"] = n.Properties["action"]
		e.emit("info", "node.executed", n.Name, fields)
		return true, nil

	case scenario.NodeCondition:
		expr := n.Condition()
		ok, err := e.eval.Eval(expr, bindings)
		fields["condition"] = expr
		if err != nil {
			fields["error"] = err.Error()
			e.emit("warn", "node.failed", n.Name, fields)
			return false, nil
		}
		fields["result"] = ok
		e.emit("info", "node.executed", n.Name, fields)
		return ok, nil

	case scenario.NodeVariable:
		v, _ := n.Value()
		fields["variable"] = variableName(n)
		fields["value"] = v
		e.emit("info", "node.executed", n.Name, fields)
		return v, nil

	case scenario.NodeFunction, scenario.NodeComment:
		e.emit("debug", "node.skipped", n.Name, fields)
		return false, nil
	}

	e.emit("warn", "node.failed", n.Name, fields)
	return false, fmt.Errorf("%w: %q", ErrUnknownNodeType, n.Type)
}

// ExecuteConnection moves a value along a wire. Disabled connections yield
// nil, explicit data is passed through as is, otherwise the source node is
// executed and its result wrapped as {"value": result}.
func (e *ScriptEngine) ExecuteConnection(v *scenario.VisualScript, c *scenario.Connection, bindings map[string]interface{}) (interface{}, error) {
	if !c.Enabled {
		return nil, nil
	}
	if len(c.Data) > 0 {
		return c.Data, nil
	}
	src := v.NodeByID(c.Source)
	if src == nil {
		return nil, nil
	}
	result, err := e.ExecuteNode(src, bindings)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"value": result}, nil
}

// Step is one node visit of a script run.
type Step struct {
	NodeID  string      `json:"node_id"`
	Name    string      `json:"name"`
	Type    string      `json:"node_type"`
	Result  interface{} `json:"result,omitempty"`
	Skipped bool        `json:"skipped,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Transfer is the value carried by one data connection.
type Transfer struct {
	ConnectionID string      `json:"connection_id"`
	Value        interface{} `json:"value"`
}

// ScriptLog is the record of a RunScript call.
type ScriptLog struct {
	ScriptID  string                 `json:"script_id"`
	Ordered   bool                   `json:"topological"`
	Steps     []Step                 `json:"steps"`
	Transfers []Transfer             `json:"transfers,omitempty"`
	Bindings  map[string]interface{} `json:"bindings,omitempty"`
	Log       []string               `json:"log"`
}

func flowsExecution(c scenario.Connection) bool {
	return c.Enabled && (c.Type == scenario.ConnExecution || c.Type == scenario.ConnEvent)
}

// ExecutionOrder returns node indices in topological order over enabled
// execution and event connections. Ready nodes are taken in storage order so
// the result is stable. Connections to unknown nodes are ignored.
func ExecutionOrder(v *scenario.VisualScript) ([]int, error) {
	index := make(map[string]int, len(v.Nodes))
	for i, n := range v.Nodes {
		index[n.ID] = i
	}

	adj := make([][]int, len(v.Nodes))
	indeg := make([]int, len(v.Nodes))
	for _, c := range v.Connections {
		if !flowsExecution(c) {
			continue
		}
		from, ok1 := index[c.Source]
		to, ok2 := index[c.Target]
		if !ok1 || !ok2 {
			continue
		}
		adj[from] = append(adj[from], to)
		indeg[to]++
	}

	// Kahn with a FIFO seeded in storage order
	q := make([]int, 0, len(v.Nodes))
	for i := range v.Nodes {
		if indeg[i] == 0 {
			q = append(q, i)
		}
	}
	order := make([]int, 0, len(v.Nodes))
	for len(q) > 0 {
		n := q[0]
		q = q[1:]
		order = append(order, n)
		for _, w := range adj[n] {
			indeg[w]--
			if indeg[w] == 0 {
				q = append(q, w)
			}
		}
	}
	if len(order) != len(v.Nodes) {
		return nil, ErrCycleDetected
	}
	return order, nil
}

// RunScript executes every node once in dependency order. A node with
// incoming execution wiring runs only if at least one predecessor ran and did
// not block it; a condition node that evaluates false blocks its successors.
// Variable nodes bind their value under their variable name for later
// condition nodes. Cyclic wiring falls back to storage order.
func (e *ScriptEngine) RunScript(v *scenario.VisualScript, bindings map[string]interface{}) (*ScriptLog, error) {
	if v == nil {
		return nil, errors.New("nil visual script")
	}

	env := make(map[string]interface{}, len(bindings)+len(v.Variables))
	for k, val := range v.Variables {
		env[k] = val
	}
	for k, val := range bindings {
		env[k] = val
	}

	out := &ScriptLog{ScriptID: v.ID, Ordered: true}
	e.emit("info", "script.started", v.Name, map[string]interface{}{"script_id": v.ID})

	order, err := ExecutionOrder(v)
	if err != nil {
		out.Ordered = false
		out.Log = append(out.Log, "execution wiring has a cycle, running in storage order")
		e.emit("warn", "script.cycle", err.Error(), map[string]interface{}{"script_id": v.ID})
		order = make([]int, len(v.Nodes))
		for i := range order {
			order[i] = i
		}
	}

	incoming := make(map[string][]string)
	for _, c := range v.Connections {
		if flowsExecution(c) {
			incoming[c.Target] = append(incoming[c.Target], c.Source)
		}
	}

	ran := make(map[string]bool)
	blocked := make(map[string]bool)
	results := make(map[string]interface{})

	for _, idx := range order {
		n := &v.Nodes[idx]
		step := Step{NodeID: n.ID, Name: n.Name, Type: string(n.Type)}

		if preds := incoming[n.ID]; len(preds) > 0 && out.Ordered {
			enabled := false
			for _, p := range preds {
				if ran[p] && !blocked[p] {
					enabled = true
					break
				}
			}
			if !enabled {
				step.Skipped = true
				out.Steps = append(out.Steps, step)
				out.Log = append(out.Log, fmt.Sprintf("skip %s (%s)", n.Name, n.Type))
				e.emit("debug", "node.skipped", n.Name, map[string]interface{}{"node_id": n.ID, "script_id": v.ID})
				continue
			}
		}

		result, nerr := e.ExecuteNode(n, env)
		ran[n.ID] = true
		results[n.ID] = result
		step.Result = result
		if nerr != nil {
			step.Error = nerr.Error()
			blocked[n.ID] = true
		}
		if n.Type == scenario.NodeCondition && !condition.Truthy(result) {
			blocked[n.ID] = true
		}
		if n.Type == scenario.NodeVariable {
			env[variableName(n)] = result
		}

		out.Steps = append(out.Steps, step)
		out.Log = append(out.Log, fmt.Sprintf("run %s (%s) = %v", n.Name, n.Type, result))
	}

	for i := range v.Connections {
		c := &v.Connections[i]
		if !c.Enabled || c.Type != scenario.ConnData {
			continue
		}
		var val interface{}
		if len(c.Data) > 0 {
			val = c.Data
		} else if ran[c.Source] {
			val = map[string]interface{}{"value": results[c.Source]}
		}
		out.Transfers = append(out.Transfers, Transfer{ConnectionID: c.ID, Value: val})
	}

	out.Bindings = env
	e.emit("info", "script.completed", v.Name, map[string]interface{}{
		"script_id": v.ID,
		"steps":     len(out.Steps),
	})
	return out, nil
}

func variableName(n *scenario.Node) string {
	if name, ok := n.Properties["name"].(string); ok && name != "" {
		return name
	}
	return n.Name
}
