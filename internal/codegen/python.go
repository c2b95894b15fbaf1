package codegen

import (
	"strings"

	"github.com/AaronLay10/SentientStudio/internal/condition"
	"github.com/AaronLay10/SentientStudio/internal/scenario"
)

var pythonReserved = []string{
	"and", "as", "assert", "async", "await", "break", "class", "continue",
	"def", "del", "elif", "else", "except", "finally", "for", "from",
	"global", "if", "import", "in", "is", "lambda", "nonlocal", "not", "or",
	"pass", "raise", "return", "try", "while", "with", "yield",
	"run", "execute_logic", "check_condition",
}

// PythonGenerator emits dataclass based Python 3 modules.
type PythonGenerator struct {
	clock Clock
}

func NewPython(clock Clock) *PythonGenerator {
	return &PythonGenerator{clock: clock}
}

func (g *PythonGenerator) Language() Language { return Python }
func (g *PythonGenerator) Extension() string  { return ".py" }

// pyGuard renders a transition condition as a lambda over the variable map.
// Conditions outside the grammar become a guard that never holds.
func pyGuard(expr string) (string, bool) {
	prog, err := condition.Compile(expr)
	if err != nil {
		return "lambda v: False", false
	}
	return "lambda v: " + prog.Python("v"), true
}

func (g *PythonGenerator) GenerateFromScenario(s *scenario.Scenario) string {
	cls := className(s.Name, "None", "True", "False", "StateType", "ScenarioState", "ScenarioTransition", "Enum")
	out := &src{}
	header(out, "#", "scenario", s.Name, Python, g.clock)
	out.blank()
	out.line(0, "from dataclasses import dataclass, field")
	out.line(0, "from enum import Enum")
	out.line(0, "from typing import Any, Callable, Dict, List, Optional")
	out.blank()
	out.blank()

	out.line(0, "class StateType(Enum):")
	members := enumMembers(s, upperSnake)
	if len(members) == 0 {
		out.line(1, "pass")
	}
	for _, m := range members {
		out.line(1, "%s = %s", m, pyQuote(strings.ToLower(m)))
	}
	out.blank()
	out.blank()

	out.line(0, "@dataclass")
	out.line(0, "class ScenarioState:")
	out.line(1, "id: str")
	out.line(1, "name: str")
	out.line(1, "type: StateType")
	out.line(1, "position: List[float]")
	out.line(1, `description: str = ""`)
	out.line(1, "properties: Dict[str, Any] = field(default_factory=dict)")
	out.blank()
	out.blank()

	out.line(0, "@dataclass")
	out.line(0, "class ScenarioTransition:")
	out.line(1, "id: str")
	out.line(1, "name: str")
	out.line(1, "source_state_id: str")
	out.line(1, "target_state_id: str")
	out.line(1, "condition: str")
	out.line(1, "priority: int")
	out.line(1, "guard: Callable[[Dict[str, Any]], bool] = lambda v: True")
	out.line(1, "actions: List[Dict[str, Any]] = field(default_factory=list)")
	out.blank()
	out.blank()

	out.line(0, "class %s:", cls)
	doc := s.Description
	if doc == "" {
		doc = "Generated VR/AR scenario"
	}
	out.line(1, "%s", pyQuote(doc))
	out.blank()
	out.line(1, "def __init__(self):")
	out.line(2, "self.name = %s", pyQuote(s.Name))
	out.line(2, "self.states: Dict[str, ScenarioState] = {}")
	out.line(2, "self.transitions: List[ScenarioTransition] = []")
	out.line(2, "self.current_state: Optional[ScenarioState] = None")
	out.line(2, "self.execution_history: List[str] = []")
	out.line(2, "self.variables: Dict[str, Any] = %s", pyValue(map[string]interface{}(s.Variables)))
	out.line(2, "self.max_rounds = %d", 2*len(s.Transitions))

	for _, st := range s.States {
		out.blank()
		out.line(2, "self.states[%s] = ScenarioState(", pyQuote(st.ID))
		out.line(3, "id=%s,", pyQuote(st.ID))
		out.line(3, "name=%s,", pyQuote(st.Name))
		out.line(3, "type=StateType.%s,", upperSnake(string(st.Type)))
		out.line(3, "position=[%s, %s, %s],", formatFloat(st.Position.X), formatFloat(st.Position.Y), formatFloat(st.Position.Z))
		out.line(3, "description=%s,", pyQuote(st.Description))
		out.line(3, "properties=%s,", pyValue(map[string]interface{}(st.Properties)))
		out.line(2, ")")
	}

	for _, tr := range s.Transitions {
		guard, ok := pyGuard(tr.Condition)
		actions := make([]interface{}, len(tr.Actions))
		for i, a := range tr.Actions {
			actions[i] = map[string]interface{}(a)
		}
		out.blank()
		if !ok {
			out.line(2, "# condition outside the guard grammar: %s", commentSafe(tr.Condition))
		}
		out.line(2, "self.transitions.append(ScenarioTransition(")
		out.line(3, "id=%s,", pyQuote(tr.ID))
		out.line(3, "name=%s,", pyQuote(tr.Name))
		out.line(3, "source_state_id=%s,", pyQuote(tr.Source))
		out.line(3, "target_state_id=%s,", pyQuote(tr.Target))
		out.line(3, "condition=%s,", pyQuote(tr.Condition))
		out.line(3, "priority=%d,", tr.Priority)
		out.line(3, "guard=%s,", guard)
		out.line(3, "actions=%s,", pyValue(actions))
		out.line(2, "))")
	}
	out.blank()

	out.line(1, "def start(self):")
	if st := startState(s); st != nil {
		out.line(2, "self.current_state = self.states.get(%s)", pyQuote(st.ID))
	} else {
		out.line(2, "self.current_state = None")
	}
	out.line(2, "if self.current_state is not None:")
	out.line(3, `self.execution_history.append("start: " + self.current_state.name)`)
	out.line(2, "return self.current_state")
	out.blank()

	out.line(1, "def check_condition(self, transition):")
	out.line(2, "try:")
	out.line(3, "return bool(transition.guard(self.variables))")
	out.line(2, "except Exception as exc:")
	out.line(3, `self.execution_history.append("guard " + transition.id + " failed: " + str(exc))`)
	out.line(3, "return False")
	out.blank()

	out.line(1, "def execute_transition(self, transition):")
	out.line(2, "if not self.check_condition(transition):")
	out.line(3, "return False")
	out.line(2, "target = self.states.get(transition.target_state_id)")
	out.line(2, "if target is None:")
	out.line(3, "return False")
	out.line(2, "for action in transition.actions:")
	out.line(3, `self.execution_history.append("action: " + str(action))`)
	out.line(2, "self.current_state = target")
	out.line(2, `self.execution_history.append(transition.id + " -> " + target.name)`)
	out.line(2, "return True")
	out.blank()

	out.line(1, "def run(self):")
	out.line(2, "if self.start() is None:")
	out.line(3, "return False")
	out.line(2, "for _ in range(self.max_rounds):")
	out.line(3, "candidates = [t for t in self.transitions if t.source_state_id == self.current_state.id]")
	out.line(3, "candidates.sort(key=lambda t: t.priority, reverse=True)")
	out.line(3, "if not any(self.execute_transition(t) for t in candidates):")
	out.line(4, "break")
	out.line(2, "return True")
	out.blank()

	out.line(1, "@staticmethod")
	out.line(1, "def execute():")
	out.line(2, "scenario = %s()", cls)
	out.line(2, "scenario.run()")
	out.line(2, "for i, step in enumerate(scenario.execution_history, 1):")
	out.line(3, `print(f"{i}. {step}")`)
	out.line(2, "return scenario")
	out.blank()
	out.blank()

	out.line(0, `if __name__ == "__main__":`)
	out.line(1, "%s.execute()", cls)
	return out.String()
}

func (g *PythonGenerator) GenerateFromVisualScript(v *scenario.VisualScript) string {
	cls := className(v.Name, "None", "True", "False")
	handlers := scriptHandlers(v, func(prefix, name string) string {
		if prefix == "" {
			return snakeCase(name)
		}
		return prefix + "_" + snakeCase(name)
	}, pythonReserved...)

	out := &src{}
	header(out, "#", "visual script", v.Name, Python, g.clock)
	out.blank()
	out.line(0, "from typing import Any, Dict, List")
	out.blank()
	out.blank()

	out.line(0, "class %s:", cls)
	doc := v.Description
	if doc == "" {
		doc = "Generated visual script"
	}
	out.line(1, "%s", pyQuote(doc))
	out.blank()
	out.line(1, "def __init__(self):")
	out.line(2, "self.variables: Dict[str, Any] = %s", pyValue(map[string]interface{}(v.Variables)))
	out.line(2, "self.execution_log: List[str] = []")
	out.line(2, "self.nodes = [")
	for _, n := range v.Nodes {
		out.line(3, `{"id": %s, "name": %s, "type": %s},`, pyQuote(n.ID), pyQuote(n.Name), pyQuote(string(n.Type)))
	}
	out.line(2, "]")
	out.line(2, "self.connections = [")
	for _, c := range v.Connections {
		enabled := "False"
		if c.Enabled {
			enabled = "True"
		}
		out.line(3, `{"id": %s, "source": %s, "target": %s, "type": %s, "enabled": %s},`,
			pyQuote(c.ID), pyQuote(c.Source), pyQuote(c.Target), pyQuote(string(c.Type)), enabled)
	}
	out.line(2, "]")
	for _, n := range v.NodesOfType(scenario.NodeVariable) {
		val, _ := n.Value()
		out.line(2, "self.variables[%s] = %s", pyQuote(variableNodeName(&n)), pyValue(val))
	}
	out.blank()

	for _, h := range handlers {
		n := h.node
		switch n.Type {
		case scenario.NodeEvent:
			event, _ := n.Properties["event_name"].(string)
			if event == "" {
				event = "unnamed_event"
			}
			out.line(1, "def %s(self, data=None):", h.method)
			out.line(2, "%s", pyQuote("Event: "+n.Name))
			out.line(2, "self.execution_log.append(%s)", pyQuote("event: "+event))
			out.line(2, "return True")
		case scenario.NodeAction:
			action, _ := n.Properties["action"].(string)
			if action == "" {
				action = "unknown_action"
			}
			out.line(1, "def %s(self, params=None):", h.method)
			out.line(2, "%s", pyQuote("Action: "+n.Name))
			out.line(2, "self.execution_log.append(%s)", pyQuote("action: "+action))
			switch action {
			case "set_variable":
				name, _ := n.Properties["variable_name"].(string)
				val, _ := n.Value()
				out.line(2, "self.variables[%s] = %s", pyQuote(name), pyValue(val))
			case "log_message":
				msg, _ := n.Properties["message"].(string)
				out.line(2, "self.execution_log.append(%s)", pyQuote(msg))
			}
			out.line(2, "return True")
		case scenario.NodeFunction:
			out.line(1, "def %s(self, *args, **kwargs):", h.method)
			out.line(2, "%s", pyQuote("Function: "+n.Name))
			out.line(2, "self.execution_log.append(%s)", pyQuote("function: "+n.Name))
			ret := "None"
			if expr, ok := n.Properties["return_expression"].(string); ok && expr != "" {
				if prog, err := condition.Compile(expr); err == nil {
					ret = prog.Python("self.variables")
				}
			}
			out.line(2, "return %s", ret)
		}
		out.blank()
	}

	methods := make(map[string]string, len(handlers))
	for _, h := range handlers {
		methods[h.node.ID] = h.method
	}
	order, ordered := executionOrder(v)

	out.line(1, "def check_condition(self, expression, guard):")
	out.line(2, "try:")
	out.line(3, "held = bool(guard(self.variables))")
	out.line(2, "except Exception:")
	out.line(3, "held = False")
	out.line(2, `self.execution_log.append("condition " + expression + ": " + str(held))`)
	out.line(2, "return held")
	out.blank()

	out.line(1, "def execute_logic(self):")
	for _, l := range connectionLines(v) {
		out.line(2, "# %s", l)
	}
	if !ordered {
		out.line(2, "# cycle detected: nodes run in storage order")
	}
	out.line(2, `self.execution_log.append("logic started")`)
	for _, n := range order {
		switch n.Type {
		case scenario.NodeEvent, scenario.NodeAction, scenario.NodeFunction:
			out.line(2, "self.%s()", methods[n.ID])
		case scenario.NodeCondition:
			guard, _ := pyGuard(n.Condition())
			out.line(2, "self.check_condition(%s, %s)", pyQuote(n.Condition()), guard)
		case scenario.NodeVariable:
			out.line(2, "# variable %s", commentSafe(variableNodeName(n)))
		case scenario.NodeComment:
			out.line(2, "# %s", commentSafe(n.Name))
		}
	}
	out.line(2, "return True")
	out.blank()

	out.line(1, "def run(self):")
	out.line(2, "self.execute_logic()")
	out.line(2, "for i, entry in enumerate(self.execution_log, 1):")
	out.line(3, `print(f"{i}. {entry}")`)
	out.line(2, "return self.variables")
	out.blank()
	out.blank()

	out.line(0, `if __name__ == "__main__":`)
	out.line(1, "%s().run()", cls)
	return out.String()
}
