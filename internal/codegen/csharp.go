package codegen

import (
	"github.com/AaronLay10/SentientStudio/internal/scenario"
)

const csNamespace = "VRAR.GeneratedScenarios"

// CSharpGenerator emits a single C# file with a Program entry point.
type CSharpGenerator struct {
	clock Clock
}

func NewCSharp(clock Clock) *CSharpGenerator {
	return &CSharpGenerator{clock: clock}
}

func (g *CSharpGenerator) Language() Language { return CSharp }
func (g *CSharpGenerator) Extension() string  { return ".cs" }

// guardSet collects the distinct conditions of a graph in first-use order,
// split into constant ones the generator can fold and ones that need a guard
// registered by hand.
type guardSet struct {
	constant map[string]bool
	order    []string
	open     []string
}

func collectGuards(exprs []string) guardSet {
	gs := guardSet{constant: make(map[string]bool)}
	seen := make(map[string]bool)
	for _, e := range exprs {
		if seen[e] {
			continue
		}
		seen[e] = true
		if held, ok := constantGuard(e); ok {
			gs.constant[e] = held
			gs.order = append(gs.order, e)
			continue
		}
		gs.open = append(gs.open, e)
	}
	return gs
}

func csBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (g *CSharpGenerator) usings(out *src) {
	out.line(0, "using System;")
	out.line(0, "using System.Collections.Generic;")
	out.line(0, "using System.Linq;")
	out.blank()
}

func (g *CSharpGenerator) guardMembers(out *src, gs guardSet, log string) {
	out.line(2, "public Dictionary<string, Func<Dictionary<string, object>, bool>> Guards { get; } =")
	out.line(3, "new Dictionary<string, Func<Dictionary<string, object>, bool>>();")
	out.blank()
	out.line(2, "private void InitializeGuards()")
	out.line(2, "{")
	for _, e := range gs.order {
		out.line(3, "Guards[%s] = variables => %s;", cQuote(e, false), csBool(gs.constant[e]))
	}
	for _, e := range gs.open {
		out.line(3, "// register Guards[%s]", cQuote(commentSafe(e), false))
	}
	out.line(2, "}")
	out.blank()
	out.line(2, "public bool CheckCondition(string expression)")
	out.line(2, "{")
	out.line(3, "if (!Guards.TryGetValue(expression ?? string.Empty, out var guard))")
	out.line(3, "{")
	out.line(4, `%s.Add("no guard registered for: " + expression);`, log)
	out.line(4, "return false;")
	out.line(3, "}")
	out.line(3, "try")
	out.line(3, "{")
	out.line(4, "return guard(Variables);")
	out.line(3, "}")
	out.line(3, "catch (Exception ex)")
	out.line(3, "{")
	out.line(4, `%s.Add("guard failed: " + ex.Message);`, log)
	out.line(4, "return false;")
	out.line(3, "}")
	out.line(2, "}")
	out.blank()
}

func (g *CSharpGenerator) program(out *src, body string) {
	out.line(1, "public static class Program")
	out.line(1, "{")
	out.line(2, "public static void Main(string[] args)")
	out.line(2, "{")
	out.line(3, "%s", body)
	out.line(2, "}")
	out.line(1, "}")
	out.line(0, "}")
}

func (g *CSharpGenerator) GenerateFromScenario(s *scenario.Scenario) string {
	cls := className(s.Name, "Program", "StateType", "ScenarioState", "ScenarioTransition")
	conds := make([]string, len(s.Transitions))
	for i, tr := range s.Transitions {
		conds[i] = tr.Condition
	}
	guards := collectGuards(conds)

	out := &src{}
	header(out, "//", "scenario", s.Name, CSharp, g.clock)
	out.blank()
	g.usings(out)
	out.line(0, "namespace %s", csNamespace)
	out.line(0, "{")

	out.line(1, "public enum StateType")
	out.line(1, "{")
	for _, m := range enumMembers(s, pascalCase) {
		out.line(2, "%s,", m)
	}
	out.line(1, "}")
	out.blank()

	out.line(1, "public class ScenarioState")
	out.line(1, "{")
	out.line(2, "public string Id { get; set; }")
	out.line(2, "public string Name { get; set; }")
	out.line(2, "public StateType Type { get; set; }")
	out.line(2, "public double[] Position { get; set; }")
	out.line(2, "public string Description { get; set; }")
	out.line(1, "}")
	out.blank()

	out.line(1, "public class ScenarioTransition")
	out.line(1, "{")
	out.line(2, "public string Id { get; set; }")
	out.line(2, "public string Name { get; set; }")
	out.line(2, "public string SourceStateId { get; set; }")
	out.line(2, "public string TargetStateId { get; set; }")
	out.line(2, "public string Condition { get; set; }")
	out.line(2, "public int Priority { get; set; }")
	out.line(2, "public List<string> Actions { get; set; } = new List<string>();")
	out.line(1, "}")
	out.blank()

	doc := s.Description
	if doc == "" {
		doc = "Generated VR/AR scenario"
	}
	out.line(1, "// %s", commentSafe(doc))
	out.line(1, "public class %s", cls)
	out.line(1, "{")
	out.line(2, "public string Name { get; } = %s;", cQuote(s.Name, false))
	out.line(2, "public Dictionary<string, ScenarioState> States { get; } = new Dictionary<string, ScenarioState>();")
	out.line(2, "public List<ScenarioTransition> Transitions { get; } = new List<ScenarioTransition>();")
	out.line(2, "public Dictionary<string, object> Variables { get; } = new Dictionary<string, object>();")
	out.line(2, "public List<string> ExecutionHistory { get; } = new List<string>();")
	out.line(2, "public ScenarioState CurrentState { get; private set; }")
	out.line(2, "public int MaxRounds { get; } = %d;", 2*len(s.Transitions))
	out.blank()
	g.guardMembers(out, guards, "ExecutionHistory")

	out.line(2, "public %s()", cls)
	out.line(2, "{")
	out.line(3, "InitializeVariables();")
	out.line(3, "InitializeGuards();")
	out.line(3, "InitializeStates();")
	out.line(3, "InitializeTransitions();")
	out.line(2, "}")
	out.blank()

	out.line(2, "private void InitializeVariables()")
	out.line(2, "{")
	for _, k := range sortedKeys(s.Variables) {
		out.line(3, "Variables[%s] = %s;", cQuote(k, false), csValue(s.Variables[k]))
	}
	out.line(2, "}")
	out.blank()

	out.line(2, "private void InitializeStates()")
	out.line(2, "{")
	for _, st := range s.States {
		out.line(3, "States[%s] = new ScenarioState", cQuote(st.ID, false))
		out.line(3, "{")
		out.line(4, "Id = %s,", cQuote(st.ID, false))
		out.line(4, "Name = %s,", cQuote(st.Name, false))
		out.line(4, "Type = StateType.%s,", pascalCase(string(st.Type)))
		out.line(4, "Position = new double[] { %s, %s, %s },", formatFloat(st.Position.X), formatFloat(st.Position.Y), formatFloat(st.Position.Z))
		out.line(4, "Description = %s,", cQuote(st.Description, false))
		out.line(3, "};")
	}
	out.line(2, "}")
	out.blank()

	out.line(2, "private void InitializeTransitions()")
	out.line(2, "{")
	for _, tr := range s.Transitions {
		out.line(3, "Transitions.Add(new ScenarioTransition")
		out.line(3, "{")
		out.line(4, "Id = %s,", cQuote(tr.ID, false))
		out.line(4, "Name = %s,", cQuote(tr.Name, false))
		out.line(4, "SourceStateId = %s,", cQuote(tr.Source, false))
		out.line(4, "TargetStateId = %s,", cQuote(tr.Target, false))
		out.line(4, "Condition = %s,", cQuote(tr.Condition, false))
		out.line(4, "Priority = %d,", tr.Priority)
		if len(tr.Actions) > 0 {
			out.line(4, "Actions = new List<string>")
			out.line(4, "{")
			for _, a := range tr.Actions {
				out.line(5, "%s,", cQuote(jsonText(a), false))
			}
			out.line(4, "},")
		}
		out.line(3, "});")
	}
	out.line(2, "}")
	out.blank()

	out.line(2, "public ScenarioState Start()")
	out.line(2, "{")
	if st := startState(s); st != nil {
		out.line(3, "CurrentState = States.TryGetValue(%s, out var state) ? state : null;", cQuote(st.ID, false))
	} else {
		out.line(3, "CurrentState = null;")
	}
	out.line(3, "if (CurrentState != null)")
	out.line(3, "{")
	out.line(4, `ExecutionHistory.Add("start: " + CurrentState.Name);`)
	out.line(3, "}")
	out.line(3, "return CurrentState;")
	out.line(2, "}")
	out.blank()

	out.line(2, "public bool ExecuteTransition(ScenarioTransition transition)")
	out.line(2, "{")
	out.line(3, "if (!CheckCondition(transition.Condition))")
	out.line(3, "{")
	out.line(4, "return false;")
	out.line(3, "}")
	out.line(3, "if (!States.TryGetValue(transition.TargetStateId, out var target))")
	out.line(3, "{")
	out.line(4, "return false;")
	out.line(3, "}")
	out.line(3, "foreach (var action in transition.Actions)")
	out.line(3, "{")
	out.line(4, `ExecutionHistory.Add("action: " + action);`)
	out.line(3, "}")
	out.line(3, "CurrentState = target;")
	out.line(3, `ExecutionHistory.Add(transition.Id + " -> " + target.Name);`)
	out.line(3, "return true;")
	out.line(2, "}")
	out.blank()

	out.line(2, "public bool Run()")
	out.line(2, "{")
	out.line(3, "if (Start() == null)")
	out.line(3, "{")
	out.line(4, "return false;")
	out.line(3, "}")
	out.line(3, "for (var round = 0; round < MaxRounds; round++)")
	out.line(3, "{")
	out.line(4, "var candidates = Transitions")
	out.line(5, ".Where(t => t.SourceStateId == CurrentState.Id)")
	out.line(5, ".OrderByDescending(t => t.Priority)")
	out.line(5, ".ToList();")
	out.line(4, "if (!candidates.Any(ExecuteTransition))")
	out.line(4, "{")
	out.line(5, "break;")
	out.line(4, "}")
	out.line(3, "}")
	out.line(3, "return true;")
	out.line(2, "}")
	out.blank()

	out.line(2, "public static %s Execute()", cls)
	out.line(2, "{")
	out.line(3, "var scenario = new %s();", cls)
	out.line(3, "scenario.Run();")
	out.line(3, "for (var i = 0; i < scenario.ExecutionHistory.Count; i++)")
	out.line(3, "{")
	out.line(4, `Console.WriteLine($"{i + 1}. {scenario.ExecutionHistory[i]}");`)
	out.line(3, "}")
	out.line(3, "return scenario;")
	out.line(2, "}")
	out.line(1, "}")
	out.blank()

	g.program(out, cls+".Execute();")
	return out.String()
}

func (g *CSharpGenerator) GenerateFromVisualScript(v *scenario.VisualScript) string {
	cls := className(v.Name, "Program")
	handlers := scriptHandlers(v, func(prefix, name string) string {
		if prefix == "" {
			return pascalCase(name)
		}
		return pascalCase(prefix) + pascalCase(name)
	}, "Run", "ExecuteLogic", "CheckCondition", "InitializeGuards", "Variables", "ExecutionLog", "Guards", cls)

	var conds []string
	for _, n := range v.NodesOfType(scenario.NodeCondition) {
		conds = append(conds, n.Condition())
	}
	guards := collectGuards(conds)

	out := &src{}
	header(out, "//", "visual script", v.Name, CSharp, g.clock)
	out.blank()
	g.usings(out)
	out.line(0, "namespace %s", csNamespace)
	out.line(0, "{")

	doc := v.Description
	if doc == "" {
		doc = "Generated visual script"
	}
	out.line(1, "// %s", commentSafe(doc))
	out.line(1, "public class %s", cls)
	out.line(1, "{")
	out.line(2, "public Dictionary<string, object> Variables { get; } = new Dictionary<string, object>();")
	out.line(2, "public List<string> ExecutionLog { get; } = new List<string>();")
	out.blank()
	g.guardMembers(out, guards, "ExecutionLog")

	out.line(2, "public %s()", cls)
	out.line(2, "{")
	for _, k := range sortedKeys(v.Variables) {
		out.line(3, "Variables[%s] = %s;", cQuote(k, false), csValue(v.Variables[k]))
	}
	for _, n := range v.NodesOfType(scenario.NodeVariable) {
		val, _ := n.Value()
		out.line(3, "Variables[%s] = %s;", cQuote(variableNodeName(&n), false), csValue(val))
	}
	out.line(3, "InitializeGuards();")
	out.line(2, "}")
	out.blank()

	for _, h := range handlers {
		n := h.node
		switch n.Type {
		case scenario.NodeEvent:
			event, _ := n.Properties["event_name"].(string)
			if event == "" {
				event = "unnamed_event"
			}
			out.line(2, "// Event: %s", commentSafe(n.Name))
			out.line(2, "public bool %s(object data = null)", h.method)
			out.line(2, "{")
			out.line(3, "ExecutionLog.Add(%s);", cQuote("event: "+event, false))
			out.line(3, "return true;")
			out.line(2, "}")
		case scenario.NodeAction:
			action, _ := n.Properties["action"].(string)
			if action == "" {
				action = "unknown_action"
			}
			out.line(2, "// Action: %s", commentSafe(n.Name))
			out.line(2, "public bool %s(object parameters = null)", h.method)
			out.line(2, "{")
			out.line(3, "ExecutionLog.Add(%s);", cQuote("action: "+action, false))
			switch action {
			case "set_variable":
				name, _ := n.Properties["variable_name"].(string)
				val, _ := n.Value()
				out.line(3, "Variables[%s] = %s;", cQuote(name, false), csValue(val))
			case "log_message":
				msg, _ := n.Properties["message"].(string)
				out.line(3, "ExecutionLog.Add(%s);", cQuote(msg, false))
			}
			out.line(3, "return true;")
			out.line(2, "}")
		case scenario.NodeFunction:
			out.line(2, "// Function: %s", commentSafe(n.Name))
			if expr, ok := n.Properties["return_expression"].(string); ok && expr != "" {
				out.line(2, "// returns: %s", commentSafe(expr))
			}
			out.line(2, "public object %s(params object[] args)", h.method)
			out.line(2, "{")
			out.line(3, "ExecutionLog.Add(%s);", cQuote("function: "+n.Name, false))
			out.line(3, "return null;")
			out.line(2, "}")
		}
		out.blank()
	}

	methods := make(map[string]string, len(handlers))
	for _, h := range handlers {
		methods[h.node.ID] = h.method
	}
	order, ordered := executionOrder(v)

	out.line(2, "public bool ExecuteLogic()")
	out.line(2, "{")
	for _, l := range connectionLines(v) {
		out.line(3, "// %s", l)
	}
	if !ordered {
		out.line(3, "// cycle detected: nodes run in storage order")
	}
	out.line(3, `ExecutionLog.Add("logic started");`)
	for _, n := range order {
		switch n.Type {
		case scenario.NodeEvent, scenario.NodeAction, scenario.NodeFunction:
			out.line(3, "%s();", methods[n.ID])
		case scenario.NodeCondition:
			out.line(3, `ExecutionLog.Add("condition " + %s + ": " + CheckCondition(%s));`, cQuote(n.Condition(), false), cQuote(n.Condition(), false))
		case scenario.NodeVariable:
			out.line(3, "// variable %s", commentSafe(variableNodeName(n)))
		case scenario.NodeComment:
			out.line(3, "// %s", commentSafe(n.Name))
		}
	}
	out.line(3, "return true;")
	out.line(2, "}")
	out.blank()

	out.line(2, "public void Run()")
	out.line(2, "{")
	out.line(3, "ExecuteLogic();")
	out.line(3, "for (var i = 0; i < ExecutionLog.Count; i++)")
	out.line(3, "{")
	out.line(4, `Console.WriteLine($"{i + 1}. {ExecutionLog[i]}");`)
	out.line(3, "}")
	out.line(2, "}")
	out.line(1, "}")
	out.blank()

	g.program(out, "new "+cls+"().Run();")
	return out.String()
}
