package codegen

import (
	"github.com/AaronLay10/SentientStudio/internal/scenario"
)

var cppReserved = []string{
	"alignas", "alignof", "and", "asm", "auto", "bool", "break", "case",
	"catch", "char", "class", "const", "constexpr", "continue", "decltype",
	"default", "delete", "do", "double", "else", "enum", "explicit", "export",
	"extern", "false", "float", "for", "friend", "goto", "if", "inline", "int",
	"long", "mutable", "namespace", "new", "noexcept", "not", "nullptr",
	"operator", "or", "private", "protected", "public", "register", "return",
	"short", "signed", "sizeof", "static", "struct", "switch", "template",
	"this", "throw", "true", "try", "typedef", "typeid", "typename", "union",
	"unsigned", "using", "virtual", "void", "volatile", "while", "xor",
	"run", "executeLogic", "checkCondition", "variables", "executionLog", "guards", "main",
}

// CppGenerator emits a self-contained C++17 translation unit with main.
type CppGenerator struct {
	clock Clock
}

func NewCpp(clock Clock) *CppGenerator {
	return &CppGenerator{clock: clock}
}

func (g *CppGenerator) Language() Language { return Cpp }
func (g *CppGenerator) Extension() string  { return ".cpp" }

func (g *CppGenerator) prelude(out *src) {
	out.line(0, "#include <algorithm>")
	out.line(0, "#include <functional>")
	out.line(0, "#include <iostream>")
	out.line(0, "#include <map>")
	out.line(0, "#include <stdexcept>")
	out.line(0, "#include <string>")
	out.line(0, "#include <vector>")
	out.blank()
	out.line(0, "using Variables = std::map<std::string, std::string>;")
	out.line(0, "using Guard = std::function<bool(const Variables&)>;")
	out.blank()
}

func (g *CppGenerator) guardMembers(out *src, gs guardSet, log string) {
	out.line(1, "void initializeGuards() {")
	for _, e := range gs.order {
		out.line(2, "guards[%s] = [](const Variables&) { return %s; };", cQuote(e, true), csBool(gs.constant[e]))
	}
	for _, e := range gs.open {
		out.line(2, "// register guards[%s]", cQuote(commentSafe(e), true))
	}
	out.line(1, "}")
	out.blank()
	out.line(1, "bool checkCondition(const std::string& expression) {")
	out.line(2, "auto it = guards.find(expression);")
	out.line(2, "if (it == guards.end()) {")
	out.line(3, `%s.push_back("no guard registered for: " + expression);`, log)
	out.line(3, "return false;")
	out.line(2, "}")
	out.line(2, "try {")
	out.line(3, "return it->second(variables);")
	out.line(2, "} catch (const std::exception& ex) {")
	out.line(3, `%s.push_back(std::string("guard failed: ") + ex.what());`, log)
	out.line(3, "return false;")
	out.line(2, "}")
	out.line(1, "}")
	out.blank()
}

func (g *CppGenerator) GenerateFromScenario(s *scenario.Scenario) string {
	cls := className(s.Name, "StateType", "ScenarioState", "ScenarioTransition", "Variables", "Guard")
	conds := make([]string, len(s.Transitions))
	for i, tr := range s.Transitions {
		conds[i] = tr.Condition
	}
	guards := collectGuards(conds)

	out := &src{}
	header(out, "//", "scenario", s.Name, Cpp, g.clock)
	out.blank()
	g.prelude(out)

	out.line(0, "enum class StateType {")
	for _, m := range enumMembers(s, pascalCase) {
		out.line(1, "%s,", m)
	}
	out.line(0, "};")
	out.blank()

	out.line(0, "struct ScenarioState {")
	out.line(1, "std::string id;")
	out.line(1, "std::string name;")
	out.line(1, "StateType type;")
	out.line(1, "std::vector<double> position;")
	out.line(1, "std::string description;")
	out.line(0, "};")
	out.blank()

	out.line(0, "struct ScenarioTransition {")
	out.line(1, "std::string id;")
	out.line(1, "std::string name;")
	out.line(1, "std::string sourceStateId;")
	out.line(1, "std::string targetStateId;")
	out.line(1, "std::string condition;")
	out.line(1, "int priority;")
	out.line(1, "std::vector<std::string> actions;")
	out.line(0, "};")
	out.blank()

	doc := s.Description
	if doc == "" {
		doc = "Generated VR/AR scenario"
	}
	out.line(0, "// %s", commentSafe(doc))
	out.line(0, "class %s {", cls)
	out.line(0, "public:")
	out.line(1, "std::string name = %s;", cQuote(s.Name, true))
	out.line(1, "std::map<std::string, ScenarioState> states;")
	out.line(1, "std::vector<ScenarioTransition> transitions;")
	out.line(1, "std::map<std::string, Guard> guards;")
	out.line(1, "Variables variables;")
	out.line(1, "std::vector<std::string> executionHistory;")
	out.line(1, "const ScenarioState* currentState = nullptr;")
	out.line(1, "int maxRounds = %d;", 2*len(s.Transitions))
	out.blank()

	out.line(1, "%s() {", cls)
	out.line(2, "initializeVariables();")
	out.line(2, "initializeGuards();")
	out.line(2, "initializeStates();")
	out.line(2, "initializeTransitions();")
	out.line(1, "}")
	out.blank()

	out.line(1, "void initializeVariables() {")
	for _, k := range sortedKeys(s.Variables) {
		out.line(2, "variables[%s] = %s;", cQuote(k, true), cppValue(s.Variables[k]))
	}
	out.line(1, "}")
	out.blank()
	g.guardMembers(out, guards, "executionHistory")

	out.line(1, "void initializeStates() {")
	for _, st := range s.States {
		out.line(2, "states[%s] = ScenarioState{%s, %s, StateType::%s, {%s, %s, %s}, %s};",
			cQuote(st.ID, true), cQuote(st.ID, true), cQuote(st.Name, true), pascalCase(string(st.Type)),
			formatFloat(st.Position.X), formatFloat(st.Position.Y), formatFloat(st.Position.Z),
			cQuote(st.Description, true))
	}
	out.line(1, "}")
	out.blank()

	out.line(1, "void initializeTransitions() {")
	for _, tr := range s.Transitions {
		actions := "{}"
		if len(tr.Actions) > 0 {
			actions = "{"
			for i, a := range tr.Actions {
				if i > 0 {
					actions += ", "
				}
				actions += cQuote(jsonText(a), true)
			}
			actions += "}"
		}
		out.line(2, "transitions.push_back(ScenarioTransition{%s, %s, %s, %s, %s, %d, %s});",
			cQuote(tr.ID, true), cQuote(tr.Name, true), cQuote(tr.Source, true), cQuote(tr.Target, true),
			cQuote(tr.Condition, true), tr.Priority, actions)
	}
	out.line(1, "}")
	out.blank()

	out.line(1, "const ScenarioState* start() {")
	if st := startState(s); st != nil {
		out.line(2, "auto it = states.find(%s);", cQuote(st.ID, true))
		out.line(2, "currentState = it == states.end() ? nullptr : &it->second;")
	} else {
		out.line(2, "currentState = nullptr;")
	}
	out.line(2, "if (currentState != nullptr) {")
	out.line(3, `executionHistory.push_back("start: " + currentState->name);`)
	out.line(2, "}")
	out.line(2, "return currentState;")
	out.line(1, "}")
	out.blank()

	out.line(1, "bool executeTransition(const ScenarioTransition& transition) {")
	out.line(2, "if (!checkCondition(transition.condition)) {")
	out.line(3, "return false;")
	out.line(2, "}")
	out.line(2, "auto it = states.find(transition.targetStateId);")
	out.line(2, "if (it == states.end()) {")
	out.line(3, "return false;")
	out.line(2, "}")
	out.line(2, "for (const auto& action : transition.actions) {")
	out.line(3, `executionHistory.push_back("action: " + action);`)
	out.line(2, "}")
	out.line(2, "currentState = &it->second;")
	out.line(2, `executionHistory.push_back(transition.id + " -> " + currentState->name);`)
	out.line(2, "return true;")
	out.line(1, "}")
	out.blank()

	out.line(1, "bool run() {")
	out.line(2, "if (start() == nullptr) {")
	out.line(3, "return false;")
	out.line(2, "}")
	out.line(2, "for (int round = 0; round < maxRounds; ++round) {")
	out.line(3, "std::vector<const ScenarioTransition*> candidates;")
	out.line(3, "for (const auto& t : transitions) {")
	out.line(4, "if (t.sourceStateId == currentState->id) {")
	out.line(5, "candidates.push_back(&t);")
	out.line(4, "}")
	out.line(3, "}")
	out.line(3, "std::stable_sort(candidates.begin(), candidates.end(),")
	out.line(4, "[](const ScenarioTransition* a, const ScenarioTransition* b) { return a->priority > b->priority; });")
	out.line(3, "bool taken = false;")
	out.line(3, "for (const auto* t : candidates) {")
	out.line(4, "if (executeTransition(*t)) {")
	out.line(5, "taken = true;")
	out.line(5, "break;")
	out.line(4, "}")
	out.line(3, "}")
	out.line(3, "if (!taken) {")
	out.line(4, "break;")
	out.line(3, "}")
	out.line(2, "}")
	out.line(2, "return true;")
	out.line(1, "}")
	out.line(0, "};")
	out.blank()

	out.line(0, "int main() {")
	out.line(1, "%s scenario;", cls)
	out.line(1, "scenario.run();")
	out.line(1, "int step = 1;")
	out.line(1, "for (const auto& entry : scenario.executionHistory) {")
	out.line(2, `std::cout << step++ << ". " << entry << std::endl;`)
	out.line(1, "}")
	out.line(1, "return 0;")
	out.line(0, "}")
	return out.String()
}

func (g *CppGenerator) GenerateFromVisualScript(v *scenario.VisualScript) string {
	cls := className(v.Name, "Variables", "Guard")
	reserved := append([]string{cls}, cppReserved...)
	handlers := scriptHandlers(v, func(prefix, name string) string {
		if prefix == "" {
			return camelCase(name)
		}
		return prefix + pascalCase(name)
	}, reserved...)

	var conds []string
	for _, n := range v.NodesOfType(scenario.NodeCondition) {
		conds = append(conds, n.Condition())
	}
	guards := collectGuards(conds)

	out := &src{}
	header(out, "//", "visual script", v.Name, Cpp, g.clock)
	out.blank()
	g.prelude(out)

	doc := v.Description
	if doc == "" {
		doc = "Generated visual script"
	}
	out.line(0, "// %s", commentSafe(doc))
	out.line(0, "class %s {", cls)
	out.line(0, "public:")
	out.line(1, "Variables variables;")
	out.line(1, "std::vector<std::string> executionLog;")
	out.line(1, "std::map<std::string, Guard> guards;")
	out.blank()

	out.line(1, "%s() {", cls)
	for _, k := range sortedKeys(v.Variables) {
		out.line(2, "variables[%s] = %s;", cQuote(k, true), cppValue(v.Variables[k]))
	}
	for _, n := range v.NodesOfType(scenario.NodeVariable) {
		val, _ := n.Value()
		out.line(2, "variables[%s] = %s;", cQuote(variableNodeName(&n), true), cppValue(val))
	}
	out.line(2, "initializeGuards();")
	out.line(1, "}")
	out.blank()
	g.guardMembers(out, guards, "executionLog")

	for _, h := range handlers {
		n := h.node
		switch n.Type {
		case scenario.NodeEvent:
			event, _ := n.Properties["event_name"].(string)
			if event == "" {
				event = "unnamed_event"
			}
			out.line(1, "// Event: %s", commentSafe(n.Name))
			out.line(1, "bool %s() {", h.method)
			out.line(2, "executionLog.push_back(%s);", cQuote("event: "+event, true))
			out.line(2, "return true;")
			out.line(1, "}")
		case scenario.NodeAction:
			action, _ := n.Properties["action"].(string)
			if action == "" {
				action = "unknown_action"
			}
			out.line(1, "// Action: %s", commentSafe(n.Name))
			out.line(1, "bool %s() {", h.method)
			out.line(2, "executionLog.push_back(%s);", cQuote("action: "+action, true))
			switch action {
			case "set_variable":
				name, _ := n.Properties["variable_name"].(string)
				val, _ := n.Value()
				out.line(2, "variables[%s] = %s;", cQuote(name, true), cppValue(val))
			case "log_message":
				msg, _ := n.Properties["message"].(string)
				out.line(2, "executionLog.push_back(%s);", cQuote(msg, true))
			}
			out.line(2, "return true;")
			out.line(1, "}")
		case scenario.NodeFunction:
			out.line(1, "// Function: %s", commentSafe(n.Name))
			if expr, ok := n.Properties["return_expression"].(string); ok && expr != "" {
				out.line(1, "// returns: %s", commentSafe(expr))
			}
			out.line(1, "std::string %s() {", h.method)
			out.line(2, "executionLog.push_back(%s);", cQuote("function: "+n.Name, true))
			out.line(2, `return "";`)
			out.line(1, "}")
		}
		out.blank()
	}

	methods := make(map[string]string, len(handlers))
	for _, h := range handlers {
		methods[h.node.ID] = h.method
	}
	order, ordered := executionOrder(v)

	out.line(1, "bool executeLogic() {")
	for _, l := range connectionLines(v) {
		out.line(2, "// %s", l)
	}
	if !ordered {
		out.line(2, "// cycle detected: nodes run in storage order")
	}
	out.line(2, `executionLog.push_back("logic started");`)
	for _, n := range order {
		switch n.Type {
		case scenario.NodeEvent, scenario.NodeAction, scenario.NodeFunction:
			out.line(2, "%s();", methods[n.ID])
		case scenario.NodeCondition:
			out.line(2, `executionLog.push_back(std::string("condition ") + %s + ": " + (checkCondition(%s) ? "true" : "false"));`,
				cQuote(n.Condition(), true), cQuote(n.Condition(), true))
		case scenario.NodeVariable:
			out.line(2, "// variable %s", commentSafe(variableNodeName(n)))
		case scenario.NodeComment:
			out.line(2, "// %s", commentSafe(n.Name))
		}
	}
	out.line(2, "return true;")
	out.line(1, "}")
	out.blank()

	out.line(1, "void run() {")
	out.line(2, "executeLogic();")
	out.line(2, "int step = 1;")
	out.line(2, "for (const auto& entry : executionLog) {")
	out.line(3, `std::cout << step++ << ". " << entry << std::endl;`)
	out.line(2, "}")
	out.line(1, "}")
	out.line(0, "};")
	out.blank()

	out.line(0, "int main() {")
	out.line(1, "%s script;", cls)
	out.line(1, "script.run();")
	out.line(1, "return 0;")
	out.line(0, "}")
	return out.String()
}
