// Package codegen turns scenarios and visual scripts into Python, C# and
// C++ scaffolding.
package codegen

import (
	"fmt"
	"strings"
	"time"

	"github.com/AaronLay10/SentientStudio/internal/condition"
	"github.com/AaronLay10/SentientStudio/internal/engine"
	"github.com/AaronLay10/SentientStudio/internal/scenario"
)

// Language identifies a generation target.
type Language string

const (
	Python Language = "python"
	CSharp Language = "csharp"
	Cpp    Language = "cpp"
)

// LanguageInfo describes a supported language for clients.
type LanguageInfo struct {
	Value     Language `json:"value"`
	Name      string   `json:"name"`
	Extension string   `json:"extension"`
}

// Strategy generates source text for one target language. Output depends
// only on the input graph and the clock reading in the header.
type Strategy interface {
	Language() Language
	Extension() string
	GenerateFromScenario(s *scenario.Scenario) string
	GenerateFromVisualScript(v *scenario.VisualScript) string
}

// Clock supplies the generation timestamp.
type Clock func() time.Time

func (c Clock) stamp() string {
	if c == nil {
		c = time.Now
	}
	return c().UTC().Format(time.RFC3339)
}

// src accumulates generated lines with a fixed four-space indent unit.
type src struct {
	b strings.Builder
}

func (s *src) line(depth int, format string, args ...interface{}) {
	s.b.WriteString(strings.Repeat("    ", depth))
	if len(args) == 0 {
		s.b.WriteString(format)
	} else {
		fmt.Fprintf(&s.b, format, args...)
	}
	s.b.WriteByte('\n')
}

func (s *src) blank() {
	s.b.WriteByte('\n')
}

func (s *src) String() string {
	return s.b.String()
}

// header writes the comment block every generated file starts with.
func header(s *src, commentPrefix, sourceKind, name string, lang Language, clock Clock) {
	s.line(0, "%s Generated from %s: %s", commentPrefix, sourceKind, commentSafe(name))
	s.line(0, "%s Language: %s", commentPrefix, lang)
	s.line(0, "%s Generated at: %s", commentPrefix, clock.stamp())
}

// startState mirrors the engine's choice: first start-typed state, else the
// first state.
func startState(s *scenario.Scenario) *scenario.State {
	if st := s.StartState(); st != nil {
		return st
	}
	if len(s.States) > 0 {
		return &s.States[0]
	}
	return nil
}

// scriptHandler is a generated method for one event, action or function node.
type scriptHandler struct {
	node   *scenario.Node
	method string
}

// scriptHandlers names handler methods in storage order. style picks the
// method naming convention of the target language; reserved names (keywords,
// generated members) are never handed out unsuffixed.
func scriptHandlers(v *scenario.VisualScript, style func(prefix, name string) string, reserved ...string) []scriptHandler {
	names := uniqueNamer{}
	for _, r := range reserved {
		names[r] = 1
	}
	var out []scriptHandler
	for i := range v.Nodes {
		n := &v.Nodes[i]
		var method string
		switch n.Type {
		case scenario.NodeEvent:
			method = style("handle", n.Name)
		case scenario.NodeAction:
			method = style("execute", n.Name)
		case scenario.NodeFunction:
			fn, _ := n.Properties["function_name"].(string)
			if fn == "" {
				fn = "func_" + shortID(n.ID)
			}
			method = style("", fn)
		default:
			continue
		}
		out = append(out, scriptHandler{node: n, method: names.name(method)})
	}
	return out
}

// executionOrder returns nodes in the order the script engine would run
// them, and whether that order is topological.
func executionOrder(v *scenario.VisualScript) ([]*scenario.Node, bool) {
	order, err := engine.ExecutionOrder(v)
	ordered := err == nil
	if !ordered {
		order = make([]int, len(v.Nodes))
		for i := range order {
			order[i] = i
		}
	}
	out := make([]*scenario.Node, len(order))
	for i, idx := range order {
		out[i] = &v.Nodes[idx]
	}
	return out, ordered
}

// connectionLines describes every connection in storage order.
func connectionLines(v *scenario.VisualScript) []string {
	var out []string
	for _, c := range v.Connections {
		src, dst := v.NodeByID(c.Source), v.NodeByID(c.Target)
		if src == nil || dst == nil {
			continue
		}
		line := fmt.Sprintf("%s -> %s (%s)", commentSafe(src.Name), commentSafe(dst.Name), c.Type)
		if !c.Enabled {
			line += " [disabled]"
		}
		out = append(out, line)
	}
	return out
}

func variableNodeName(n *scenario.Node) string {
	if name, ok := n.Properties["name"].(string); ok && name != "" {
		return name
	}
	return "var_" + shortID(n.ID)
}

// constantGuard folds conditions that read no variables, a blank condition
// included. Anything else is left to guards registered at runtime.
func constantGuard(expr string) (value, ok bool) {
	prog, err := condition.Compile(expr)
	if err != nil || len(prog.Names()) > 0 {
		return false, false
	}
	held, err := prog.Bool(nil)
	if err != nil {
		return false, true
	}
	return held, true
}

// className sanitizes name and keeps it clear of the support types a
// generated file declares.
func className(name string, taken ...string) string {
	cls := SanitizeName(name)
	for _, t := range taken {
		if cls == t {
			return cls + "_"
		}
	}
	return cls
}

// enumMembers maps the scenario's state types through member, dropping
// members that collide after mapping.
func enumMembers(s *scenario.Scenario, member func(string) string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range s.StateTypes() {
		m := member(string(t))
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
