package condition

import (
	"strconv"
	"strings"
)

// Names returns the identifiers the expression reads, in first-use order.
func (p *Program) Names() []string {
	var out []string
	seen := make(map[string]bool)
	var walk func(n node)
	walk = func(n node) {
		switch x := n.(type) {
		case *nameNode:
			if !seen[x.name] {
				seen[x.name] = true
				out = append(out, x.name)
			}
		case *listNode:
			for _, item := range x.items {
				walk(item)
			}
		case *notNode:
			walk(x.operand)
		case *negNode:
			walk(x.operand)
		case *logicalNode:
			walk(x.left)
			walk(x.right)
		case *arithNode:
			walk(x.left)
			walk(x.right)
		case *compareNode:
			for _, op := range x.operands {
				walk(op)
			}
		}
	}
	walk(p.root)
	return out
}

// Python renders the program as an equivalent Python expression. Names are
// read from the mapping bound to env, so a missing name raises KeyError in
// the generated code just as it fails evaluation here.
func (p *Program) Python(env string) string {
	return pythonExpr(p.root, env)
}

func pythonExpr(n node, env string) string {
	switch x := n.(type) {
	case *literalNode:
		return pythonLiteral(x.value)
	case *nameNode:
		return env + "[" + strconv.Quote(x.name) + "]"
	case *listNode:
		items := make([]string, len(x.items))
		for i, item := range x.items {
			items[i] = pythonExpr(item, env)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case *notNode:
		return "(not " + pythonExpr(x.operand, env) + ")"
	case *negNode:
		return "(" + x.op + pythonExpr(x.operand, env) + ")"
	case *logicalNode:
		return "(" + pythonExpr(x.left, env) + " " + x.op + " " + pythonExpr(x.right, env) + ")"
	case *arithNode:
		return "(" + pythonExpr(x.left, env) + " " + x.op + " " + pythonExpr(x.right, env) + ")"
	case *compareNode:
		var b strings.Builder
		b.WriteString("(")
		b.WriteString(pythonExpr(x.operands[0], env))
		for i, op := range x.ops {
			b.WriteString(" " + op + " ")
			b.WriteString(pythonExpr(x.operands[i+1], env))
		}
		b.WriteString(")")
		return b.String()
	}
	return "False"
}

func pythonLiteral(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case string:
		return strconv.Quote(x)
	}
	return "None"
}
