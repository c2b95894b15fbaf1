package condition

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
)

// ErrDivisionByZero is returned when / or % has a zero right operand.
var ErrDivisionByZero = errors.New("division by zero")

// UndefinedError reports a name with no binding.
type UndefinedError struct {
	Name string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("name %q is not defined", e.Name)
}

// TypeError reports an operator applied to operands it does not support.
type TypeError struct {
	Op          string
	Left, Right string
}

func (e *TypeError) Error() string {
	if e.Right == "" {
		return fmt.Sprintf("unsupported operand type for %s: %s", e.Op, e.Left)
	}
	return fmt.Sprintf("unsupported operand types for %s: %s and %s", e.Op, e.Left, e.Right)
}

// exactInt applies + - or * and reports false when the result does not fit
// in an int64.
func exactInt(op string, a, b int64) (int64, bool) {
	switch op {
	case "+":
		r := a + b
		return r, (r > a) == (b > 0)
	case "-":
		r := a - b
		return r, (r < a) == (b > 0)
	case "*":
		if a == 0 || b == 0 {
			return 0, true
		}
		r := a * b
		if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return 0, false
		}
		return r, true
	}
	return 0, false
}

type node interface {
	eval(env map[string]interface{}) (interface{}, error)
}

type literalNode struct {
	value interface{}
}

func (n *literalNode) eval(map[string]interface{}) (interface{}, error) {
	return n.value, nil
}

type nameNode struct {
	name string
}

func (n *nameNode) eval(env map[string]interface{}) (interface{}, error) {
	v, ok := env[n.name]
	if !ok {
		return nil, &UndefinedError{Name: n.name}
	}
	return normalize(v), nil
}

type listNode struct {
	items []node
}

func (n *listNode) eval(env map[string]interface{}) (interface{}, error) {
	out := make([]interface{}, 0, len(n.items))
	for _, item := range n.items {
		v, err := item.eval(env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

type notNode struct {
	operand node
}

func (n *notNode) eval(env map[string]interface{}) (interface{}, error) {
	v, err := n.operand.eval(env)
	if err != nil {
		return nil, err
	}
	return !Truthy(v), nil
}

// logicalNode short-circuits and yields the deciding operand, so
// `name or "guest"` evaluates to a value rather than a bool.
type logicalNode struct {
	op          string
	left, right node
}

func (n *logicalNode) eval(env map[string]interface{}) (interface{}, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	if n.op == "and" && !Truthy(l) {
		return l, nil
	}
	if n.op == "or" && Truthy(l) {
		return l, nil
	}
	return n.right.eval(env)
}

type negNode struct {
	op      string
	operand node
}

func (n *negNode) eval(env map[string]interface{}) (interface{}, error) {
	v, err := n.operand.eval(env)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case int64:
		if n.op == "-" {
			if x == math.MinInt64 {
				return -float64(x), nil
			}
			return -x, nil
		}
		return x, nil
	case float64:
		if n.op == "-" {
			return -x, nil
		}
		return x, nil
	}
	return nil, &TypeError{Op: "unary " + n.op, Left: typeName(v)}
}

type arithNode struct {
	op          string
	left, right node
}

func (n *arithNode) eval(env map[string]interface{}) (interface{}, error) {
	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}

	if n.op == "+" {
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs, nil
			}
		}
	}

	li, lInt := l.(int64)
	ri, rInt := r.(int64)
	if lInt && rInt {
		switch n.op {
		case "+", "-", "*":
			if v, ok := exactInt(n.op, li, ri); ok {
				return v, nil
			}
			// out of int64 range; continue in float64
		case "/":
			if ri == 0 {
				return nil, ErrDivisionByZero
			}
			return float64(li) / float64(ri), nil
		case "%":
			if ri == 0 {
				return nil, ErrDivisionByZero
			}
			m := li % ri
			// result takes the sign of the divisor
			if m != 0 && (m < 0) != (ri < 0) {
				m += ri
			}
			return m, nil
		}
	}

	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, &TypeError{Op: n.op, Left: typeName(l), Right: typeName(r)}
	}
	switch n.op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, ErrDivisionByZero
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, ErrDivisionByZero
		}
		m := math.Mod(lf, rf)
		if m != 0 && (m < 0) != (rf < 0) {
			m += rf
		}
		return m, nil
	}
	return nil, fmt.Errorf("unknown operator %s", n.op)
}

// compareNode holds a comparison chain; a < b < c means a < b and b < c,
// with each operand evaluated at most once.
type compareNode struct {
	operands []node
	ops      []string
}

func (n *compareNode) eval(env map[string]interface{}) (interface{}, error) {
	left, err := n.operands[0].eval(env)
	if err != nil {
		return nil, err
	}
	for i, op := range n.ops {
		right, err := n.operands[i+1].eval(env)
		if err != nil {
			return nil, err
		}
		ok, err := compare(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func compare(op string, l, r interface{}) (bool, error) {
	switch op {
	case "==":
		return equal(l, r), nil
	case "!=":
		return !equal(l, r), nil
	case "in":
		return contains(r, l)
	case "not in":
		ok, err := contains(r, l)
		return !ok, err
	}

	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			return order(op, cmpFloat(lf, rf)), nil
		}
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return order(op, strings.Compare(ls, rs)), nil
		}
	}
	return false, &TypeError{Op: op, Left: typeName(l), Right: typeName(r)}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func order(op string, c int) bool {
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return false
}

// equal compares numbers by value across int and float; other kinds must
// match exactly. Values of different kinds are unequal, never an error.
func equal(l, r interface{}) bool {
	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			return lf == rf
		}
		return false
	}
	switch lv := l.(type) {
	case nil:
		return r == nil
	case bool:
		rv, ok := r.(bool)
		return ok && lv == rv
	case string:
		rv, ok := r.(string)
		return ok && lv == rv
	}
	return reflect.DeepEqual(l, r)
}

func contains(container, item interface{}) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, &TypeError{Op: "in", Left: typeName(item), Right: "string"}
		}
		return strings.Contains(c, s), nil
	case []interface{}:
		for _, elem := range c {
			if equal(item, normalize(elem)) {
				return true, nil
			}
		}
		return false, nil
	case map[string]interface{}:
		key, ok := item.(string)
		if !ok {
			return false, nil
		}
		_, found := c[key]
		return found, nil
	}
	return false, &TypeError{Op: "in", Left: typeName(item), Right: typeName(container)}
}

// Truthy applies the usual emptiness rules: nil, false, zero, "" and empty
// collections are false.
func Truthy(v interface{}) bool {
	switch x := normalize(v).(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case []interface{}:
		return len(x) > 0
	case map[string]interface{}:
		return len(x) > 0
	}
	return true
}

// normalize folds Go numeric kinds into int64/float64 and typed slices into
// []interface{} so bindings decoded from JSON or built in code behave alike.
func normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		if uint64(x) > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return float64(x)
		}
		return int64(x)
	case float32:
		return float64(x)
	case []string:
		out := make([]interface{}, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []int:
		out := make([]interface{}, len(x))
		for i, n := range x {
			out[i] = int64(n)
		}
		return out
	}
	return v
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "None"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case []interface{}:
		return "list"
	case map[string]interface{}:
		return "dict"
	}
	return fmt.Sprintf("%T", v)
}
