// Package condition evaluates transition guards and condition-node
// expressions against a map of named bindings.
//
// Expressions are parsed into an AST once and evaluated as many times as
// needed. Only literals, names, arithmetic, comparison, membership and
// boolean operators are recognised; nothing in an expression can call code.
package condition

import (
	"fmt"
	"strings"
	"sync"
)

// Program is a compiled expression.
type Program struct {
	src  string
	root node
}

// MaxLength is the longest expression Compile accepts, in bytes.
const MaxLength = 4096

// Compile parses expr. A blank expression compiles to a program that
// evaluates to true.
func Compile(expr string) (*Program, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return &Program{root: &literalNode{value: true}}, nil
	}
	if len(src) > MaxLength {
		return nil, &SyntaxError{Pos: MaxLength, Msg: fmt.Sprintf("expression longer than %d bytes", MaxLength)}
	}
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	return &Program{src: src, root: root}, nil
}

// Source returns the trimmed expression text.
func (p *Program) Source() string {
	return p.src
}

// Eval evaluates the program and returns the resulting value: nil, bool,
// int64, float64, string or []interface{}.
func (p *Program) Eval(bindings map[string]interface{}) (interface{}, error) {
	if bindings == nil {
		bindings = map[string]interface{}{}
	}
	return p.root.eval(bindings)
}

// Bool evaluates the program and reduces the result to its truth value.
func (p *Program) Bool(bindings map[string]interface{}) (bool, error) {
	v, err := p.Eval(bindings)
	if err != nil {
		return false, err
	}
	return Truthy(v), nil
}

// DefaultCacheSize bounds the number of compiled expressions an Evaluator keeps.
const DefaultCacheSize = 1024

type cacheEntry struct {
	prog *Program
	err  error
}

// Evaluator compiles expressions on first use and caches the result,
// including compile failures. Safe for concurrent use.
type Evaluator struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	max     int
}

// NewEvaluator creates an evaluator holding at most maxEntries compiled
// expressions. When full, the cache is cleared before the next insert.
func NewEvaluator(maxEntries int) *Evaluator {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	return &Evaluator{
		entries: make(map[string]cacheEntry),
		max:     maxEntries,
	}
}

func (e *Evaluator) compile(expr string) (*Program, error) {
	e.mu.RLock()
	entry, ok := e.entries[expr]
	e.mu.RUnlock()
	if ok {
		return entry.prog, entry.err
	}

	prog, err := Compile(expr)
	if len(expr) > MaxLength {
		return prog, err
	}

	e.mu.Lock()
	if len(e.entries) >= e.max {
		e.entries = make(map[string]cacheEntry)
	}
	e.entries[expr] = cacheEntry{prog: prog, err: err}
	e.mu.Unlock()

	return prog, err
}

// Eval compiles (or reuses) expr and returns its truth value. Parse and
// evaluation errors are returned so callers can log them.
func (e *Evaluator) Eval(expr string, bindings map[string]interface{}) (bool, error) {
	prog, err := e.compile(expr)
	if err != nil {
		return false, err
	}
	return prog.Bool(bindings)
}

// Check is Eval with failures treated as false.
func (e *Evaluator) Check(expr string, bindings map[string]interface{}) bool {
	ok, err := e.Eval(expr, bindings)
	return err == nil && ok
}

// Len returns the number of cached expressions.
func (e *Evaluator) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.entries)
}

var defaultEvaluator = NewEvaluator(DefaultCacheSize)

// Check evaluates expr against bindings using a shared evaluator. A blank
// expression is true; any parse or evaluation failure is false.
func Check(expr string, bindings map[string]interface{}) bool {
	return defaultEvaluator.Check(expr, bindings)
}
