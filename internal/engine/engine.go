// Package engine simulates scenario state machines and visual scripts.
//
// Execution is logical: states are activated and deactivated as trace
// events, transition actions are logged, nothing drives a 3D runtime.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AaronLay10/SentientStudio/internal/condition"
	"github.com/AaronLay10/SentientStudio/internal/events"
	"github.com/AaronLay10/SentientStudio/internal/scenario"
)

// ErrNilScenario is returned when Execute is called without a scenario.
var ErrNilScenario = errors.New("nil scenario")

// StopReason says why a walk ended.
type StopReason string

const (
	StopNoStates        StopReason = "no_states"
	StopNoStart         StopReason = "no_start"
	StopExhausted       StopReason = "exhausted"
	StopNoConditionHeld StopReason = "no_condition_held"
	StopRoundCap        StopReason = "round_cap"
	StopEndReached      StopReason = "end_reached"
)

// Options tune how a scenario walk starts, stops and is judged.
type Options struct {
	// AllowStartFallback starts from the first state when no start-typed
	// state exists. With it off such a scenario fails with StopNoStart.
	AllowStartFallback bool
	// RequireEndState makes OK depend on the walk finishing in an end state.
	RequireEndState bool
	// StopAtEnd ends the walk as soon as an end-typed state is entered.
	StopAtEnd bool
}

// DefaultOptions keep the permissive behavior authoring tools expect.
func DefaultOptions() Options {
	return Options{AllowStartFallback: true}
}

// EmitFunc receives trace events. The default forwards to events.Emit.
type EmitFunc func(level, name, msg string, fields map[string]interface{})

func emitToBus(level, name, msg string, fields map[string]interface{}) {
	events.Emit(level, name, msg, fields)
}

// Trace is the structured record of one scenario walk.
type Trace struct {
	ScenarioID   string     `json:"scenario_id"`
	OK           bool       `json:"ok"`
	Path         []string   `json:"path"`
	StateIDs     []string   `json:"state_ids"`
	Rounds       int        `json:"rounds"`
	MaxRounds    int        `json:"max_rounds"`
	Stopped      StopReason `json:"stopped"`
	ReachedEnd   bool       `json:"reached_end"`
	UsedFallback bool       `json:"used_start_fallback"`
	GuardErrors  []string   `json:"guard_errors,omitempty"`
	Log          []string   `json:"log"`
}

// Input carries per-call bindings and extra event fields (a test run id,
// for example). Nil Bindings means the scenario's own variables.
type Input struct {
	Bindings map[string]interface{}
	Fields   map[string]interface{}
}

// Engine walks scenario graphs. It never mutates the scenario and is safe
// for concurrent use.
type Engine struct {
	opts Options
	eval *condition.Evaluator
	emit EmitFunc
}

// New creates an engine. A nil evaluator gets a private cache.
func New(opts Options, eval *condition.Evaluator) *Engine {
	if eval == nil {
		eval = condition.NewEvaluator(condition.DefaultCacheSize)
	}
	return &Engine{opts: opts, eval: eval, emit: emitToBus}
}

// SetEmitter replaces the trace event sink. Nil silences events.
func (e *Engine) SetEmitter(fn EmitFunc) {
	if fn == nil {
		fn = func(string, string, string, map[string]interface{}) {}
	}
	e.emit = fn
}

// Options returns the engine configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Execute walks s using its own variables as bindings.
func (e *Engine) Execute(s *scenario.Scenario) (*Trace, error) {
	return e.Run(s, Input{})
}

// Run walks the scenario from its start state. Each round collects the
// current state's outgoing transitions, orders them by descending priority
// (ties keep insertion order) and takes the first whose guard holds and
// whose target exists. The walk is capped at 2 rounds per transition so
// cycles with always-true guards terminate.
func (e *Engine) Run(s *scenario.Scenario, in Input) (tr *Trace, err error) {
	if s == nil {
		return nil, ErrNilScenario
	}

	tr = &Trace{ScenarioID: s.ID}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scenario %s: engine panic: %v", s.ID, r)
			tr.OK = false
		}
	}()

	bindings := in.Bindings
	if bindings == nil {
		bindings = s.Variables
	}
	fields := func(extra map[string]interface{}) map[string]interface{} {
		out := map[string]interface{}{"scenario_id": s.ID}
		for k, v := range in.Fields {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}

	tr.logf("executing scenario '%s'", s.Name)
	e.emit("info", "scenario.started", s.Name, fields(nil))

	if len(s.States) == 0 {
		tr.Stopped = StopNoStates
		tr.logf("scenario has no states")
		e.emit("error", "scenario.failed", "scenario has no states", fields(map[string]interface{}{"reason": string(tr.Stopped)}))
		return tr, nil
	}

	current := s.StartState()
	if current == nil {
		if !e.opts.AllowStartFallback {
			tr.Stopped = StopNoStart
			tr.logf("no start state")
			e.emit("error", "scenario.failed", "no start state", fields(map[string]interface{}{"reason": string(tr.Stopped)}))
			return tr, nil
		}
		current = &s.States[0]
		tr.UsedFallback = true
		tr.logf("no start state, falling back to '%s'", current.Name)
	}

	e.emit("info", "state.activated", current.Name, fields(map[string]interface{}{"state_id": current.ID}))
	tr.visit(current)

	tr.MaxRounds = 2 * len(s.Transitions)
	tr.Stopped = StopRoundCap
	if tr.MaxRounds == 0 {
		tr.Stopped = StopExhausted
	}

	for round := 0; round < tr.MaxRounds; round++ {
		if e.opts.StopAtEnd && current.Type == scenario.StateEnd {
			tr.Stopped = StopEndReached
			break
		}

		tr.Rounds++
		candidates := s.OutgoingTransitions(current.ID)
		if len(candidates) == 0 {
			tr.Stopped = StopExhausted
			break
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Priority > candidates[j].Priority
		})

		taken := false
		for _, t := range candidates {
			ok, gerr := e.eval.Eval(t.Condition, bindings)
			if gerr != nil {
				tr.GuardErrors = append(tr.GuardErrors, fmt.Sprintf("transition %s: %v", t.ID, gerr))
				e.emit("warn", "transition.guard_failed", gerr.Error(), fields(map[string]interface{}{
					"transition_id": t.ID,
					"condition":     t.Condition,
				}))
				continue
			}
			if !ok {
				continue
			}
			target := s.StateByID(t.Target)
			if target == nil {
				continue
			}

			e.emit("info", "transition.taken", t.Name, fields(map[string]interface{}{
				"transition_id": t.ID,
				"from":          current.ID,
				"to":            target.ID,
				"priority":      t.Priority,
			}))
			for i, action := range t.Actions {
				tr.logf("  action %d on %s: %v", i+1, t.ID, action)
				e.emit("debug", "transition.action", "", fields(map[string]interface{}{
					"transition_id": t.ID,
					"action":        action,
				}))
			}

			e.emit("info", "state.deactivated", current.Name, fields(map[string]interface{}{"state_id": current.ID}))
			e.emit("info", "state.activated", target.Name, fields(map[string]interface{}{"state_id": target.ID}))
			current = target
			tr.visit(current)
			taken = true
			break
		}

		if !taken {
			tr.Stopped = StopNoConditionHeld
			break
		}
	}

	if tr.Stopped == StopRoundCap && e.opts.StopAtEnd && current.Type == scenario.StateEnd {
		tr.Stopped = StopEndReached
	}
	tr.ReachedEnd = current.Type == scenario.StateEnd
	tr.OK = true
	if e.opts.RequireEndState && !tr.ReachedEnd {
		tr.OK = false
		tr.logf("walk stopped outside an end state")
	}

	tr.logf("scenario '%s' finished (%s). path: %s", s.Name, tr.Stopped, strings.Join(tr.Path, " -> "))

	done := fields(map[string]interface{}{
		"path":        tr.Path,
		"rounds":      tr.Rounds,
		"stopped":     string(tr.Stopped),
		"reached_end": tr.ReachedEnd,
	})
	if tr.OK {
		e.emit("info", "scenario.completed", s.Name, done)
	} else {
		e.emit("warn", "scenario.failed", "end state not reached", done)
	}
	return tr, nil
}

func (t *Trace) visit(st *scenario.State) {
	t.Path = append(t.Path, st.Name)
	t.StateIDs = append(t.StateIDs, st.ID)
}

func (t *Trace) logf(format string, args ...interface{}) {
	t.Log = append(t.Log, fmt.Sprintf(format, args...))
}
