package scenario

import (
	"fmt"
	"strings"
	"testing"
)

func threeStateScenario() *Scenario {
	s := New("Demo", "p1", "dev")
	s.States = []State{
		{ID: "s1", Name: "Начало", Type: StateStart},
		{ID: "s2", Name: "Interact", Type: StateInteraction},
		{ID: "s3", Name: "Finish", Type: StateEnd},
	}
	s.Transitions = []Transition{
		{ID: "t1", Source: "s1", Target: "s2", Priority: 1},
		{ID: "t2", Source: "s2", Target: "s3", Condition: "done==True", Priority: 1},
	}
	return s
}

func TestValidate_WellFormed(t *testing.T) {
	s := threeStateScenario()
	ok, errs := Validate(s)
	if !ok {
		t.Fatalf("expected valid scenario, got errors: %v", errs)
	}
	if !s.IsValidated {
		t.Error("expected IsValidated to be set")
	}
}

func TestValidate_NoStates(t *testing.T) {
	s := New("empty", "p1", "dev")
	ok, errs := Validate(s)
	if ok {
		t.Fatal("expected empty scenario to fail validation")
	}
	// no states, no start, no end
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	if errs[0] != ErrMsgNoStates {
		t.Errorf("expected first error %q, got %q", ErrMsgNoStates, errs[0])
	}
}

func TestValidate_IdleOnly(t *testing.T) {
	s := New("idle", "p1", "dev")
	s.States = []State{{ID: "a", Name: "A", Type: StateIdle}}

	ok, errs := Validate(s)
	if ok {
		t.Fatal("expected idle-only scenario to fail")
	}
	if len(errs) != 2 {
		t.Fatalf("expected exactly 2 errors, got %d: %v", len(errs), errs)
	}
	if errs[0] != ErrMsgMissingStart || errs[1] != ErrMsgMissingEnd {
		t.Errorf("unexpected errors: %v", errs)
	}
	if s.IsValidated {
		t.Error("expected IsValidated to be false")
	}
}

func TestValidate_DanglingTransitionsCollectAll(t *testing.T) {
	for _, n := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			s := New("dangling", "p1", "dev")
			s.States = []State{{ID: "a", Name: "A", Type: StateIdle}}
			for i := 0; i < n; i++ {
				s.Transitions = append(s.Transitions, Transition{
					ID:     fmt.Sprintf("t%d", i),
					Source: "a",
					Target: fmt.Sprintf("ghost%d", i),
				})
			}

			_, errs := Validate(s)
			if len(errs) != n+2 {
				t.Fatalf("expected %d errors, got %d: %v", n+2, len(errs), errs)
			}

			seen := make(map[string]bool)
			for _, e := range errs {
				if seen[e] {
					t.Errorf("duplicate error %q", e)
				}
				seen[e] = true
			}
			for i := 0; i < n; i++ {
				if !strings.Contains(errs[i], fmt.Sprintf("transition t%d", i)) {
					t.Errorf("error %d should name transition t%d: %q", i, i, errs[i])
				}
			}
		})
	}
}

func TestValidate_BothEndpointsMissing(t *testing.T) {
	s := threeStateScenario()
	s.Transitions = append(s.Transitions, Transition{ID: "bad", Source: "x", Target: "y"})

	_, errs := Validate(s)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
	if !strings.Contains(errs[0], "unknown source state x") {
		t.Errorf("unexpected source error: %q", errs[0])
	}
	if !strings.Contains(errs[1], "unknown target state y") {
		t.Errorf("unexpected target error: %q", errs[1])
	}
}

func TestValidate_SelfLoopExactlyOnce(t *testing.T) {
	s := threeStateScenario()
	s.Transitions = append(s.Transitions, Transition{ID: "loop", Source: "s2", Target: "s2"})

	ok, errs := Validate(s)
	if ok {
		t.Fatal("expected self-loop to fail validation")
	}
	count := 0
	for _, e := range errs {
		if strings.Contains(e, "self-loop") {
			count++
		}
	}
	if count != 1 || len(errs) != 1 {
		t.Fatalf("expected exactly one self-loop error, got %v", errs)
	}

	// A dangling self-loop still yields exactly one self-loop error.
	s.Transitions = []Transition{{ID: "ghostloop", Source: "zz", Target: "zz"}}
	_, errs = Validate(s)
	count = 0
	for _, e := range errs {
		if strings.Contains(e, "self-loop") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected one self-loop error for dangling loop, got %v", errs)
	}
}

func TestValidate_RevalidateClearsFlag(t *testing.T) {
	s := threeStateScenario()
	if ok, _ := Validate(s); !ok {
		t.Fatal("expected valid")
	}
	s.States = s.States[:2]
	if ok, _ := s.Validate(); ok {
		t.Fatal("expected invalid after removing end state")
	}
	if s.IsValidated {
		t.Error("expected IsValidated to be cleared")
	}
}
