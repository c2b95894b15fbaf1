package scenario

import "fmt"

// Validation error messages that do not depend on a transition.
const (
	ErrMsgNoStates     = "scenario has no states"
	ErrMsgMissingStart = "missing start state"
	ErrMsgMissingEnd   = "missing end state"
)

// Validate checks graph well-formedness and records the outcome in
// s.IsValidated. Every check runs; the returned list holds one entry per
// violation so callers can assert on individual problems.
func Validate(s *Scenario) (bool, []string) {
	var errs []string

	if len(s.States) == 0 {
		errs = append(errs, ErrMsgNoStates)
	}

	ids := make(map[string]struct{}, len(s.States))
	for _, st := range s.States {
		ids[st.ID] = struct{}{}
	}

	for _, t := range s.Transitions {
		if _, ok := ids[t.Source]; !ok {
			errs = append(errs, fmt.Sprintf("transition %s references unknown source state %s", t.ID, t.Source))
		}
		if _, ok := ids[t.Target]; !ok {
			errs = append(errs, fmt.Sprintf("transition %s references unknown target state %s", t.ID, t.Target))
		}
		if t.Source == t.Target {
			errs = append(errs, fmt.Sprintf("transition %s is a self-loop on state %s", t.ID, t.Source))
		}
	}

	if s.FirstOfType(StateStart) == nil {
		errs = append(errs, ErrMsgMissingStart)
	}
	if s.FirstOfType(StateEnd) == nil {
		errs = append(errs, ErrMsgMissingEnd)
	}

	s.IsValidated = len(errs) == 0
	return s.IsValidated, errs
}

// Validate is a convenience wrapper around the package-level Validate.
func (s *Scenario) Validate() (bool, []string) {
	return Validate(s)
}
