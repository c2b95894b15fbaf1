package testrun

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BugStatus tracks a bug report through triage.
type BugStatus string

const (
	BugOpen       BugStatus = "open"
	BugAssigned   BugStatus = "assigned"
	BugInProgress BugStatus = "in_progress"
	BugResolved   BugStatus = "resolved"
	BugClosed     BugStatus = "closed"
)

var bugTransitions = map[BugStatus][]BugStatus{
	BugOpen:       {BugAssigned, BugInProgress, BugClosed},
	BugAssigned:   {BugOpen, BugInProgress, BugClosed},
	BugInProgress: {BugAssigned, BugResolved},
	BugResolved:   {BugOpen, BugClosed},
	BugClosed:     {BugOpen},
}

// CanMove reports whether a bug may go from s to next.
func (s BugStatus) CanMove(next BugStatus) bool {
	for _, allowed := range bugTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Severity levels, most to least urgent.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// BugReport is a defect filed against a scenario, usually from a test run.
type BugReport struct {
	ID               string    `json:"id"`
	Title            string    `json:"title" validate:"required,max=200"`
	Description      string    `json:"description" validate:"required"`
	ScenarioID       string    `json:"scenario_id,omitempty"`
	TestRunID        string    `json:"test_run_id,omitempty"`
	ReporterID       string    `json:"reporter_id" validate:"required"`
	AssignedTo       string    `json:"assigned_to,omitempty"`
	Status           BugStatus `json:"status"`
	Severity         string    `json:"severity" validate:"omitempty,oneof=critical high medium low"`
	Priority         int       `json:"priority" validate:"gte=0,lte=5"`
	StepsToReproduce []string  `json:"steps_to_reproduce,omitempty"`
	ExpectedResult   string    `json:"expected_result,omitempty"`
	ActualResult     string    `json:"actual_result,omitempty"`
	Logs             []string  `json:"logs,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (b *BugReport) init(now time.Time) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Status = BugOpen
	if b.Severity == "" {
		b.Severity = SeverityMedium
	}
	if b.Priority == 0 {
		b.Priority = 3
	}
	b.CreatedAt = now
	b.UpdatedAt = now
}

func (b *BugReport) move(next BugStatus, now time.Time) error {
	if !b.Status.CanMove(next) {
		return fmt.Errorf("%w: bug %s cannot go from %s to %s", ErrInvalidTransition, b.ID, b.Status, next)
	}
	b.Status = next
	b.UpdatedAt = now
	return nil
}
