// Package testrun runs scenarios as recorded test runs and tracks the bugs
// and devices attached to them.
package testrun

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AaronLay10/SentientStudio/internal/engine"
)

// ErrInvalidTransition is returned when a run or bug is asked to move to a
// status its current status does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// Status is the lifecycle position of a test run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPassed    Status = "passed"
	StatusFailed    Status = "failed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Run is one recorded execution of a scenario.
type Run struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	ScenarioID      string                 `json:"scenario_id"`
	ProjectID       string                 `json:"project_id,omitempty"`
	TesterID        string                 `json:"tester_id,omitempty"`
	Status          Status                 `json:"status"`
	CreatedAt       time.Time              `json:"created_at"`
	StartedAt       *time.Time             `json:"started_at,omitempty"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	ExecutionTimeMS int64                  `json:"execution_time_ms"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
	IsAutomated     bool                   `json:"is_automated"`
	Iteration       int                    `json:"iteration"`
	Tags            []string               `json:"tags,omitempty"`
	Environment     map[string]interface{} `json:"environment,omitempty"`
	DeviceIDs       []string               `json:"device_ids,omitempty"`
	Result          *Result                `json:"result,omitempty"`
}

// NewRun creates a pending run.
func NewRun(name, scenarioID, projectID, testerID string, now time.Time) *Run {
	return &Run{
		ID:          uuid.NewString(),
		Name:        name,
		ScenarioID:  scenarioID,
		ProjectID:   projectID,
		TesterID:    testerID,
		Status:      StatusPending,
		CreatedAt:   now,
		IsAutomated: true,
		Iteration:   1,
	}
}

// begin moves a pending run to running. Any other status is refused, which
// keeps a run from executing twice.
func (r *Run) begin(now time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: run %s is %s", ErrInvalidTransition, r.ID, r.Status)
	}
	r.Status = StatusRunning
	r.StartedAt = &now
	return nil
}

// stop cancels a running run and records its elapsed time.
func (r *Run) stop(now time.Time) error {
	if r.Status != StatusRunning {
		return fmt.Errorf("%w: run %s is %s", ErrInvalidTransition, r.ID, r.Status)
	}
	r.finish(StatusCancelled, now)
	return nil
}

func (r *Run) finish(status Status, now time.Time) {
	r.Status = status
	r.CompletedAt = &now
	if r.StartedAt != nil {
		r.ExecutionTimeMS = now.Sub(*r.StartedAt).Milliseconds()
	}
}

// AddDevice attaches a device id once. It reports whether the id was new.
func (r *Run) AddDevice(deviceID string) bool {
	for _, id := range r.DeviceIDs {
		if id == deviceID {
			return false
		}
	}
	r.DeviceIDs = append(r.DeviceIDs, deviceID)
	return true
}

// Result is what a run produced.
type Result struct {
	ID             string             `json:"id"`
	RunID          string             `json:"test_run_id"`
	Passed         bool               `json:"passed"`
	CreatedAt      time.Time          `json:"created_at"`
	Logs           []string           `json:"logs"`
	Errors         []string           `json:"errors"`
	Warnings       []string           `json:"warnings"`
	Metrics        map[string]float64 `json:"performance_metrics,omitempty"`
	Screenshots    []string           `json:"screenshots,omitempty"`
	VideoRecording string             `json:"video_recording,omitempty"`
	Trace          *engine.Trace      `json:"trace,omitempty"`
}

func newResult(runID string, now time.Time) *Result {
	return &Result{
		ID:        uuid.NewString(),
		RunID:     runID,
		CreatedAt: now,
		Logs:      []string{},
		Errors:    []string{},
		Warnings:  []string{},
	}
}

// AddLog appends a timestamped log line.
func (r *Result) AddLog(msg string) {
	r.Logs = append(r.Logs, fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339Nano), msg))
}

// AddError records an error; a result with errors never passes.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Passed = false
}
