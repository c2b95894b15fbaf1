package testrun

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AaronLay10/SentientStudio/internal/engine"
	"github.com/AaronLay10/SentientStudio/internal/events"
	"github.com/AaronLay10/SentientStudio/internal/scenario"
	"github.com/AaronLay10/SentientStudio/internal/users"
)

var (
	ErrNotDeveloper = errors.New("assignee is not a developer")
	ErrInvalidBug   = errors.New("invalid bug report")
)

// Store is the persistence the orchestrator needs. A missing document is
// reported with an error that IsNotFound recognises.
type Store interface {
	GetScenario(ctx context.Context, id string) (*scenario.Scenario, error)
	GetTestRun(ctx context.Context, id string) (*Run, error)
	PutTestRun(ctx context.Context, r *Run) error
	ListTestRuns(ctx context.Context, scenarioID string) ([]*Run, error)
	GetDevice(ctx context.Context, id string) (*Device, error)
	GetBug(ctx context.Context, id string) (*BugReport, error)
	PutBug(ctx context.Context, b *BugReport) error
	GetUser(ctx context.Context, id string) (*users.User, error)
}

// Executor walks a scenario. *engine.Engine satisfies it.
type Executor interface {
	Run(s *scenario.Scenario, in engine.Input) (*engine.Trace, error)
}

// StatusPublisher announces run status changes to devices and dashboards.
type StatusPublisher interface {
	PublishRunStatus(r *Run) error
}

// IsNotFound reports whether err wraps an error with a NotFound() bool
// method that returns true.
func IsNotFound(err error) bool {
	var nf interface{ NotFound() bool }
	return errors.As(err, &nf) && nf.NotFound()
}

type nopPublisher struct{}

func (nopPublisher) PublishRunStatus(*Run) error { return nil }

// Fixed result log lines.
const (
	LogStarted          = "Test started"
	LogFinished         = "Test finished"
	LogScenarioNotFound = "Error: scenario not found"
	ErrLineNotFound     = "Scenario not found"
	ErrLineLoadFailed   = "Scenario could not be loaded"
	ErrLineFailed       = "Scenario execution failed"
)

// Orchestrator owns the test run lifecycle. Status changes on one run are
// serialized by a per-run lock; Execute holds it for the whole walk, so a
// Stop issued meanwhile waits and then finds the run already finished.
type Orchestrator struct {
	store Store
	exec  Executor
	pub   StatusPublisher
	log   logrus.FieldLogger
	now   func() time.Time
	emit  func(level, name, msg string, fields map[string]interface{})

	mu    sync.Mutex
	locks map[string]*runLock
}

// runLock is dropped from the map once nobody holds or waits for it.
type runLock struct {
	sync.Mutex
	refs int
}

func NewOrchestrator(store Store, exec Executor, pub StatusPublisher, log logrus.FieldLogger) *Orchestrator {
	if pub == nil {
		pub = nopPublisher{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		store: store,
		exec:  exec,
		pub:   pub,
		log:   log.WithField("component", "testrun"),
		now:   func() time.Time { return time.Now().UTC() },
		emit: func(level, name, msg string, fields map[string]interface{}) {
			events.Emit(level, name, msg, fields)
		},
		locks: make(map[string]*runLock),
	}
}

// SetEmitter replaces the event sink. nil silences the orchestrator.
func (o *Orchestrator) SetEmitter(fn func(level, name, msg string, fields map[string]interface{})) {
	if fn == nil {
		fn = func(string, string, string, map[string]interface{}) {}
	}
	o.emit = fn
}

func (o *Orchestrator) lock(id string) func() {
	o.mu.Lock()
	l, ok := o.locks[id]
	if !ok {
		l = &runLock{}
		o.locks[id] = l
	}
	l.refs++
	o.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, id)
		}
		o.mu.Unlock()
	}
}

// CreateRequest describes a new run.
type CreateRequest struct {
	Name        string                 `json:"name" validate:"required,max=100"`
	ScenarioID  string                 `json:"scenario_id" validate:"required"`
	ProjectID   string                 `json:"project_id"`
	TesterID    string                 `json:"tester_id"`
	Parameters  map[string]interface{} `json:"parameters"`
	Tags        []string               `json:"tags"`
	Environment map[string]interface{} `json:"environment"`
	Manual      bool                   `json:"manual"`
}

// Create stores a pending run for an existing scenario.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*Run, error) {
	sc, err := o.store.GetScenario(ctx, req.ScenarioID)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", req.ScenarioID, err)
	}
	project := req.ProjectID
	if project == "" {
		project = sc.ProjectID
	}
	r := NewRun(req.Name, sc.ID, project, req.TesterID, o.now())
	r.Parameters = req.Parameters
	r.Tags = req.Tags
	r.Environment = req.Environment
	r.IsAutomated = !req.Manual
	if err := o.store.PutTestRun(ctx, r); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	o.emit("info", "testrun.created", "test run created", o.runFields(r))
	return r, nil
}

// Get returns the stored run.
func (o *Orchestrator) Get(ctx context.Context, id string) (*Run, error) {
	return o.store.GetTestRun(ctx, id)
}

// Start moves a pending run to running without executing it; manual runs
// are driven this way from a headset.
func (o *Orchestrator) Start(ctx context.Context, id string) (*Run, error) {
	defer o.lock(id)()
	r, err := o.store.GetTestRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.begin(o.now()); err != nil {
		return r, err
	}
	if err := o.save(ctx, r, "testrun.started", "info", "test run started"); err != nil {
		return nil, err
	}
	return r, nil
}

// Stop cancels a running run. It cannot interrupt an Execute in progress.
func (o *Orchestrator) Stop(ctx context.Context, id string) (*Run, error) {
	defer o.lock(id)()
	r, err := o.store.GetTestRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.stop(o.now()); err != nil {
		return r, err
	}
	if err := o.save(ctx, r, "testrun.cancelled", "warn", "test run cancelled"); err != nil {
		return nil, err
	}
	return r, nil
}

// Execute runs a pending run to completion. The check that the run is
// pending and the move to running happen under the run's lock, so two
// concurrent calls cannot both execute it. The run ends passed when the
// engine reports OK, failed when it does not and error when the scenario is
// missing or the engine fails.
func (o *Orchestrator) Execute(ctx context.Context, id string) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer o.lock(id)()

	r, err := o.store.GetTestRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.begin(o.now()); err != nil {
		return r, err
	}
	if err := o.save(ctx, r, "testrun.started", "info", "test run started"); err != nil {
		return nil, err
	}

	res := newResult(r.ID, o.now())
	res.Logs = append(res.Logs, LogStarted)
	status := StatusError

	sc, err := o.store.GetScenario(ctx, r.ScenarioID)
	switch {
	case IsNotFound(err):
		res.Logs = append(res.Logs, LogScenarioNotFound)
		res.AddError(ErrLineNotFound)
	case err != nil:
		o.log.WithError(err).WithField("testrun_id", r.ID).Error("load scenario failed")
		res.Logs = append(res.Logs, "Exception: "+err.Error())
		res.AddError(fmt.Sprintf("%s: %v", ErrLineLoadFailed, err))
	default:
		trace, err := o.walk(sc, r)
		if err != nil {
			res.Logs = append(res.Logs, "Exception: "+err.Error())
			res.AddError(err.Error())
			break
		}
		res.Trace = trace
		res.Passed = trace.OK
		res.Logs = append(res.Logs, fmt.Sprintf("Scenario executed: %t", trace.OK), LogFinished)
		res.Metrics = map[string]float64{
			"rounds":         float64(trace.Rounds),
			"states_visited": float64(len(trace.StateIDs)),
		}
		status = StatusPassed
		if !trace.OK {
			res.AddError(ErrLineFailed)
			status = StatusFailed
		}
	}

	r.Result = res
	r.finish(status, o.now())
	res.Metrics = withElapsed(res.Metrics, r.ExecutionTimeMS)

	level := "info"
	if status != StatusPassed {
		level = "warn"
	}
	if err := o.save(ctx, r, "testrun."+string(status), level, "test run "+string(status)); err != nil {
		return nil, err
	}
	return r, nil
}

func withElapsed(m map[string]float64, ms int64) map[string]float64 {
	if m == nil {
		m = make(map[string]float64)
	}
	m["execution_time_ms"] = float64(ms)
	return m
}

// walk calls the executor with panics turned into errors.
func (o *Orchestrator) walk(sc *scenario.Scenario, r *Run) (trace *engine.Trace, err error) {
	defer func() {
		if p := recover(); p != nil {
			trace, err = nil, fmt.Errorf("engine panic: %v", p)
		}
	}()
	trace, err = o.exec.Run(sc, engine.Input{
		Bindings: runBindings(sc, r),
		Fields:   map[string]interface{}{"testrun_id": r.ID},
	})
	if err == nil && trace == nil {
		err = errors.New("engine returned no trace")
	}
	return trace, err
}

// runBindings overlays the run's "variables" parameter on the scenario's
// variables. Without overrides the engine uses the scenario's own.
func runBindings(sc *scenario.Scenario, r *Run) map[string]interface{} {
	over, ok := r.Parameters["variables"].(map[string]interface{})
	if !ok || len(over) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(sc.Variables)+len(over))
	for k, v := range sc.Variables {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func (o *Orchestrator) save(ctx context.Context, r *Run, event, level, msg string) error {
	if err := o.store.PutTestRun(ctx, r); err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	if err := o.pub.PublishRunStatus(r); err != nil {
		o.log.WithError(err).WithField("testrun_id", r.ID).Warn("publish run status failed")
	}
	o.emit(level, event, msg, o.runFields(r))
	return nil
}

func (o *Orchestrator) runFields(r *Run) map[string]interface{} {
	return map[string]interface{}{
		"testrun_id":  r.ID,
		"scenario_id": r.ScenarioID,
		"status":      string(r.Status),
	}
}

// AddDevice attaches a registered device to a run.
func (o *Orchestrator) AddDevice(ctx context.Context, runID, deviceID string) (*Run, error) {
	defer o.lock(runID)()
	r, err := o.store.GetTestRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if _, err := o.store.GetDevice(ctx, deviceID); err != nil {
		return nil, fmt.Errorf("device %s: %w", deviceID, err)
	}
	if r.AddDevice(deviceID) {
		if err := o.store.PutTestRun(ctx, r); err != nil {
			return nil, fmt.Errorf("save run %s: %w", r.ID, err)
		}
	}
	return r, nil
}

// ListByScenario returns the runs recorded for a scenario.
func (o *Orchestrator) ListByScenario(ctx context.Context, scenarioID string) ([]*Run, error) {
	return o.store.ListTestRuns(ctx, scenarioID)
}

// Stats summarises runs: counts per status, pass rate over finished runs
// and mean execution time of finished runs.
type Stats struct {
	Total          int            `json:"total"`
	ByStatus       map[Status]int `json:"by_status"`
	PassRate       float64        `json:"pass_rate"`
	AvgExecutionMS float64        `json:"avg_execution_time_ms"`
}

func (o *Orchestrator) Stats(ctx context.Context, scenarioID string) (Stats, error) {
	runs, err := o.store.ListTestRuns(ctx, scenarioID)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(runs), nil
}

// Summarize computes Stats for runs.
func Summarize(runs []*Run) Stats {
	st := Stats{Total: len(runs), ByStatus: make(map[Status]int)}
	var finished, passed int
	var elapsed int64
	for _, r := range runs {
		st.ByStatus[r.Status]++
		if r.Status.Terminal() {
			finished++
			elapsed += r.ExecutionTimeMS
			if r.Status == StatusPassed {
				passed++
			}
		}
	}
	if finished > 0 {
		st.PassRate = float64(passed) / float64(finished)
		st.AvgExecutionMS = float64(elapsed) / float64(finished)
	}
	return st
}

// FileBug stores a new open bug report.
func (o *Orchestrator) FileBug(ctx context.Context, b *BugReport) (*BugReport, error) {
	if b == nil || b.Title == "" || b.Description == "" || b.ReporterID == "" {
		return nil, fmt.Errorf("%w: title, description and reporter are required", ErrInvalidBug)
	}
	if b.TestRunID != "" {
		r, err := o.store.GetTestRun(ctx, b.TestRunID)
		if err != nil {
			return nil, fmt.Errorf("test run %s: %w", b.TestRunID, err)
		}
		if b.ScenarioID == "" {
			b.ScenarioID = r.ScenarioID
		}
		if b.Logs == nil && r.Result != nil {
			b.Logs = append([]string(nil), r.Result.Logs...)
		}
	}
	b.init(o.now())
	if err := o.store.PutBug(ctx, b); err != nil {
		return nil, fmt.Errorf("save bug: %w", err)
	}
	o.emit("info", "bug.filed", b.Title, o.bugFields(b))
	return b, nil
}

// AssignBug hands a bug to a developer.
func (o *Orchestrator) AssignBug(ctx context.Context, bugID, userID string) (*BugReport, error) {
	u, err := o.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}
	if !u.IsDeveloper() {
		return nil, fmt.Errorf("%w: %s has role %s", ErrNotDeveloper, u.Username, u.Role)
	}

	defer o.lock("bug:" + bugID)()
	b, err := o.store.GetBug(ctx, bugID)
	if err != nil {
		return nil, err
	}
	if b.Status != BugAssigned {
		if err := b.move(BugAssigned, o.now()); err != nil {
			return b, err
		}
	}
	b.AssignedTo = u.ID
	b.UpdatedAt = o.now()
	if err := o.store.PutBug(ctx, b); err != nil {
		return nil, fmt.Errorf("save bug: %w", err)
	}
	o.emit("info", "bug.assigned", b.Title, o.bugFields(b))
	return b, nil
}

// UpdateBugStatus moves a bug along its triage workflow.
func (o *Orchestrator) UpdateBugStatus(ctx context.Context, bugID string, next BugStatus) (*BugReport, error) {
	defer o.lock("bug:" + bugID)()
	b, err := o.store.GetBug(ctx, bugID)
	if err != nil {
		return nil, err
	}
	if err := b.move(next, o.now()); err != nil {
		return b, err
	}
	if err := o.store.PutBug(ctx, b); err != nil {
		return nil, fmt.Errorf("save bug: %w", err)
	}
	o.emit("info", "bug.updated", b.Title, o.bugFields(b))
	return b, nil
}

func (o *Orchestrator) bugFields(b *BugReport) map[string]interface{} {
	f := map[string]interface{}{
		"bug_id":   b.ID,
		"status":   string(b.Status),
		"severity": b.Severity,
	}
	if b.TestRunID != "" {
		f["testrun_id"] = b.TestRunID
	}
	if b.AssignedTo != "" {
		f["assigned_to"] = b.AssignedTo
	}
	return f
}
