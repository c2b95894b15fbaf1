package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AaronLay10/SentientStudio/internal/engine"
	"github.com/AaronLay10/SentientStudio/internal/events"
	"github.com/AaronLay10/SentientStudio/internal/testrun"
)

// Topics lays out the studio's MQTT namespace under a prefix.
type Topics struct {
	Prefix string
}

func (t Topics) root() string {
	return strings.TrimSuffix(t.Prefix, "/")
}

// Register is where test agents announce their devices.
func (t Topics) Register() string { return t.root() + "/devices/register" }

func (t Topics) RunStatus(runID string) string { return t.root() + "/testruns/" + runID + "/status" }
func (t Topics) RunTrace(runID string) string  { return t.root() + "/testruns/" + runID + "/trace" }
func (t Topics) Event(name string) string      { return t.root() + "/events/" + name }

// RunStatusMessage is the retained status payload for a test run.
type RunStatusMessage struct {
	TestRunID       string     `json:"testrun_id"`
	ScenarioID      string     `json:"scenario_id"`
	Status          string     `json:"status"`
	Passed          *bool      `json:"passed,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ExecutionTimeMS int64      `json:"execution_time_ms"`
	DeviceIDs       []string   `json:"device_ids,omitempty"`
}

// Publisher pushes run status, traces and bus events to the broker so
// headsets and dashboards can follow a test pass.
type Publisher struct {
	conn   Conn
	topics Topics
	log    logrus.FieldLogger
}

func NewPublisher(conn Conn, topics Topics, log logrus.FieldLogger) *Publisher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Publisher{conn: conn, topics: topics, log: log.WithField("component", "mqtt-publisher")}
}

// PublishRunStatus implements testrun.StatusPublisher. Finished runs with a
// trace also get the trace published.
func (p *Publisher) PublishRunStatus(r *testrun.Run) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("publish status %s: broker not connected", r.ID)
	}
	msg := RunStatusMessage{
		TestRunID:       r.ID,
		ScenarioID:      r.ScenarioID,
		Status:          string(r.Status),
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		ExecutionTimeMS: r.ExecutionTimeMS,
		DeviceIDs:       r.DeviceIDs,
	}
	if r.Result != nil && r.Status.Terminal() {
		passed := r.Result.Passed
		msg.Passed = &passed
	}
	if err := p.publishJSON(p.topics.RunStatus(r.ID), msg, true); err != nil {
		return err
	}
	if r.Result != nil && r.Result.Trace != nil {
		return p.PublishTrace(r.ID, r.Result.Trace)
	}
	return nil
}

// PublishTrace sends a scenario walk trace for a run.
func (p *Publisher) PublishTrace(runID string, tr *engine.Trace) error {
	return p.publishJSON(p.topics.RunTrace(runID), tr, false)
}

func (p *Publisher) publishJSON(topic string, v interface{}, retained bool) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	if err := p.conn.Publish(topic, b, retained); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// ForwardEvents republishes bus events on <prefix>/events/<name> until ctx
// is done. Debug events and device.message are skipped, the latter so
// device traffic is never echoed back to the broker.
func (p *Publisher) ForwardEvents(ctx context.Context) {
	sub := events.Subscribe()
	defer events.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			if e.Level == "debug" || e.Name == "device.message" || !p.conn.IsConnected() {
				continue
			}
			if err := p.publishJSON(p.topics.Event(e.Name), e, false); err != nil {
				p.log.WithError(err).WithField("event", e.Name).Debug("forward event failed")
			}
		}
	}
}
