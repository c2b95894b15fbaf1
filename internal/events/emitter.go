package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AaronLay10/SentientStudio/internal/storage/postgres"
)

var buffer = NewRingBuffer(512)

var emitted atomic.Int64

var (
	pgClient      *postgres.Client
	pgMu          sync.RWMutex
	pgErrorLogged bool
)

var (
	logMu  sync.RWMutex
	logger logrus.FieldLogger
)

// SetPostgresClient sets the Postgres client for event persistence.
func SetPostgresClient(client *postgres.Client) {
	pgMu.Lock()
	pgClient = client
	pgErrorLogged = false
	pgMu.Unlock()
}

// GetPostgresClient returns the current Postgres client (for API queries).
func GetPostgresClient() *postgres.Client {
	pgMu.RLock()
	defer pgMu.RUnlock()
	return pgClient
}

// SetLogger mirrors every emitted event to l. Pass nil to stop mirroring.
func SetLogger(l logrus.FieldLogger) {
	logMu.Lock()
	logger = l
	logMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emit records an allow-listed event in the ring buffer, fans it out to
// subscribers and, when configured, persists it and mirrors it to the logger.
func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	emitted.Add(1)
	broadcast(e)
	mirror(e)

	// Persist to Postgres (error-resistant)
	pgMu.RLock()
	client := pgClient
	errorLogged := pgErrorLogged
	pgMu.RUnlock()

	if client != nil {
		runID, _ := fields["testrun_id"].(string)
		if err := client.Append(ts, level, name, msg, fields, runID); err != nil && !errorLogged {
			// Report once. Added straight to the buffer, not via Emit, so a
			// failing database cannot recurse.
			pgMu.Lock()
			if !pgErrorLogged {
				pgErrorLogged = true
				pgMu.Unlock()
				errEvent := Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "postgres append failed",
					Fields: map[string]interface{}{
						"error": err.Error(),
					},
				}
				buffer.Add(errEvent)
				mirror(errEvent)
			} else {
				pgMu.Unlock()
			}
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func mirror(e Event) {
	logMu.RLock()
	l := logger
	logMu.RUnlock()
	if l == nil {
		return
	}

	entry := l.WithField("event", e.Name)
	if len(e.Fields) > 0 {
		entry = entry.WithFields(logrus.Fields(e.Fields))
	}
	msg := e.Message
	if msg == "" {
		msg = e.Name
	}

	switch e.Level {
	case "debug":
		entry.Debug(msg)
	case "warn", "warning":
		entry.Warn(msg)
	case "error":
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
}

// TotalCount is the number of events emitted since startup.
func TotalCount() int64 {
	return emitted.Load()
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// ForTestRun returns buffered events tagged with the given test run.
func ForTestRun(runID string) []Event {
	return buffer.Filter(func(e Event) bool {
		id, _ := e.Fields["testrun_id"].(string)
		return id == runID
	})
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
