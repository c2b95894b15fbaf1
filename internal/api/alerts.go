package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Alert severity levels
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alert event types
const (
	AlertMQTTDisconnected    = "mqtt_disconnected"
	AlertPostgresUnavailable = "postgres_unavailable"
)

// AlertPayload is the JSON structure sent to the webhook.
type AlertPayload struct {
	StudioID  string                 `json:"studio_id"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AlertConfig holds alert configuration.
type AlertConfig struct {
	WebhookURL              string
	StudioID                string
	MQTTDisconnectDelay     time.Duration // How long MQTT must be disconnected before alerting
	PostgresDisconnectDelay time.Duration // How long Postgres must be disconnected before alerting
}

// watch tracks one dependency's outage.
type watch struct {
	event     string
	severity  string
	message   string
	delay     time.Duration
	downSince time.Time
	alerted   bool
}

// Alerter posts a webhook when a dependency stays down longer than its
// delay, and again when it recovers.
type Alerter struct {
	mu      sync.Mutex
	cfg     AlertConfig
	watches map[string]*watch
	client  *http.Client
	log     logrus.FieldLogger
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewAlerter(cfg AlertConfig, log logrus.FieldLogger) *Alerter {
	if cfg.MQTTDisconnectDelay <= 0 {
		cfg.MQTTDisconnectDelay = 30 * time.Second
	}
	if cfg.PostgresDisconnectDelay <= 0 {
		cfg.PostgresDisconnectDelay = 5 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	a := &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.WithField("component", "alerts"),
		now:    time.Now,
		watches: map[string]*watch{
			"mqtt": {
				event: AlertMQTTDisconnected, severity: SeverityWarning,
				message: "MQTT broker disconnected", delay: cfg.MQTTDisconnectDelay,
			},
			"postgres": {
				event: AlertPostgresUnavailable, severity: SeverityCritical,
				message: "PostgreSQL unavailable", delay: cfg.PostgresDisconnectDelay,
			},
		},
	}
	if cfg.WebhookURL != "" {
		a.log.WithFields(logrus.Fields{
			"mqtt_delay": cfg.MQTTDisconnectDelay.String(),
			"pg_delay":   cfg.PostgresDisconnectDelay.String(),
		}).Info("alerts enabled")
	}
	return a
}

// Observe records whether a watched dependency ("mqtt" or "postgres") is up.
func (a *Alerter) Observe(name string, up bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, ok := a.watches[name]
	if !ok {
		return
	}
	now := a.now()

	if up {
		if w.alerted {
			a.send(w.event, SeverityInfo, name+" connection restored", map[string]interface{}{
				"recovered_at": now.UTC().Format(time.RFC3339),
			})
		}
		w.downSince = time.Time{}
		w.alerted = false
		return
	}

	if w.downSince.IsZero() {
		w.downSince = now
	}
	down := now.Sub(w.downSince)
	if !w.alerted && down >= w.delay {
		w.alerted = true
		a.send(w.event, w.severity, w.message, map[string]interface{}{
			"disconnected_since":   w.downSince.UTC().Format(time.RFC3339),
			"disconnected_seconds": int(down.Seconds()),
		})
	}
}

// CheckReadiness feeds the current broker and database state to Observe.
// Optional dependencies always count as up.
func (a *Alerter) CheckReadiness() {
	readiness.mu.RLock()
	mqttUp := readiness.mqttConnected || readiness.mqttOptional
	pgUp := readiness.postgresConnected || readiness.postgresOptional
	readiness.mu.RUnlock()

	a.Observe("mqtt", mqttUp)
	a.Observe("postgres", pgUp)
}

// Start checks readiness every interval until ctx is done.
func (a *Alerter) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.CheckReadiness()
			}
		}
	}()
}

// Wait blocks until in-flight webhook posts finish.
func (a *Alerter) Wait() {
	a.wg.Wait()
}

// send posts asynchronously, or logs when no webhook is configured. Callers
// hold a.mu.
func (a *Alerter) send(event, severity, message string, details map[string]interface{}) {
	if a.cfg.WebhookURL == "" {
		a.log.WithFields(logrus.Fields(details)).WithFields(logrus.Fields{
			"alert":    event,
			"severity": severity,
		}).Warn(message)
		return
	}

	studio := a.cfg.StudioID
	if studio == "" {
		studio = "unknown"
	}
	payload := AlertPayload{
		StudioID:  studio,
		Event:     event,
		Timestamp: a.now().UTC().Format(time.RFC3339),
		Severity:  severity,
		Message:   message,
		Details:   details,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.post(payload)
	}()
}

func (a *Alerter) post(payload AlertPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		a.log.WithError(err).Error("alert: marshal payload")
		return
	}

	resp, err := a.client.Post(a.cfg.WebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.log.WithError(err).Warn("alert: webhook POST failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.log.WithField("status", resp.StatusCode).Warn("alert: webhook rejected alert")
	}
}
