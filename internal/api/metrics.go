package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/SentientStudio/internal/events"
	"github.com/AaronLay10/SentientStudio/internal/version"
)

// Metrics state
var (
	metricsState = &MetricsState{}
)

// MetricsState holds runtime metrics for the /metrics endpoint.
type MetricsState struct {
	mu        sync.RWMutex
	startTime time.Time
	studioID  string

	runsExecuted  atomic.Int64
	codeGenerated atomic.Int64
	codegenFailed atomic.Int64
	scenarioWalks atomic.Int64
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics(studioID string) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
	metricsState.studioID = studioID
}

// GetStudioID returns the studio id used as a metrics label.
func GetStudioID() string {
	metricsState.mu.RLock()
	defer metricsState.mu.RUnlock()
	return metricsState.studioID
}

func countCodegen(ok bool) {
	if ok {
		metricsState.codeGenerated.Add(1)
	} else {
		metricsState.codegenFailed.Add(1)
	}
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	metricsState.mu.RLock()
	startTime := metricsState.startTime
	studioID := metricsState.studioID
	metricsState.mu.RUnlock()

	readiness.mu.RLock()
	servicesReady := readiness.servicesReady
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		if labels != "" {
			fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
		} else {
			fmt.Fprintf(w, "%s %v\n", name, value)
		}
	}

	labels := fmt.Sprintf(`studio="%s",instance="%s",version="%s"`, studioID, hostname, version.Version)

	writeMetric("studio_uptime_seconds", "gauge",
		"Number of seconds since the studio API started", time.Since(startTime).Seconds(), labels)
	writeMetric("studio_services_ready", "gauge",
		"Whether engine, store and orchestrator are wired (1) or not (0)", boolGauge(servicesReady), labels)
	writeMetric("studio_events_total", "counter",
		"Total number of events emitted since startup", events.TotalCount(), labels)
	writeMetric("studio_scenario_walks_total", "counter",
		"Scenario executions requested through the API", metricsState.scenarioWalks.Load(), labels)
	writeMetric("studio_testruns_executed_total", "counter",
		"Test runs executed since startup", metricsState.runsExecuted.Load(), labels)
	writeMetric("studio_codegen_total", "counter",
		"Successful code generation requests", metricsState.codeGenerated.Load(), labels)
	writeMetric("studio_codegen_failed_total", "counter",
		"Failed code generation requests", metricsState.codegenFailed.Load(), labels)
	writeMetric("studio_mqtt_connected", "gauge",
		"Whether MQTT broker is connected (1) or not (0)", boolGauge(mqttConnected), labels)
	writeMetric("studio_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", boolGauge(postgresConnected), labels)
	writeMetric("studio_ws_clients", "gauge",
		"Number of active event stream subscribers", events.SubscriberCount(), labels)
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
