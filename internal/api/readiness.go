package api

import (
	"net/http"
	"strings"
	"sync"
)

// readinessState tracks the dependencies /ready reports on. Optional
// dependencies report "unavailable" without failing readiness.
type readinessState struct {
	mu                sync.RWMutex
	servicesReady     bool
	mqttConnected     bool
	mqttOptional      bool
	postgresConnected bool
	postgresOptional  bool
}

var readiness = &readinessState{mqttOptional: true, postgresOptional: true}

// SetServicesReady marks the engine, store and orchestrator as wired.
func SetServicesReady(ready bool) {
	readiness.mu.Lock()
	readiness.servicesReady = ready
	readiness.mu.Unlock()
}

// SetMQTTStatus records broker connectivity and whether it is required.
func SetMQTTStatus(connected, optional bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mqttOptional = optional
	readiness.mu.Unlock()
}

// SetMQTTConnected updates broker connectivity only.
func SetMQTTConnected(connected bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mu.Unlock()
}

// SetPostgresStatus records database connectivity and whether it is required.
func SetPostgresStatus(connected, optional bool) {
	readiness.mu.Lock()
	readiness.postgresConnected = connected
	readiness.postgresOptional = optional
	readiness.mu.Unlock()
}

type CheckResult struct {
	Status string `json:"status"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckResult `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

func dependencyCheck(connected, optional bool) (CheckResult, bool) {
	switch {
	case connected:
		return CheckResult{Status: "ok"}, true
	case optional:
		return CheckResult{Status: "unavailable"}, true
	default:
		return CheckResult{Status: "not_ready"}, false
	}
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	services := readiness.servicesReady
	mqttCheck, mqttOK := dependencyCheck(readiness.mqttConnected, readiness.mqttOptional)
	pgCheck, pgOK := dependencyCheck(readiness.postgresConnected, readiness.postgresOptional)
	readiness.mu.RUnlock()

	resp := ReadinessResponse{
		Ready:  true,
		Checks: map[string]CheckResult{"mqtt": mqttCheck, "postgres": pgCheck},
	}
	var waiting []string
	if services {
		resp.Checks["services"] = CheckResult{Status: "ok"}
	} else {
		resp.Checks["services"] = CheckResult{Status: "not_ready"}
		waiting = append(waiting, "services")
	}
	if !mqttOK {
		waiting = append(waiting, "mqtt")
	}
	if !pgOK {
		waiting = append(waiting, "postgres")
	}

	status := http.StatusOK
	if len(waiting) > 0 {
		resp.Ready = false
		resp.NotReadyMsg = "waiting for " + strings.Join(waiting, ", ")
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
