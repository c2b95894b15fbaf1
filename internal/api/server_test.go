package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/AaronLay10/SentientStudio/internal/codegen"
	"github.com/AaronLay10/SentientStudio/internal/condition"
	"github.com/AaronLay10/SentientStudio/internal/engine"
	"github.com/AaronLay10/SentientStudio/internal/store"
	"github.com/AaronLay10/SentientStudio/internal/testrun"
)

// newTestServer wires a server over an in-memory store with auth off.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	auth = nil

	log := logrus.New()
	log.SetOutput(io.Discard)

	st := store.NewMemory()
	eval := condition.NewEvaluator(0)
	eng := engine.New(engine.Options{AllowStartFallback: true, RequireEndState: true}, eval)
	return NewServer(Deps{
		Store:    st,
		Engine:   eng,
		Scripts:  engine.NewScriptEngine(eval),
		CodeGen:  codegen.NewService(st, codegen.ServiceConfig{ExportDir: t.TempDir()}),
		TestRuns: testrun.NewOrchestrator(st, eng, nil, log),
		Log:      log,
	})
}

// call sends a JSON request through the server and decodes the envelope.
func call(t *testing.T, h http.Handler, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: decode response %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, out
}

func field(t *testing.T, m map[string]interface{}, key string) map[string]interface{} {
	t.Helper()
	v, ok := m[key].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no object %q: %v", key, m)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
	if resp.Service != "studio-api" {
		t.Errorf("expected service 'studio-api', got '%s'", resp.Service)
	}
}

func setReadiness(services, mqttUp, mqttOptional, pgUp, pgOptional bool) {
	readiness.mu.Lock()
	readiness.servicesReady = services
	readiness.mqttConnected = mqttUp
	readiness.mqttOptional = mqttOptional
	readiness.postgresConnected = pgUp
	readiness.postgresOptional = pgOptional
	readiness.mu.Unlock()
}

func TestReadyEndpoint(t *testing.T) {
	t.Cleanup(func() { setReadiness(false, false, true, false, true) })

	tests := []struct {
		name                  string
		services              bool
		mqttUp, mqttOptional  bool
		pgUp, pgOptional      bool
		wantCode              int
		wantMQTT, wantPG      string
		wantServices          string
		wantMessageSubstrings []string
	}{
		{
			name: "all ready", services: true, mqttUp: true, pgUp: true,
			wantCode: http.StatusOK, wantMQTT: "ok", wantPG: "ok", wantServices: "ok",
		},
		{
			name: "services not wired", services: false, mqttUp: true, pgUp: true,
			wantCode: http.StatusServiceUnavailable, wantMQTT: "ok", wantPG: "ok", wantServices: "not_ready",
			wantMessageSubstrings: []string{"services"},
		},
		{
			name: "optional mqtt down", services: true, mqttOptional: true, pgUp: true,
			wantCode: http.StatusOK, wantMQTT: "unavailable", wantPG: "ok", wantServices: "ok",
		},
		{
			name: "required mqtt and postgres down", services: true,
			wantCode: http.StatusServiceUnavailable, wantMQTT: "not_ready", wantPG: "not_ready", wantServices: "ok",
			wantMessageSubstrings: []string{"mqtt", "postgres"},
		},
		{
			name: "memory store only", services: true, mqttUp: true, pgOptional: true,
			wantCode: http.StatusOK, wantMQTT: "ok", wantPG: "unavailable", wantServices: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setReadiness(tt.services, tt.mqttUp, tt.mqttOptional, tt.pgUp, tt.pgOptional)

			w := httptest.NewRecorder()
			readyHandler(w, httptest.NewRequest("GET", "/ready", nil))

			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			var resp ReadinessResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Ready != (tt.wantCode == http.StatusOK) {
				t.Errorf("ready = %v with status %d", resp.Ready, w.Code)
			}
			if got := resp.Checks["mqtt"].Status; got != tt.wantMQTT {
				t.Errorf("mqtt: expected %q, got %q", tt.wantMQTT, got)
			}
			if got := resp.Checks["postgres"].Status; got != tt.wantPG {
				t.Errorf("postgres: expected %q, got %q", tt.wantPG, got)
			}
			if got := resp.Checks["services"].Status; got != tt.wantServices {
				t.Errorf("services: expected %q, got %q", tt.wantServices, got)
			}
			for _, s := range tt.wantMessageSubstrings {
				if !strings.Contains(resp.NotReadyMsg, s) {
					t.Errorf("message %q should mention %q", resp.NotReadyMsg, s)
				}
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	InitMetrics("studio-test")
	SetServicesReady(true)
	t.Cleanup(func() { SetServicesReady(false) })

	w := httptest.NewRecorder()
	metricsHandler(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	body := w.Body.String()
	for _, want := range []string{
		"# TYPE studio_uptime_seconds gauge",
		`studio="studio-test"`,
		"studio_services_ready{",
		"studio_events_total{",
		"studio_testruns_executed_total{",
		"studio_codegen_failed_total{",
		"studio_ws_clients{",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
	if GetStudioID() != "studio-test" {
		t.Errorf("GetStudioID = %q", GetStudioID())
	}
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	code, body := call(t, s, "GET", "/nope", nil)
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	if body["success"] != false {
		t.Errorf("expected error envelope, got %v", body)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)

	code, _ := call(t, s, "GET", "/scenarios/missing", nil)
	if code != http.StatusNotFound {
		t.Errorf("missing scenario: expected 404, got %d", code)
	}
	code, _ = call(t, s, "GET", "/testruns/missing/report", nil)
	if code != http.StatusNotFound {
		t.Errorf("missing run report: expected 404, got %d", code)
	}
	code, body := call(t, s, "POST", "/scenarios", map[string]interface{}{"name": "no project"})
	if code != http.StatusBadRequest {
		t.Errorf("missing project_id: expected 400, got %d", code)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "ProjectID") {
		t.Errorf("validation message should name the field, got %q", msg)
	}
	code, _ = call(t, s, "POST", "/codegen/from-scenario/missing?language=python", nil)
	if code != http.StatusNotFound {
		t.Errorf("codegen on missing scenario: expected 404, got %d", code)
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	s := newTestServer(t)
	code, body := call(t, s, "POST", "/scenarios", map[string]interface{}{
		"name":       strings.Repeat("x", MaxBodyBytes),
		"project_id": "proj-1",
	})
	if code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %v", code, body["error"])
	}
}

func TestExecuteWithDeeplyNestedGuard(t *testing.T) {
	s := newTestServer(t)
	guard := strings.Repeat("(", 1500) + "True" + strings.Repeat(")", 1500)
	code, body := call(t, s, "POST", "/scenarios", map[string]interface{}{
		"name":       "Nested",
		"project_id": "proj-1",
		"states": []map[string]interface{}{
			{"id": "s1", "name": "Start", "state_type": "start"},
			{"id": "s2", "name": "End", "state_type": "end"},
		},
		"transitions": []map[string]interface{}{
			{"source_state_id": "s1", "target_state_id": "s2", "condition": guard, "priority": 1},
		},
	})
	if code != http.StatusCreated {
		t.Fatalf("create: status %d body %v", code, body)
	}
	id, _ := field(t, body, "scenario")["id"].(string)

	code, body = call(t, s, "POST", "/scenarios/"+id+"/execute", nil)
	if code != http.StatusOK {
		t.Fatalf("execute: status %d body %v", code, body)
	}
	if body["result"] != false {
		t.Errorf("a guard that cannot be parsed must not be taken, got %v", body["result"])
	}
}

func createDemoScenario(t *testing.T, s *Server) string {
	t.Helper()
	code, body := call(t, s, "POST", "/scenarios", map[string]interface{}{
		"name":       "Lobby walkthrough",
		"project_id": "proj-1",
		"variables":  map[string]interface{}{"door_open": true},
		"states": []map[string]interface{}{
			{"id": "s1", "name": "Lobby", "state_type": "start"},
			{"id": "s2", "name": "Door", "state_type": "interaction"},
			{"id": "s3", "name": "Exit", "state_type": "end"},
		},
		"transitions": []map[string]interface{}{
			{"source_state_id": "s1", "target_state_id": "s2", "condition": "", "priority": 1},
			{"source_state_id": "s2", "target_state_id": "s3", "condition": "door_open == True", "priority": 1},
		},
	})
	if code != http.StatusCreated {
		t.Fatalf("create scenario: status %d body %v", code, body)
	}
	sc := field(t, body, "scenario")
	id, _ := sc["id"].(string)
	if id == "" {
		t.Fatal("created scenario has no id")
	}
	return id
}

func TestScenarioLifecycle(t *testing.T) {
	s := newTestServer(t)
	id := createDemoScenario(t, s)

	code, body := call(t, s, "POST", "/scenarios/"+id+"/validate", nil)
	if code != http.StatusOK || body["is_validated"] != true {
		t.Fatalf("validate: status %d body %v", code, body)
	}

	code, body = call(t, s, "POST", "/scenarios/"+id+"/execute", map[string]interface{}{
		"variables": map[string]interface{}{"door_open": false},
	})
	if code != http.StatusOK {
		t.Fatalf("execute: status %d body %v", code, body)
	}
	if body["result"] != false {
		t.Errorf("closed door should not reach the exit, got %v", body["result"])
	}

	code, body = call(t, s, "POST", "/scenarios/"+id+"/execute", nil)
	if code != http.StatusOK || body["result"] != true {
		t.Fatalf("execute with scenario variables: status %d body %v", code, body)
	}
	trace := field(t, body, "trace")
	path, _ := trace["path"].([]interface{})
	if len(path) != 3 || path[2] != "Exit" {
		t.Errorf("unexpected path %v", path)
	}

	code, body = call(t, s, "GET", "/scenarios/"+id+"/graph", nil)
	if code != http.StatusOK {
		t.Fatalf("graph: status %d", code)
	}
	field(t, body, "graph")

	code, body = call(t, s, "POST", "/scenarios/"+id+"/approve", map[string]interface{}{"comments": "ship it"})
	if code != http.StatusOK || body["message"] != "scenario approved" {
		t.Errorf("approve: status %d body %v", code, body)
	}
	_, body = call(t, s, "POST", "/scenarios/"+id+"/approve", nil)
	if msg, _ := body["message"].(string); !strings.HasPrefix(msg, "already approved") {
		t.Errorf("second approval: got %q", msg)
	}

	code, body = call(t, s, "GET", "/scenarios?project_id=proj-1", nil)
	if code != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("list: status %d body %v", code, body)
	}

	code, _ = call(t, s, "DELETE", "/scenarios/"+id, nil)
	if code != http.StatusOK {
		t.Errorf("delete: status %d", code)
	}
	code, _ = call(t, s, "GET", "/scenarios/"+id, nil)
	if code != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", code)
	}
}

func TestCreateScenarioRejectsUnknownStateType(t *testing.T) {
	s := newTestServer(t)
	code, _ := call(t, s, "POST", "/scenarios", map[string]interface{}{
		"name":       "bad",
		"project_id": "p",
		"states":     []map[string]interface{}{{"name": "x", "state_type": "teleport"}},
	})
	if code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestTestRunFlowAndReports(t *testing.T) {
	s := newTestServer(t)
	scenarioID := createDemoScenario(t, s)

	code, body := call(t, s, "POST", "/testruns", map[string]interface{}{
		"name":        "smoke",
		"scenario_id": scenarioID,
	})
	if code != http.StatusCreated {
		t.Fatalf("create run: status %d body %v", code, body)
	}
	run := field(t, body, "testrun")
	runID := run["id"].(string)
	if run["status"] != "pending" {
		t.Errorf("new run status = %v", run["status"])
	}
	if run["tester_id"] != "anonymous" {
		t.Errorf("tester should default to the caller, got %v", run["tester_id"])
	}

	code, body = call(t, s, "POST", "/testruns/"+runID+"/execute", nil)
	if code != http.StatusOK {
		t.Fatalf("execute run: status %d body %v", code, body)
	}
	if body["passed"] != true {
		t.Errorf("expected passed run, got %v", body)
	}

	code, _ = call(t, s, "POST", "/testruns/"+runID+"/execute", nil)
	if code != http.StatusConflict {
		t.Errorf("re-executing a finished run: expected 409, got %d", code)
	}

	code, body = call(t, s, "GET", "/testruns/"+runID+"/events", nil)
	if code != http.StatusOK {
		t.Fatalf("run events: status %d", code)
	}
	if evs, _ := body["events"].([]interface{}); len(evs) == 0 {
		t.Error("expected events tagged with the run id")
	}

	req := httptest.NewRequest("GET", "/testruns/"+runID+"/report?format=markdown", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("markdown report: status %d body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(w.Body.String(), "smoke") {
		t.Error("report should name the run")
	}

	req = httptest.NewRequest("GET", "/scenarios/"+scenarioID+"/report?format=json", nil)
	w = httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("comparison report: status %d body %s", w.Code, w.Body.String())
	}
	if !json.Valid(w.Body.Bytes()) {
		t.Error("json comparison report is not valid JSON")
	}

	code, _ = call(t, s, "GET", "/testruns/"+runID+"/report?format=docx", nil)
	if code != http.StatusBadRequest {
		t.Errorf("unknown report format: expected 400, got %d", code)
	}

	code, body = call(t, s, "GET", "/scenarios/"+scenarioID+"/testruns", nil)
	if code != http.StatusOK {
		t.Fatalf("list runs: status %d", code)
	}
	stats := field(t, body, "stats")
	if stats["total"] != float64(1) {
		t.Errorf("stats total = %v", stats["total"])
	}
}

func TestStartStopTestRun(t *testing.T) {
	s := newTestServer(t)
	scenarioID := createDemoScenario(t, s)

	_, body := call(t, s, "POST", "/testruns", map[string]interface{}{"name": "manual", "scenario_id": scenarioID, "manual": true})
	runID := field(t, body, "testrun")["id"].(string)

	code, _ := call(t, s, "POST", "/testruns/"+runID+"/stop", nil)
	if code != http.StatusConflict {
		t.Errorf("stopping a pending run: expected 409, got %d", code)
	}
	code, body = call(t, s, "POST", "/testruns/"+runID+"/start", nil)
	if code != http.StatusOK || field(t, body, "testrun")["status"] != "running" {
		t.Fatalf("start: status %d body %v", code, body)
	}
	code, body = call(t, s, "POST", "/testruns/"+runID+"/stop", nil)
	if code != http.StatusOK || field(t, body, "testrun")["status"] != "cancelled" {
		t.Fatalf("stop: status %d body %v", code, body)
	}
}

func TestBugsUsersAndDevices(t *testing.T) {
	s := newTestServer(t)

	code, body := call(t, s, "POST", "/users", map[string]interface{}{
		"username": "dana", "role": "developer", "email": "dana@example.com",
	})
	if code != http.StatusCreated {
		t.Fatalf("create developer: status %d body %v", code, body)
	}
	devID := field(t, body, "user")["id"].(string)

	_, body = call(t, s, "POST", "/users", map[string]interface{}{"username": "tess", "role": "tester"})
	testerID := field(t, body, "user")["id"].(string)

	code, _ = call(t, s, "POST", "/users", map[string]interface{}{"username": "dana", "role": "tester"})
	if code != http.StatusConflict {
		t.Errorf("duplicate username: expected 409, got %d", code)
	}
	code, _ = call(t, s, "POST", "/users", map[string]interface{}{"username": "wizard", "role": "wizard"})
	if code != http.StatusBadRequest {
		t.Errorf("unknown role: expected 400, got %d", code)
	}

	code, body = call(t, s, "GET", "/users/"+devID, nil)
	if code != http.StatusOK {
		t.Fatalf("get user: status %d", code)
	}
	if caps := field(t, body, "capabilities"); caps["generate_code"] != true {
		t.Errorf("developer should generate code, got %v", caps)
	}

	code, body = call(t, s, "POST", "/bugs", map[string]interface{}{
		"title":       "Door never opens",
		"description": "interaction state hangs",
		"severity":    "high",
	})
	if code != http.StatusCreated {
		t.Fatalf("file bug: status %d body %v", code, body)
	}
	bug := field(t, body, "bug")
	bugID := bug["id"].(string)
	if bug["reporter_id"] != "anonymous" || bug["status"] != "open" {
		t.Errorf("unexpected bug %v", bug)
	}

	code, _ = call(t, s, "POST", "/bugs/"+bugID+"/assign", map[string]interface{}{"user_id": testerID})
	if code != http.StatusBadRequest {
		t.Errorf("assigning to a tester: expected 400, got %d", code)
	}
	code, body = call(t, s, "POST", "/bugs/"+bugID+"/assign", map[string]interface{}{"user_id": devID})
	if code != http.StatusOK || field(t, body, "bug")["status"] != "assigned" {
		t.Fatalf("assign: status %d body %v", code, body)
	}
	code, _ = call(t, s, "POST", "/bugs/"+bugID+"/status", map[string]interface{}{"status": "bogus"})
	if code != http.StatusBadRequest {
		t.Errorf("bad status: expected 400, got %d", code)
	}
	code, _ = call(t, s, "POST", "/bugs/"+bugID+"/status", map[string]interface{}{"status": "resolved"})
	if code != http.StatusConflict {
		t.Errorf("assigned to resolved skips in_progress: expected 409, got %d", code)
	}
	call(t, s, "POST", "/bugs/"+bugID+"/status", map[string]interface{}{"status": "in_progress"})
	code, body = call(t, s, "POST", "/bugs/"+bugID+"/status", map[string]interface{}{"status": "resolved"})
	if code != http.StatusOK || field(t, body, "bug")["status"] != "resolved" {
		t.Errorf("resolve: status %d body %v", code, body)
	}

	code, body = call(t, s, "POST", "/devices", map[string]interface{}{"name": "Quest 3", "type": "vr_headset"})
	if code != http.StatusCreated {
		t.Fatalf("create device: status %d body %v", code, body)
	}
	code, _ = call(t, s, "POST", "/devices", map[string]interface{}{"name": "Toaster", "type": "toaster"})
	if code != http.StatusBadRequest {
		t.Errorf("unknown device type: expected 400, got %d", code)
	}
	_, body = call(t, s, "GET", "/devices", nil)
	if body["count"] != float64(1) {
		t.Errorf("device count = %v", body["count"])
	}
}

func TestCodegenEndpoints(t *testing.T) {
	s := newTestServer(t)
	id := createDemoScenario(t, s)

	code, body := call(t, s, "POST", "/codegen/from-scenario/"+id+"?language=csharp", nil)
	if code != http.StatusOK {
		t.Fatalf("generate: status %d body %v", code, body)
	}
	if body["language"] != "csharp" || body["code"] == "" {
		t.Errorf("unexpected result %v", body)
	}

	code, body = call(t, s, "POST", "/codegen/from-scenario/"+id+"?language=cobol", nil)
	if code != http.StatusBadRequest || body["success"] != false {
		t.Errorf("unsupported language: status %d body %v", code, body)
	}

	code, body = call(t, s, "POST", "/codegen/validate", map[string]interface{}{
		"code": "def f(:\n  pass", "language": "python",
	})
	if code != http.StatusOK || body["valid"] != false {
		t.Errorf("invalid python: status %d body %v", code, body)
	}

	code, body = call(t, s, "POST", "/codegen/export", map[string]interface{}{
		"code": "print('hi')", "filename": "hello", "language": "python",
	})
	if code != http.StatusCreated {
		t.Fatalf("export: status %d body %v", code, body)
	}
	field(t, body, "export")

	code, body = call(t, s, "GET", "/codegen/languages", nil)
	if code != http.StatusOK {
		t.Fatalf("languages: status %d", code)
	}
	if langs, _ := body["languages"].([]interface{}); len(langs) != 3 {
		t.Errorf("expected 3 languages, got %v", body["languages"])
	}
}

func TestVisualScriptEndpoints(t *testing.T) {
	s := newTestServer(t)

	code, body := call(t, s, "POST", "/visual-scripts", map[string]interface{}{
		"name":       "Greeter",
		"project_id": "proj-1",
		"nodes": []map[string]interface{}{
			{"id": "n1", "name": "OnStart", "node_type": "event"},
			{"id": "n2", "name": "Say hello", "node_type": "action"},
		},
		"connections": []map[string]interface{}{
			{"source_node_id": "n1", "target_node_id": "n2", "is_enabled": true},
		},
	})
	if code != http.StatusCreated {
		t.Fatalf("create script: status %d body %v", code, body)
	}
	id := field(t, body, "visual_script")["id"].(string)

	code, body = call(t, s, "POST", "/visual-scripts/"+id+"/run", nil)
	if code != http.StatusOK {
		t.Fatalf("run script: status %d body %v", code, body)
	}
	field(t, body, "run")

	code, body = call(t, s, "POST", "/visual-scripts", map[string]interface{}{
		"name":        "Dangling",
		"project_id":  "proj-1",
		"connections": []map[string]interface{}{{"source_node_id": "a", "target_node_id": "b"}},
	})
	if code != http.StatusBadRequest {
		t.Errorf("dangling connection: expected 400, got %d", code)
	}
	if errs, _ := body["errors"].([]interface{}); len(errs) == 0 {
		t.Errorf("expected validation errors, got %v", body)
	}

	code, _ = call(t, s, "DELETE", "/visual-scripts/"+id, nil)
	if code != http.StatusOK {
		t.Errorf("delete script: status %d", code)
	}
}

func TestDeleteScenarioRemovesItsVisualScript(t *testing.T) {
	s := newTestServer(t)

	code, body := call(t, s, "POST", "/visual-scripts", map[string]interface{}{
		"name":       "Door logic",
		"project_id": "proj-1",
		"nodes":      []map[string]interface{}{{"id": "n1", "name": "OnStart", "node_type": "event"}},
	})
	if code != http.StatusCreated {
		t.Fatalf("create script: status %d body %v", code, body)
	}
	scriptID := field(t, body, "visual_script")["id"].(string)

	newScenario := func(name string) (int, map[string]interface{}) {
		return call(t, s, "POST", "/scenarios", map[string]interface{}{
			"name":             name,
			"project_id":       "proj-1",
			"visual_script_id": scriptID,
			"states":           []map[string]interface{}{{"id": "s1", "name": "Start", "state_type": "start"}},
		})
	}
	code, body = newScenario("Owner")
	if code != http.StatusCreated {
		t.Fatalf("create scenario: status %d body %v", code, body)
	}
	scenarioID := field(t, body, "scenario")["id"].(string)

	code, body = call(t, s, "GET", "/visual-scripts/"+scriptID, nil)
	if code != http.StatusOK || field(t, body, "visual_script")["scenario_id"] != scenarioID {
		t.Fatalf("script should record its owner, got %d %v", code, body)
	}

	if code, _ = newScenario("Thief"); code != http.StatusBadRequest {
		t.Errorf("attaching an owned script elsewhere: expected 400, got %d", code)
	}

	if code, _ = call(t, s, "DELETE", "/scenarios/"+scenarioID, nil); code != http.StatusOK {
		t.Fatalf("delete scenario: status %d", code)
	}
	if code, _ = call(t, s, "GET", "/visual-scripts/"+scriptID, nil); code != http.StatusNotFound {
		t.Errorf("script should be deleted with its scenario, got %d", code)
	}
}
