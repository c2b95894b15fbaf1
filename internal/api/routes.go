package api

import (
	"net/http"

	"github.com/AaronLay10/SentientStudio/internal/users"
)

func (s *Server) routes() {
	m := s.mux
	view := users.CapViewDashboard

	m.HandleFunc("GET /health", healthHandler)
	m.HandleFunc("GET /ready", readyHandler)
	m.HandleFunc("GET /metrics", metricsHandler)
	m.HandleFunc("GET /ui", RequireCapability(uiHandler, view))
	m.HandleFunc("GET /events", RequireCapability(eventsHandler, view))
	m.HandleFunc("GET /ws/events", RequireCapability(s.wsEvents, view))

	// scenarios
	m.HandleFunc("POST /scenarios", RequireCapability(s.createScenario, users.CapCreateScenario))
	m.HandleFunc("GET /scenarios", RequireCapability(s.listScenarios, view))
	m.HandleFunc("GET /scenarios/{id}", RequireCapability(s.getScenario, view))
	m.HandleFunc("DELETE /scenarios/{id}", RequireCapability(s.deleteScenario, users.CapCreateScenario))
	m.HandleFunc("POST /scenarios/{id}/validate",
		RequireCapability(s.validateScenario, users.CapEditLogic, users.CapValidateScenarios))
	m.HandleFunc("POST /scenarios/{id}/execute",
		RequireCapability(s.executeScenario, users.CapTestScenarios, users.CapRunTest))
	m.HandleFunc("GET /scenarios/{id}/graph", RequireCapability(s.scenarioGraph, view))
	m.HandleFunc("GET /scenarios/{id}/stats", RequireCapability(s.scenarioStats, view))
	m.HandleFunc("POST /scenarios/{id}/approve", RequireCapability(s.approveScenario, users.CapApproveScenario))
	m.HandleFunc("GET /scenarios/{id}/testruns",
		RequireCapability(s.listTestRuns, users.CapRunTest, users.CapTestScenarios, users.CapAnalyzeResults))
	m.HandleFunc("GET /scenarios/{id}/report",
		RequireCapability(s.scenarioReport, users.CapGenerateReports, users.CapAnalyzeResults, users.CapTrackProgress))

	// visual scripts
	m.HandleFunc("POST /visual-scripts", RequireCapability(s.createVisualScript, users.CapManageVisualScripts))
	m.HandleFunc("GET /visual-scripts/{id}", RequireCapability(s.getVisualScript, view))
	m.HandleFunc("DELETE /visual-scripts/{id}", RequireCapability(s.deleteVisualScript, users.CapManageVisualScripts))
	m.HandleFunc("POST /visual-scripts/{id}/run",
		RequireCapability(s.runVisualScript, users.CapManageVisualScripts, users.CapTestScenarios))

	// code generation
	m.HandleFunc("POST /codegen/from-scenario/{id}", RequireCapability(s.generateFromScenario, users.CapGenerateCode))
	m.HandleFunc("POST /codegen/from-visual-script/{id}", RequireCapability(s.generateFromVisualScript, users.CapGenerateCode))
	m.HandleFunc("POST /codegen/validate", RequireCapability(s.validateCode, users.CapGenerateCode))
	m.HandleFunc("POST /codegen/export",
		RequireCapability(s.exportCode, users.CapGenerateCode, users.CapExportScenarios))
	m.HandleFunc("GET /codegen/languages", RequireCapability(s.languages, view))

	// test runs
	runCaps := []users.Capability{users.CapRunTest, users.CapTestScenarios}
	m.HandleFunc("POST /testruns", RequireCapability(s.createTestRun, runCaps...))
	m.HandleFunc("GET /testruns/{id}", RequireCapability(s.getTestRun, view))
	m.HandleFunc("POST /testruns/{id}/start", RequireCapability(s.startTestRun, runCaps...))
	m.HandleFunc("POST /testruns/{id}/stop", RequireCapability(s.stopTestRun, runCaps...))
	m.HandleFunc("POST /testruns/{id}/execute", RequireCapability(s.executeTestRun, runCaps...))
	m.HandleFunc("POST /testruns/{id}/devices", RequireCapability(s.addTestRunDevice, users.CapManageDevices, users.CapRunTest))
	m.HandleFunc("GET /testruns/{id}/events", RequireCapability(s.testRunEvents, view))
	m.HandleFunc("GET /testruns/{id}/report",
		RequireCapability(s.testRunReport, users.CapGenerateReports, users.CapAnalyzeResults, users.CapTrackProgress))

	// bugs
	m.HandleFunc("POST /bugs", RequireCapability(s.fileBug, users.CapReportBug))
	m.HandleFunc("GET /bugs", RequireCapability(s.listBugs, view))
	m.HandleFunc("GET /bugs/{id}", RequireCapability(s.getBug, view))
	m.HandleFunc("POST /bugs/{id}/assign",
		RequireCapability(s.assignBug, users.CapAssignBugsToDeveloper, users.CapCoordinateTeam))
	m.HandleFunc("POST /bugs/{id}/status", RequireCapability(s.updateBugStatus, users.CapReportBug, users.CapEditLogic))

	// devices and accounts
	m.HandleFunc("GET /devices", RequireCapability(s.listDevices, view))
	m.HandleFunc("POST /devices", RequireCapability(s.createDevice, users.CapManageDevices))
	m.HandleFunc("POST /users", RequireCapability(s.createUser, users.CapCoordinateTeam))
	m.HandleFunc("GET /users/{id}", RequireCapability(s.getUser, view))

	m.HandleFunc("/", notFound)
}

// notFound answers unknown paths with the error envelope.
func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
}
