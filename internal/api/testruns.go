package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/AaronLay10/SentientStudio/internal/events"
	"github.com/AaronLay10/SentientStudio/internal/report"
	"github.com/AaronLay10/SentientStudio/internal/testrun"
	"github.com/AaronLay10/SentientStudio/internal/users"
)

func (s *Server) createTestRun(w http.ResponseWriter, r *http.Request) {
	var req testrun.CreateRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeFailure(w, err)
		return
	}
	if req.TesterID == "" {
		req.TesterID = PrincipalFrom(r.Context()).Username
	}
	run, err := s.testruns.Create(r.Context(), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusCreated, "test run created", map[string]interface{}{"testrun": run})
}

func (s *Server) getTestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.testruns.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{"testrun": run})
}

func (s *Server) startTestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.testruns.Start(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "test run started", map[string]interface{}{"testrun": run})
}

func (s *Server) stopTestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.testruns.Stop(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "test run stopped", map[string]interface{}{"testrun": run})
}

// executeTestRun runs the scenario synchronously. A failed or errored run is
// still a successful request; the verdict is in testrun.status.
func (s *Server) executeTestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.testruns.Execute(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	metricsState.runsExecuted.Add(1)
	writeOK(w, http.StatusOK, fmt.Sprintf("test run %s", run.Status), map[string]interface{}{
		"testrun": run,
		"passed":  run.Status == testrun.StatusPassed,
	})
}

type addDeviceRequest struct {
	DeviceID string `json:"device_id" validate:"required"`
}

func (s *Server) addTestRunDevice(w http.ResponseWriter, r *http.Request) {
	var req addDeviceRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeFailure(w, err)
		return
	}
	run, err := s.testruns.AddDevice(r.Context(), r.PathValue("id"), req.DeviceID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "device added", map[string]interface{}{"testrun": run})
}

func (s *Server) testRunEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.testruns.Get(r.Context(), id); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{"events": events.ForTestRun(id)})
}

func (s *Server) listTestRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.testruns.ListByScenario(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{
		"testruns": runs,
		"stats":    testrun.Summarize(runs),
	})
}

// writeReport sends a rendered report with its own content type.
func writeReport(w http.ResponseWriter, f report.Format, body string) {
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) testRunReport(w http.ResponseWriter, r *http.Request) {
	f, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	run, err := s.testruns.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	body, err := report.Render(run.Result, run, f)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeReport(w, f, body)
}

func (s *Server) scenarioReport(w http.ResponseWriter, r *http.Request) {
	f, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	sc, err := s.store.GetScenario(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	runs, err := s.testruns.ListByScenario(r.Context(), sc.ID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	body, err := report.RenderComparison(sc.Name, runs, f)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeReport(w, f, body)
}

func (s *Server) fileBug(w http.ResponseWriter, r *http.Request) {
	// the body may name another reporter; otherwise it is the caller
	b := testrun.BugReport{ReporterID: PrincipalFrom(r.Context()).Username}
	if err := s.decode(r, &b, false); err != nil {
		s.writeFailure(w, err)
		return
	}
	b.ID = ""
	filed, err := s.testruns.FileBug(r.Context(), &b)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusCreated, "bug filed", map[string]interface{}{"bug": filed})
}

func (s *Server) listBugs(w http.ResponseWriter, r *http.Request) {
	bugs, err := s.store.ListBugs(r.Context(), r.URL.Query().Get("scenario_id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{"bugs": bugs, "count": len(bugs)})
}

func (s *Server) getBug(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.GetBug(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{"bug": b})
}

type assignBugRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (s *Server) assignBug(w http.ResponseWriter, r *http.Request) {
	var req assignBugRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeFailure(w, err)
		return
	}
	b, err := s.testruns.AssignBug(r.Context(), r.PathValue("id"), req.UserID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "bug assigned", map[string]interface{}{"bug": b})
}

type bugStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open assigned in_progress resolved closed"`
}

func (s *Server) updateBugStatus(w http.ResponseWriter, r *http.Request) {
	var req bugStatusRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeFailure(w, err)
		return
	}
	b, err := s.testruns.UpdateBugStatus(r.Context(), r.PathValue("id"), testrun.BugStatus(req.Status))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "bug updated", map[string]interface{}{"bug": b})
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	devs, err := s.store.ListDevices(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{"devices": devs, "count": len(devs)})
}

// createDevice records a device that does not announce itself over MQTT.
func (s *Server) createDevice(w http.ResponseWriter, r *http.Request) {
	var d testrun.Device
	if err := s.decode(r, &d, false); err != nil {
		s.writeFailure(w, err)
		return
	}
	if !d.Type.Valid() {
		s.writeFailure(w, fmt.Errorf("%w: unknown device type %q", errBadRequest, d.Type))
		return
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.IsAvailable = true
	d.CreatedAt = time.Now().UTC()
	if err := s.store.PutDevice(r.Context(), &d); err != nil {
		s.writeFailure(w, err)
		return
	}
	events.Emit("info", "device.registered", d.Name, map[string]interface{}{
		"device_id": d.ID,
		"type":      string(d.Type),
	})
	writeOK(w, http.StatusCreated, "device registered", map[string]interface{}{"device": d})
}

type createUserRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=50"`
	Email      string `json:"email" validate:"omitempty,email"`
	FullName   string `json:"full_name"`
	Role       string `json:"role" validate:"required"`
	Department string `json:"department"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeFailure(w, err)
		return
	}
	role, err := users.ParseRole(req.Role)
	if err != nil {
		s.writeFailure(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if _, err := s.store.UserByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}

	u := &users.User{
		ID:         uuid.NewString(),
		Username:   req.Username,
		Email:      req.Email,
		FullName:   req.FullName,
		Role:       role,
		IsActive:   true,
		Department: req.Department,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.PutUser(r.Context(), u); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusCreated, "user created", map[string]interface{}{"user": u})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{
		"user":         u,
		"capabilities": users.Capabilities(u.Role),
	})
}
