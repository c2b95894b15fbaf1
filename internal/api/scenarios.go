package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/AaronLay10/SentientStudio/internal/engine"
	"github.com/AaronLay10/SentientStudio/internal/events"
	"github.com/AaronLay10/SentientStudio/internal/scenario"
	"github.com/AaronLay10/SentientStudio/internal/store"
)

type createScenarioRequest struct {
	Name           string                 `json:"name" validate:"required,max=100"`
	Description    string                 `json:"description" validate:"max=1000"`
	ProjectID      string                 `json:"project_id" validate:"required"`
	Variables      map[string]interface{} `json:"variables"`
	Metadata       map[string]interface{} `json:"metadata"`
	States         []scenario.State       `json:"states"`
	Transitions    []scenario.Transition  `json:"transitions"`
	VisualScriptID string                 `json:"visual_script_id"`
}

// build turns the request into a scenario, filling ids and default types.
func (req *createScenarioRequest) build(createdBy string) (*scenario.Scenario, error) {
	sc := scenario.New(req.Name, req.ProjectID, createdBy)
	sc.Description = req.Description
	sc.Metadata = req.Metadata
	sc.VisualScriptID = req.VisualScriptID
	if req.Variables != nil {
		sc.Variables = req.Variables
	}

	for _, st := range req.States {
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		if st.Type == "" {
			st.Type = scenario.StateIdle
		}
		if !st.Type.Valid() {
			return nil, fmt.Errorf("%w: state %s has unknown type %q", errBadRequest, st.ID, st.Type)
		}
		sc.States = append(sc.States, st)
	}
	for _, t := range req.Transitions {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.TriggerType == "" {
			t.TriggerType = scenario.TriggerAuto
		}
		sc.Transitions = append(sc.Transitions, t)
	}
	return sc, nil
}

func (s *Server) createScenario(w http.ResponseWriter, r *http.Request) {
	var req createScenarioRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeFailure(w, err)
		return
	}
	sc, err := req.build(PrincipalFrom(r.Context()).Username)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if sc.VisualScriptID != "" {
		if err := s.attachVisualScript(r, sc); err != nil {
			s.writeFailure(w, err)
			return
		}
	}
	if err := s.store.PutScenario(r.Context(), sc); err != nil {
		s.writeFailure(w, err)
		return
	}
	events.Emit("info", "scenario.created", sc.Name, map[string]interface{}{
		"scenario_id": sc.ID,
		"project_id":  sc.ProjectID,
	})
	writeOK(w, http.StatusCreated, "scenario created", map[string]interface{}{"scenario": sc})
}

func (s *Server) listScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListScenarios(r.Context(), r.URL.Query().Get("project_id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{"scenarios": list, "count": len(list)})
}

// attachVisualScript makes sc the owner of its visual script.
func (s *Server) attachVisualScript(r *http.Request, sc *scenario.Scenario) error {
	v, err := s.store.GetVisualScript(r.Context(), sc.VisualScriptID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: visual script %s does not exist", errBadRequest, sc.VisualScriptID)
	}
	if err != nil {
		return err
	}
	if v.ScenarioID != "" && v.ScenarioID != sc.ID {
		return fmt.Errorf("%w: visual script %s already belongs to scenario %s", errBadRequest, v.ID, v.ScenarioID)
	}
	v.ScenarioID = sc.ID
	return s.store.PutVisualScript(r.Context(), v)
}

func (s *Server) getScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScenario(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{"scenario": sc})
}

func (s *Server) deleteScenario(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteScenario(r.Context(), id); err != nil {
		s.writeFailure(w, err)
		return
	}
	events.Emit("info", "scenario.deleted", "", map[string]interface{}{"scenario_id": id})
	writeOK(w, http.StatusOK, "scenario deleted", nil)
}

// validateScenario runs the graph checks and stores the outcome.
func (s *Server) validateScenario(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScenario(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	ok, errs := scenario.Validate(sc)
	if errs == nil {
		errs = []string{}
	}
	if err := s.store.PutScenario(r.Context(), sc); err != nil {
		s.writeFailure(w, err)
		return
	}

	name, level, msg := "scenario.validated", "info", "scenario is valid"
	if !ok {
		name, level, msg = "scenario.invalid", "warn", "scenario has errors"
	}
	events.Emit(level, name, sc.Name, map[string]interface{}{
		"scenario_id": sc.ID,
		"errors":      len(errs),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      ok,
		"message":      msg,
		"is_validated": ok,
		"errors":       errs,
	})
}

type executeRequest struct {
	Variables map[string]interface{} `json:"variables"`
}

// executeScenario walks the scenario once. Variables in the body replace
// the scenario's own for this walk.
func (s *Server) executeScenario(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := s.decode(r, &req, true); err != nil {
		s.writeFailure(w, err)
		return
	}
	sc, err := s.store.GetScenario(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	metricsState.scenarioWalks.Add(1)
	tr, err := s.engine.Run(sc, engine.Input{Bindings: req.Variables})
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "scenario executed", map[string]interface{}{
		"result": tr.OK,
		"trace":  tr,
	})
}

func (s *Server) scenarioGraph(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScenario(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{"graph": sc.Graph()})
}

func (s *Server) scenarioStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sc, err := s.store.GetScenario(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	runStats, err := s.testruns.Stats(r.Context(), id)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{
		"stats":         sc.Stats(),
		"testrun_stats": runStats,
	})
}

type approveRequest struct {
	Comments string `json:"comments" validate:"max=500"`
}

func (s *Server) approveScenario(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := s.decode(r, &req, true); err != nil {
		s.writeFailure(w, err)
		return
	}
	sc, err := s.store.GetScenario(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	approver := PrincipalFrom(r.Context()).Username
	if !sc.Approve(approver, req.Comments) {
		writeOK(w, http.StatusOK, "already approved by "+approver, map[string]interface{}{"scenario": sc})
		return
	}
	if err := s.store.PutScenario(r.Context(), sc); err != nil {
		s.writeFailure(w, err)
		return
	}
	events.Emit("info", "scenario.approved", sc.Name, map[string]interface{}{
		"scenario_id": sc.ID,
		"approver":    approver,
	})
	writeOK(w, http.StatusOK, "scenario approved", map[string]interface{}{"scenario": sc})
}

type createScriptRequest struct {
	Name        string                 `json:"name" validate:"required,max=100"`
	Description string                 `json:"description"`
	ProjectID   string                 `json:"project_id" validate:"required"`
	IsTemplate  bool                   `json:"is_template"`
	Variables   map[string]interface{} `json:"variables"`
	Settings    map[string]interface{} `json:"settings"`
	Nodes       []scenario.Node        `json:"nodes"`
	Connections []scenario.Connection  `json:"connections"`
}

func (s *Server) createVisualScript(w http.ResponseWriter, r *http.Request) {
	var req createScriptRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeFailure(w, err)
		return
	}

	v := scenario.NewVisualScript(req.Name, req.ProjectID)
	v.Description = req.Description
	v.IsTemplate = req.IsTemplate
	v.Settings = req.Settings
	if req.Variables != nil {
		v.Variables = req.Variables
	}
	for _, n := range req.Nodes {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		v.Nodes = append(v.Nodes, n)
	}
	for _, c := range req.Connections {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if c.Type == "" {
			c.Type = scenario.ConnExecution
		}
		v.Connections = append(v.Connections, c)
	}

	if errs := scenario.ValidateScript(v); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "invalid visual script",
			"errors":  errs,
		})
		return
	}
	if err := s.store.PutVisualScript(r.Context(), v); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusCreated, "visual script created", map[string]interface{}{"visual_script": v})
}

func (s *Server) getVisualScript(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.GetVisualScript(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "", map[string]interface{}{"visual_script": v})
}

func (s *Server) deleteVisualScript(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteVisualScript(r.Context(), r.PathValue("id")); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "visual script deleted", nil)
}

func (s *Server) runVisualScript(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := s.decode(r, &req, true); err != nil {
		s.writeFailure(w, err)
		return
	}
	v, err := s.store.GetVisualScript(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	out, err := s.scripts.RunScript(v, req.Variables)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeOK(w, http.StatusOK, "visual script executed", map[string]interface{}{"run": out})
}
