package scenario

import (
	"time"

	"github.com/google/uuid"
)

// StateType classifies a state in a scenario graph.
type StateType string

const (
	StateStart       StateType = "start"
	StateIdle        StateType = "idle"
	StateInteraction StateType = "interaction"
	StateAnimation   StateType = "animation"
	StateEnd         StateType = "end"
	StateCondition   StateType = "condition"
	StateParallel    StateType = "parallel"
)

// Valid reports whether t is one of the known state types.
func (t StateType) Valid() bool {
	switch t {
	case StateStart, StateIdle, StateInteraction, StateAnimation, StateEnd, StateCondition, StateParallel:
		return true
	}
	return false
}

// TriggerType describes how a transition is fired. The engine treats all of
// them the same way; the value is carried for authoring tools.
type TriggerType string

const (
	TriggerAuto   TriggerType = "auto"
	TriggerManual TriggerType = "manual"
	TriggerEvent  TriggerType = "event"
)

// Vector3 is a position in scene space. Visualization only.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// State is a node of a scenario graph.
type State struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Type        StateType              `json:"state_type"`
	Position    Vector3                `json:"position"`
	Description string                 `json:"description,omitempty"`
	Color       string                 `json:"color,omitempty"`
	Size        float64                `json:"size,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
}

// Transition is a directed, guarded, prioritized edge between two states.
type Transition struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name,omitempty"`
	Source      string                   `json:"source_state_id"`
	Target      string                   `json:"target_state_id"`
	Condition   string                   `json:"condition"`
	Priority    int                      `json:"priority"`
	Actions     []map[string]interface{} `json:"actions,omitempty"`
	TriggerType TriggerType              `json:"trigger_type,omitempty"`
	DelayMS     int                      `json:"delay_ms,omitempty"`
}

// Approval records a manager sign-off on a scenario.
type Approval struct {
	UserID     string    `json:"user_id"`
	ApprovedAt time.Time `json:"approved_at"`
	Comments   string    `json:"comments,omitempty"`
}

// Scenario is a named finite-state interaction definition owned by a project.
// States and transitions keep insertion order; the engine depends on it.
type Scenario struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	ProjectID   string                 `json:"project_id"`
	CreatedBy   string                 `json:"created_by,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	IsActive    bool                   `json:"is_active"`
	IsValidated bool                   `json:"is_validated"`
	IsApproved  bool                   `json:"is_approved"`
	Version     string                 `json:"version"`
	Variables   map[string]interface{} `json:"variables,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	States      []State                `json:"states"`
	Transitions []Transition           `json:"transitions"`
	Approvers   []Approval             `json:"approvers,omitempty"`
	AssetIDs    []string               `json:"asset_ids,omitempty"`
	ObjectIDs   []string               `json:"object_ids,omitempty"`

	VisualScriptID string `json:"visual_script_id,omitempty"`
}

// New creates an empty, active scenario with a fresh ID.
func New(name, projectID, createdBy string) *Scenario {
	now := time.Now().UTC()
	return &Scenario{
		ID:        uuid.NewString(),
		Name:      name,
		ProjectID: projectID,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
		Version:   "1.0.0",
		Variables: make(map[string]interface{}),
	}
}

// AddState appends a state and returns a pointer to the stored copy.
// An empty type defaults to idle.
func (s *Scenario) AddState(name string, stateType StateType, pos Vector3) *State {
	if stateType == "" {
		stateType = StateIdle
	}
	s.States = append(s.States, State{
		ID:       uuid.NewString(),
		Name:     name,
		Type:     stateType,
		Position: pos,
		Color:    "#3498db",
		Size:     1.0,
	})
	s.touch()
	return &s.States[len(s.States)-1]
}

// AddTransition appends a transition between two state IDs. Endpoints are not
// checked here; Validate reports dangling references.
func (s *Scenario) AddTransition(sourceID, targetID, condition string, priority int) *Transition {
	s.Transitions = append(s.Transitions, Transition{
		ID:          uuid.NewString(),
		Source:      sourceID,
		Target:      targetID,
		Condition:   condition,
		Priority:    priority,
		TriggerType: TriggerAuto,
	})
	s.touch()
	return &s.Transitions[len(s.Transitions)-1]
}

// StateByID returns the state with the given ID, or nil.
func (s *Scenario) StateByID(id string) *State {
	for i := range s.States {
		if s.States[i].ID == id {
			return &s.States[i]
		}
	}
	return nil
}

// HasState returns true if the state exists in this scenario.
func (s *Scenario) HasState(id string) bool {
	return s.StateByID(id) != nil
}

// FirstOfType returns the first state of the given type in insertion order.
func (s *Scenario) FirstOfType(t StateType) *State {
	for i := range s.States {
		if s.States[i].Type == t {
			return &s.States[i]
		}
	}
	return nil
}

// OutgoingTransitions returns the transitions leaving stateID in insertion order.
func (s *Scenario) OutgoingTransitions(stateID string) []Transition {
	var out []Transition
	for _, t := range s.Transitions {
		if t.Source == stateID {
			out = append(out, t)
		}
	}
	return out
}

// StateTypes returns the distinct state types present, in first-appearance order.
func (s *Scenario) StateTypes() []StateType {
	seen := make(map[StateType]bool)
	var out []StateType
	for _, st := range s.States {
		if seen[st.Type] {
			continue
		}
		seen[st.Type] = true
		out = append(out, st.Type)
	}
	return out
}

// Approve records an approval from a manager. Repeat approvals by the same
// user are ignored. Returns true if a new approval was recorded.
func (s *Scenario) Approve(userID, comments string) bool {
	for _, a := range s.Approvers {
		if a.UserID == userID {
			return false
		}
	}
	s.Approvers = append(s.Approvers, Approval{
		UserID:     userID,
		ApprovedAt: time.Now().UTC(),
		Comments:   comments,
	})
	s.IsApproved = true
	s.touch()
	return true
}

// GraphNode and GraphEdge are the visualization view of a scenario.
type GraphNode struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Type     StateType `json:"type"`
	Position Vector3   `json:"position"`
}

type GraphEdge struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Condition string `json:"condition"`
	Priority  int    `json:"priority"`
}

// StateGraph is the nodes/edges projection used by editors.
type StateGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Graph returns the visualization projection of the scenario.
func (s *Scenario) Graph() StateGraph {
	g := StateGraph{
		Nodes: make([]GraphNode, 0, len(s.States)),
		Edges: make([]GraphEdge, 0, len(s.Transitions)),
	}
	for _, st := range s.States {
		g.Nodes = append(g.Nodes, GraphNode{ID: st.ID, Name: st.Name, Type: st.Type, Position: st.Position})
	}
	for _, t := range s.Transitions {
		g.Edges = append(g.Edges, GraphEdge{ID: t.ID, Source: t.Source, Target: t.Target, Condition: t.Condition, Priority: t.Priority})
	}
	return g
}

// Stats summarizes a scenario for dashboards.
type Stats struct {
	States          int  `json:"states"`
	Transitions     int  `json:"transitions"`
	Objects         int  `json:"objects_3d"`
	IsValidated     bool `json:"is_validated"`
	IsApproved      bool `json:"is_approved"`
	Approvers       int  `json:"approvers_count"`
	HasVisualScript bool `json:"has_visual_script"`
}

func (s *Scenario) Stats() Stats {
	return Stats{
		States:          len(s.States),
		Transitions:     len(s.Transitions),
		Objects:         len(s.ObjectIDs),
		IsValidated:     s.IsValidated,
		IsApproved:      s.IsApproved,
		Approvers:       len(s.Approvers),
		HasVisualScript: s.VisualScriptID != "",
	}
}

// Clone returns a deep copy of the graph portion of the scenario. Stores hand
// out clones so callers cannot mutate persisted state.
func (s *Scenario) Clone() *Scenario {
	cpy := *s
	cpy.States = append([]State(nil), s.States...)
	cpy.Transitions = append([]Transition(nil), s.Transitions...)
	cpy.Approvers = append([]Approval(nil), s.Approvers...)
	cpy.AssetIDs = append([]string(nil), s.AssetIDs...)
	cpy.ObjectIDs = append([]string(nil), s.ObjectIDs...)
	cpy.Variables = copyBag(s.Variables)
	cpy.Metadata = copyBag(s.Metadata)
	return &cpy
}

func copyBag(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Scenario) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// StartState returns the first start-typed state, or nil.
func (s *Scenario) StartState() *State {
	return s.FirstOfType(StateStart)
}
