package scenario

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NodeType identifies the behavior of a visual-script node.
// Allowed types: event, action, condition, variable, function, comment
type NodeType string

const (
	NodeEvent     NodeType = "event"
	NodeAction    NodeType = "action"
	NodeCondition NodeType = "condition"
	NodeVariable  NodeType = "variable"
	NodeFunction  NodeType = "function"
	NodeComment   NodeType = "comment"
)

var validNodeTypes = map[NodeType]bool{
	NodeEvent:     true,
	NodeAction:    true,
	NodeCondition: true,
	NodeVariable:  true,
	NodeFunction:  true,
	NodeComment:   true,
}

// ConnectionType identifies how two nodes are wired.
type ConnectionType string

const (
	ConnExecution ConnectionType = "execution"
	ConnData      ConnectionType = "data"
	ConnEvent     ConnectionType = "event"
)

var validConnectionTypes = map[ConnectionType]bool{
	ConnExecution: true,
	ConnData:      true,
	ConnEvent:     true,
}

// Node is a typed vertex of a visual script. Properties hold the per-type
// payload: "condition" for condition nodes, "value" for variable nodes.
type Node struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Type        NodeType               `json:"node_type"`
	Description string                 `json:"description,omitempty"`
	Position    Vector3                `json:"position"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	Inputs      []string               `json:"inputs,omitempty"`
	Outputs     []string               `json:"outputs,omitempty"`
}

// Condition returns the node's condition expression, if any.
func (n *Node) Condition() string {
	if n.Properties == nil {
		return ""
	}
	s, _ := n.Properties["condition"].(string)
	return s
}

// Value returns the node's bound value, if any.
func (n *Node) Value() (interface{}, bool) {
	if n.Properties == nil {
		return nil, false
	}
	v, ok := n.Properties["value"]
	return v, ok
}

// Connection is a directed wire between two nodes of the same script.
type Connection struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source_node_id"`
	Target     string                 `json:"target_node_id"`
	SourcePort string                 `json:"source_port,omitempty"`
	TargetPort string                 `json:"target_port,omitempty"`
	Type       ConnectionType         `json:"connection_type"`
	Enabled    bool                   `json:"is_enabled"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// VisualScript is a node/connection graph in a project. A script attached
// to a scenario records it in ScenarioID and is deleted with it.
type VisualScript struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	ProjectID   string                 `json:"project_id"`
	ScenarioID  string                 `json:"scenario_id,omitempty"`
	Version     string                 `json:"version"`
	IsTemplate  bool                   `json:"is_template"`
	Variables   map[string]interface{} `json:"variables,omitempty"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	Nodes       []Node                 `json:"nodes"`
	Connections []Connection           `json:"connections"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// NewVisualScript creates an empty script with a fresh ID.
func NewVisualScript(name, projectID string) *VisualScript {
	now := time.Now().UTC()
	return &VisualScript{
		ID:        uuid.NewString(),
		Name:      name,
		ProjectID: projectID,
		Version:   "1.0.0",
		Variables: make(map[string]interface{}),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddNode appends a node and returns the stored copy.
func (v *VisualScript) AddNode(name string, nodeType NodeType, props map[string]interface{}) *Node {
	v.Nodes = append(v.Nodes, Node{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       nodeType,
		Properties: props,
	})
	v.UpdatedAt = time.Now().UTC()
	return &v.Nodes[len(v.Nodes)-1]
}

// Connect wires source to target with an enabled connection of the given type.
func (v *VisualScript) Connect(sourceID, targetID string, connType ConnectionType) *Connection {
	if connType == "" {
		connType = ConnExecution
	}
	v.Connections = append(v.Connections, Connection{
		ID:      uuid.NewString(),
		Source:  sourceID,
		Target:  targetID,
		Type:    connType,
		Enabled: true,
	})
	v.UpdatedAt = time.Now().UTC()
	return &v.Connections[len(v.Connections)-1]
}

// NodeByID returns the node with the given ID, or nil.
func (v *VisualScript) NodeByID(id string) *Node {
	for i := range v.Nodes {
		if v.Nodes[i].ID == id {
			return &v.Nodes[i]
		}
	}
	return nil
}

// NodesOfType returns the nodes of a given type in storage order.
func (v *VisualScript) NodesOfType(t NodeType) []Node {
	var out []Node
	for _, n := range v.Nodes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// ValidateScript checks that node and connection types are known and that
// every connection endpoint resolves to a node of this script.
func ValidateScript(v *VisualScript) []string {
	var errs []string

	ids := make(map[string]bool, len(v.Nodes))
	for _, n := range v.Nodes {
		if ids[n.ID] {
			errs = append(errs, fmt.Sprintf("duplicate node id %s", n.ID))
		}
		ids[n.ID] = true
		if !validNodeTypes[n.Type] {
			errs = append(errs, fmt.Sprintf("node %s has unknown type %q", n.ID, n.Type))
		}
	}

	for _, c := range v.Connections {
		if !ids[c.Source] {
			errs = append(errs, fmt.Sprintf("connection %s references unknown source node %s", c.ID, c.Source))
		}
		if !ids[c.Target] {
			errs = append(errs, fmt.Sprintf("connection %s references unknown target node %s", c.ID, c.Target))
		}
		if !validConnectionTypes[c.Type] {
			errs = append(errs, fmt.Sprintf("connection %s has unknown type %q", c.ID, c.Type))
		}
	}

	return errs
}

// Clone returns a copy whose slices can be modified independently.
func (v *VisualScript) Clone() *VisualScript {
	cpy := *v
	cpy.Nodes = append([]Node(nil), v.Nodes...)
	cpy.Connections = append([]Connection(nil), v.Connections...)
	cpy.Variables = copyBag(v.Variables)
	cpy.Settings = copyBag(v.Settings)
	return &cpy
}

// UnmarshalJSON defaults is_enabled to true when the field is absent.
func (c *Connection) UnmarshalJSON(data []byte) error {
	type plain Connection
	tmp := plain{Enabled: true}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*c = Connection(tmp)
	return nil
}
