package scenario

import (
	"encoding/json"
	"fmt"
	"os"
)

// Document is the versioned on-disk form of an authored graph.
type Document struct {
	Version      int           `json:"version"`
	Scenario     *Scenario     `json:"scenario,omitempty"`
	VisualScript *VisualScript `json:"visual_script,omitempty"`
}

// LoadDocument loads a graph document from a JSON file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph document: %w", err)
	}
	return ParseDocument(data)
}

// ParseDocument decodes a graph document and fills defaults the authoring
// tools may omit.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse graph document JSON: %w", err)
	}

	if doc.Version != 1 {
		return nil, fmt.Errorf("unsupported graph document version: %d", doc.Version)
	}
	if doc.Scenario == nil && doc.VisualScript == nil {
		return nil, fmt.Errorf("graph document has neither scenario nor visual_script")
	}

	if s := doc.Scenario; s != nil {
		for i := range s.States {
			if s.States[i].Type == "" {
				s.States[i].Type = StateIdle
			}
		}
		for i := range s.Transitions {
			if s.Transitions[i].TriggerType == "" {
				s.Transitions[i].TriggerType = TriggerAuto
			}
		}
		if s.Version == "" {
			s.Version = "1.0.0"
		}
	}
	if v := doc.VisualScript; v != nil {
		for i := range v.Connections {
			if v.Connections[i].Type == "" {
				v.Connections[i].Type = ConnExecution
			}
		}
	}

	return &doc, nil
}
