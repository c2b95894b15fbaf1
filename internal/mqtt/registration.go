package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/AaronLay10/SentientStudio/internal/testrun"
)

// RegistrationPayload is the v1 message a test agent publishes on the
// register topic to announce the devices it drives.
type RegistrationPayload struct {
	Version int                  `json:"version"`
	Agent   AgentInfo            `json:"agent"`
	Devices []DeviceRegistration `json:"devices"`
}

// AgentInfo describes the process (headset app, simulator host) reporting
// the devices.
type AgentInfo struct {
	ID           string `json:"id"`
	Platform     string `json:"platform"`
	Version      string `json:"version"`
	IPAddress    string `json:"ip_address"`
	UptimeMS     int64  `json:"uptime_ms"`
	HeartbeatSec int    `json:"heartbeat_sec"`
}

// DeviceRegistration describes a single device provided by the agent.
type DeviceRegistration struct {
	LogicalID       string       `json:"logical_id"`
	Name            string       `json:"name"`
	Type            string       `json:"type"`
	Manufacturer    string       `json:"manufacturer"`
	Model           string       `json:"model"`
	SerialNumber    string       `json:"serial_number"`
	FirmwareVersion string       `json:"firmware_version"`
	Capabilities    []string     `json:"capabilities"`
	Topics          DeviceTopics `json:"topics"`
}

// DeviceTopics defines MQTT topics for device communication.
type DeviceTopics struct {
	Publish   string `json:"publish"`
	Subscribe string `json:"subscribe"`
}

// ParseRegistration parses a registration payload from JSON bytes.
func ParseRegistration(data []byte) (*RegistrationPayload, error) {
	var payload RegistrationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid registration JSON: %w", err)
	}

	if payload.Version != 1 {
		return nil, fmt.Errorf("unsupported registration version: %d", payload.Version)
	}

	if payload.Agent.ID == "" {
		return nil, fmt.Errorf("agent.id is required")
	}

	return &payload, nil
}

// DeviceSpec is a device expected by devices.yaml.
type DeviceSpec struct {
	Type         string
	Required     bool
	Capabilities []string
}

// ValidationResult contains validation outcome.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateRegistration checks a payload's devices: every device needs a
// logical id and a known device type, and devices named in specs must
// match their declared type and capabilities. Devices without a spec are
// accepted with a warning.
func ValidateRegistration(payload *RegistrationPayload, specs map[string]DeviceSpec) *ValidationResult {
	result := &ValidationResult{Valid: true}
	fail := func(format string, args ...interface{}) {
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
		result.Valid = false
	}

	registered := make(map[string]*DeviceRegistration)
	for i := range payload.Devices {
		dev := &payload.Devices[i]
		if dev.LogicalID == "" {
			fail("device with empty logical_id")
			continue
		}
		if !testrun.DeviceType(dev.Type).Valid() {
			fail("device %s: unknown type %q", dev.LogicalID, dev.Type)
		}
		registered[dev.LogicalID] = dev
	}

	for logicalID, spec := range specs {
		reg, found := registered[logicalID]
		if !found {
			if spec.Required {
				fail("required device missing: %s", logicalID)
			}
			continue
		}

		if spec.Type != "" && reg.Type != spec.Type {
			fail("device %s: type mismatch (expected %s, got %s)", logicalID, spec.Type, reg.Type)
		}

		for _, reqCap := range spec.Capabilities {
			if !containsString(reg.Capabilities, reqCap) {
				fail("device %s: missing capability %s", logicalID, reqCap)
			}
		}
	}

	for i := range payload.Devices {
		id := payload.Devices[i].LogicalID
		if _, ok := specs[id]; !ok && id != "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unrecognized device: %s", id))
		}
	}

	return result
}

func containsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}

// DeviceSpecFromConfig converts a device definition to a DeviceSpec.
func DeviceSpecFromConfig(devType string, required bool, capabilities []string) DeviceSpec {
	return DeviceSpec{
		Type:         devType,
		Required:     required,
		Capabilities: capabilities,
	}
}
