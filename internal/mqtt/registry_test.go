package mqtt

import (
	"testing"
	"time"

	"github.com/AaronLay10/SentientStudio/internal/testrun"
)

func TestDeviceRegistry_RegisterAndGet(t *testing.T) {
	registry := NewDeviceRegistry()

	dev := &RegisteredDevice{
		LogicalID:    "quest_lab_1",
		AgentID:      "agent-001",
		Type:         "vr_headset",
		CommandTopic: "studio/agents/agent-001/quest_lab_1/commands",
		EventTopic:   "studio/agents/agent-001/quest_lab_1/events",
		Capabilities: []string{"hand_tracking", "passthrough"},
	}
	registry.Register(dev)

	got := registry.Get("quest_lab_1")
	if got == nil {
		t.Fatal("expected device, got nil")
	}
	if got.LogicalID != "quest_lab_1" {
		t.Errorf("expected logical_id quest_lab_1, got %s", got.LogicalID)
	}
	if got.CommandTopic != "studio/agents/agent-001/quest_lab_1/commands" {
		t.Errorf("expected command topic, got %s", got.CommandTopic)
	}

	if !registry.Exists("quest_lab_1") {
		t.Error("expected device to exist")
	}
	if registry.Exists("nonexistent") {
		t.Error("expected device to not exist")
	}
	if registry.Get("nonexistent") != nil {
		t.Error("expected nil for unknown device")
	}
}

func TestDeviceRegistry_GetReturnsCopy(t *testing.T) {
	registry := NewDeviceRegistry()
	dev := &RegisteredDevice{LogicalID: "quest_lab_1", Capabilities: []string{"hand_tracking"}}
	registry.Register(dev)

	// Mutating the caller's value or a returned copy leaves the registry alone.
	dev.Capabilities[0] = "changed"
	got := registry.Get("quest_lab_1")
	got.Capabilities = append(got.Capabilities, "eye_tracking")

	again := registry.Get("quest_lab_1")
	if len(again.Capabilities) != 1 || again.Capabilities[0] != "hand_tracking" {
		t.Errorf("registry state leaked: %v", again.Capabilities)
	}
}

func TestDeviceRegistry_GetCommandTopic(t *testing.T) {
	registry := NewDeviceRegistry()
	registry.Register(&RegisteredDevice{
		LogicalID:    "quest_lab_1",
		CommandTopic: "studio/agents/agent-001/quest_lab_1/commands",
	})

	if topic := registry.GetCommandTopic("quest_lab_1"); topic != "studio/agents/agent-001/quest_lab_1/commands" {
		t.Errorf("expected command topic, got %s", topic)
	}
	if topic := registry.GetCommandTopic("nonexistent"); topic != "" {
		t.Errorf("expected empty string for nonexistent device, got %s", topic)
	}
}

func TestDeviceRegistry_HasCapability(t *testing.T) {
	registry := NewDeviceRegistry()
	registry.Register(&RegisteredDevice{
		LogicalID:    "hololens_2",
		Capabilities: []string{"spatial_mapping", "hand_tracking"},
	})

	if !registry.HasCapability("hololens_2", "spatial_mapping") {
		t.Error("expected spatial_mapping")
	}
	if registry.HasCapability("hololens_2", "passthrough") {
		t.Error("expected no passthrough")
	}
	if registry.HasCapability("nonexistent", "spatial_mapping") {
		t.Error("unknown device has no capabilities")
	}
}

func TestDeviceRegistry_ValidateCommand(t *testing.T) {
	registry := NewDeviceRegistry()
	registry.Register(&RegisteredDevice{
		LogicalID:    "quest_lab_1",
		CommandTopic: "cmd",
		Capabilities: []string{"hand_tracking"},
	})
	registry.Register(&RegisteredDevice{
		LogicalID:    "passive",
		Capabilities: []string{"hand_tracking"},
	})

	tests := []struct {
		name, id, capability string
		wantErr              bool
	}{
		{"valid", "quest_lab_1", "hand_tracking", false},
		{"unknown device", "ghost", "hand_tracking", true},
		{"no command topic", "passive", "hand_tracking", true},
		{"unsupported capability", "quest_lab_1", "eye_tracking", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.ValidateCommand(tt.id, tt.capability)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCommand(%s, %s) error = %v, wantErr %v", tt.id, tt.capability, err, tt.wantErr)
			}
		})
	}
}

func TestDeviceRegistry_RegisterFromPayload(t *testing.T) {
	registry := NewDeviceRegistry()
	payload := &RegistrationPayload{
		Version: 1,
		Agent:   AgentInfo{ID: "agent-001", IPAddress: "10.0.0.12"},
		Devices: []DeviceRegistration{
			{
				LogicalID:    "quest_lab_1",
				Name:         "Quest 3",
				Type:         "vr_headset",
				Capabilities: []string{"hand_tracking"},
				Topics:       DeviceTopics{Publish: "ev", Subscribe: "cmd"},
			},
			{LogicalID: "desktop_sim", Type: "simulator"},
			{LogicalID: "", Type: "mobile"},
		},
	}

	stored := registry.RegisterFromPayload(payload)
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored devices, got %d", len(stored))
	}

	got := registry.Get("quest_lab_1")
	if got.AgentID != "agent-001" || got.IPAddress != "10.0.0.12" {
		t.Errorf("agent data not copied: %+v", got)
	}
	if got.EventTopic != "ev" || got.CommandTopic != "cmd" {
		t.Errorf("topics not mapped: %+v", got)
	}

	ids := registry.ByAgent("agent-001")
	if len(ids) != 2 || ids[0] != "desktop_sim" || ids[1] != "quest_lab_1" {
		t.Errorf("ByAgent = %v", ids)
	}
}

func TestDeviceRegistry_AllSortedAndClear(t *testing.T) {
	registry := NewDeviceRegistry()
	registry.Register(&RegisteredDevice{LogicalID: "b"})
	registry.Register(&RegisteredDevice{LogicalID: "a"})

	all := registry.All()
	if len(all) != 2 || all[0].LogicalID != "a" {
		t.Errorf("All() = %v", all)
	}

	registry.Unregister("a")
	if registry.Exists("a") {
		t.Error("expected a unregistered")
	}

	registry.Clear()
	if len(registry.All()) != 0 {
		t.Error("expected empty registry after Clear")
	}
}

func TestRegisteredDevice_ToDevice(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	rd := &RegisteredDevice{
		LogicalID:    "quest_lab_1",
		AgentID:      "agent-001",
		Type:         "vr_headset",
		Capabilities: []string{"hand_tracking"},
		CommandTopic: "cmd",
	}

	d := rd.ToDevice(now)
	if d.ID != "quest_lab_1" || d.Name != "quest_lab_1" {
		t.Errorf("id/name = %s/%s", d.ID, d.Name)
	}
	if d.Type != testrun.DeviceVRHeadset {
		t.Errorf("type = %s", d.Type)
	}
	if !d.IsConnected || !d.IsAvailable || d.LastSeen == nil || !d.LastSeen.Equal(now) {
		t.Errorf("expected connected and available device, got %+v", d)
	}
	if d.Properties["agent_id"] != "agent-001" || d.Properties["command_topic"] != "cmd" {
		t.Errorf("properties = %v", d.Properties)
	}
}
