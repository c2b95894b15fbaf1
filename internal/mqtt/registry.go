package mqtt

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AaronLay10/SentientStudio/internal/testrun"
)

// RegisteredDevice holds runtime information about a registered device.
type RegisteredDevice struct {
	LogicalID       string
	AgentID         string
	Name            string
	Type            string
	Manufacturer    string
	Model           string
	SerialNumber    string
	FirmwareVersion string
	IPAddress       string
	CommandTopic    string // topics.subscribe from registration
	EventTopic      string // topics.publish from registration
	Capabilities    []string
}

func (d *RegisteredDevice) clone() *RegisteredDevice {
	cpy := *d
	cpy.Capabilities = append([]string{}, d.Capabilities...)
	return &cpy
}

// ToDevice converts the registration into the stored device record. The
// logical id becomes the device id so re-registration updates in place.
func (d *RegisteredDevice) ToDevice(now time.Time) *testrun.Device {
	name := d.Name
	if name == "" {
		name = d.LogicalID
	}
	dev := &testrun.Device{
		ID:              d.LogicalID,
		Name:            name,
		Type:            testrun.DeviceType(d.Type),
		Capabilities:    append([]string{}, d.Capabilities...),
		Manufacturer:    d.Manufacturer,
		Model:           d.Model,
		SerialNumber:    d.SerialNumber,
		FirmwareVersion: d.FirmwareVersion,
		IPAddress:       d.IPAddress,
		IsAvailable:     true,
		CreatedAt:       now,
		Properties: map[string]interface{}{
			"agent_id":      d.AgentID,
			"command_topic": d.CommandTopic,
			"event_topic":   d.EventTopic,
		},
	}
	dev.Connect(now)
	return dev
}

// DeviceRegistry maps logical device IDs to their MQTT topics and metadata.
type DeviceRegistry struct {
	mu      sync.RWMutex
	devices map[string]*RegisteredDevice
}

// NewDeviceRegistry creates a new empty device registry.
func NewDeviceRegistry() *DeviceRegistry {
	return &DeviceRegistry{
		devices: make(map[string]*RegisteredDevice),
	}
}

// Register adds or updates a device in the registry.
func (r *DeviceRegistry) Register(dev *RegisteredDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[dev.LogicalID] = dev.clone()
}

// Unregister removes a device from the registry.
func (r *DeviceRegistry) Unregister(logicalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, logicalID)
}

// Get returns a copy of a device, or nil if not found.
func (r *DeviceRegistry) Get(logicalID string) *RegisteredDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if dev, ok := r.devices[logicalID]; ok {
		return dev.clone()
	}
	return nil
}

// Exists returns true if the device is registered.
func (r *DeviceRegistry) Exists(logicalID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.devices[logicalID]
	return ok
}

// GetCommandTopic returns the command topic for a device, or empty string if not found.
func (r *DeviceRegistry) GetCommandTopic(logicalID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if dev, ok := r.devices[logicalID]; ok {
		return dev.CommandTopic
	}
	return ""
}

// HasCapability returns true if the device advertises capability c.
func (r *DeviceRegistry) HasCapability(logicalID, c string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if dev, ok := r.devices[logicalID]; ok {
		return containsString(dev.Capabilities, c)
	}
	return false
}

// ValidateCommand checks that a device exists, can receive commands and
// advertises the capability a command needs.
func (r *DeviceRegistry) ValidateCommand(logicalID, capability string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[logicalID]
	if !ok {
		return fmt.Errorf("device not registered: %s", logicalID)
	}

	if dev.CommandTopic == "" {
		return fmt.Errorf("device %s has no command topic", logicalID)
	}

	if !containsString(dev.Capabilities, capability) {
		return fmt.Errorf("device %s does not support capability: %s", logicalID, capability)
	}
	return nil
}

// All returns copies of all registered devices ordered by logical id.
func (r *DeviceRegistry) All() []*RegisteredDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*RegisteredDevice, 0, len(r.devices))
	for _, dev := range r.devices {
		result = append(result, dev.clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LogicalID < result[j].LogicalID })
	return result
}

// ByAgent returns the logical ids reported by one agent, sorted.
func (r *DeviceRegistry) ByAgent(agentID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, dev := range r.devices {
		if dev.AgentID == agentID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// RegisterFromPayload registers all devices from a registration payload
// and returns copies of what was stored.
func (r *DeviceRegistry) RegisterFromPayload(payload *RegistrationPayload) []*RegisteredDevice {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*RegisteredDevice, 0, len(payload.Devices))
	for _, dev := range payload.Devices {
		if dev.LogicalID == "" {
			continue
		}
		rd := &RegisteredDevice{
			LogicalID:       dev.LogicalID,
			AgentID:         payload.Agent.ID,
			Name:            dev.Name,
			Type:            dev.Type,
			Manufacturer:    dev.Manufacturer,
			Model:           dev.Model,
			SerialNumber:    dev.SerialNumber,
			FirmwareVersion: dev.FirmwareVersion,
			IPAddress:       payload.Agent.IPAddress,
			CommandTopic:    dev.Topics.Subscribe,
			EventTopic:      dev.Topics.Publish,
			Capabilities:    append([]string{}, dev.Capabilities...),
		}
		r.devices[dev.LogicalID] = rd
		out = append(out, rd.clone())
	}
	return out
}

// Clear removes all devices from the registry.
func (r *DeviceRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = make(map[string]*RegisteredDevice)
}
