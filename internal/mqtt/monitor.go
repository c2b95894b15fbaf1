package mqtt

import (
	"context"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/AaronLay10/SentientStudio/internal/events"
	"github.com/AaronLay10/SentientStudio/internal/testrun"
)

const defaultHeartbeatSec = 10

// DeviceSink persists device records. *store.Store satisfies it.
type DeviceSink interface {
	GetDevice(ctx context.Context, id string) (*testrun.Device, error)
	PutDevice(ctx context.Context, d *testrun.Device) error
}

// AgentState tracks a registered test agent's health.
type AgentState struct {
	AgentID      string
	LastSeen     time.Time
	HeartbeatSec int
	Devices      []string // logical IDs
	Connected    bool
}

// Monitor turns agent registrations into registry entries and stored
// devices, and marks devices disconnected when their agent stops sending
// heartbeats.
type Monitor struct {
	mu        sync.RWMutex
	agents    map[string]*AgentState
	specs     map[string]DeviceSpec
	tolerance float64 // multiplier for heartbeat interval (e.g., 2.0 = 2x heartbeat)
	registry  *DeviceRegistry
	sink      DeviceSink
	log       logrus.FieldLogger
	now       func() time.Time
	emit      func(level, name, msg string, fields map[string]interface{})

	// OnRegistered runs after a valid registration is stored.
	OnRegistered func(devs []*RegisteredDevice)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor creates a new agent monitor. tolerance is the multiplier for
// the heartbeat interval before an agent counts as gone. sink may be nil.
func NewMonitor(registry *DeviceRegistry, sink DeviceSink, specs map[string]DeviceSpec, tolerance float64, log logrus.FieldLogger) *Monitor {
	if tolerance <= 1.0 {
		tolerance = 2.0 // default: miss 1 heartbeat
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Monitor{
		agents:    make(map[string]*AgentState),
		specs:     specs,
		tolerance: tolerance,
		registry:  registry,
		sink:      sink,
		log:       log.WithField("component", "device-monitor"),
		now:       time.Now,
		emit: func(level, name, msg string, fields map[string]interface{}) {
			events.Emit(level, name, msg, fields)
		},
		stopCh: make(chan struct{}),
	}
}

// SetEmitter replaces the event sink. nil silences the monitor.
func (m *Monitor) SetEmitter(fn func(level, name, msg string, fields map[string]interface{})) {
	if fn == nil {
		fn = func(string, string, string, map[string]interface{}) {}
	}
	m.emit = fn
}

// Handler returns the paho handler for the register topic.
func (m *Monitor) Handler() paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		m.HandleMessage(msg.Payload())
	}
}

// HandleMessage parses and applies one registration message.
func (m *Monitor) HandleMessage(data []byte) *ValidationResult {
	payload, err := ParseRegistration(data)
	if err != nil {
		m.emit("error", "device.error", "invalid registration", map[string]interface{}{"error": err.Error()})
		return &ValidationResult{Errors: []string{err.Error()}}
	}
	return m.HandleRegistration(context.Background(), payload)
}

// HandleRegistration validates a payload, records its devices and emits
// device.registered for new devices and device.connected for returning
// ones.
func (m *Monitor) HandleRegistration(ctx context.Context, payload *RegistrationPayload) *ValidationResult {
	result := ValidateRegistration(payload, m.specs)
	agentID := payload.Agent.ID
	if !result.Valid {
		m.emit("error", "device.error", "registration validation failed", map[string]interface{}{
			"agent_id": agentID,
			"errors":   result.Errors,
		})
		return result
	}

	now := m.now()
	devs := m.registry.RegisterFromPayload(payload)
	ids := make([]string, 0, len(devs))
	for _, d := range devs {
		ids = append(ids, d.LogicalID)
	}

	hb := payload.Agent.HeartbeatSec
	if hb <= 0 {
		hb = defaultHeartbeatSec
	}
	m.mu.Lock()
	existing := m.agents[agentID]
	reconnect := existing != nil && !existing.Connected
	m.agents[agentID] = &AgentState{
		AgentID:      agentID,
		LastSeen:     now,
		HeartbeatSec: hb,
		Devices:      ids,
		Connected:    true,
	}
	m.mu.Unlock()

	for _, d := range devs {
		isNew := m.persist(ctx, d, now)
		name := "device.connected"
		if isNew {
			name = "device.registered"
		}
		m.emit("info", name, d.Name, map[string]interface{}{
			"agent_id":   agentID,
			"logical_id": d.LogicalID,
			"type":       d.Type,
			"reconnect":  reconnect,
		})
	}

	if m.OnRegistered != nil {
		m.OnRegistered(devs)
	}
	return result
}

// persist stores d, keeping the original creation time. It reports whether
// the device was unknown before.
func (m *Monitor) persist(ctx context.Context, d *RegisteredDevice, now time.Time) bool {
	if m.sink == nil {
		return true
	}
	rec := d.ToDevice(now)
	isNew := true
	if prev, err := m.sink.GetDevice(ctx, d.LogicalID); err == nil {
		rec.CreatedAt = prev.CreatedAt
		isNew = false
	}
	if err := m.sink.PutDevice(ctx, rec); err != nil {
		m.log.WithError(err).WithField("logical_id", d.LogicalID).Warn("store device failed")
	}
	return isNew
}

// Heartbeat refreshes an agent's last-seen time and brings it back online
// if it had timed out. Unknown agents are ignored.
func (m *Monitor) Heartbeat(agentID string) {
	now := m.now()
	m.mu.Lock()
	state, ok := m.agents[agentID]
	if !ok {
		m.mu.Unlock()
		return
	}
	state.LastSeen = now
	revived := !state.Connected
	state.Connected = true
	ids := append([]string{}, state.Devices...)
	m.mu.Unlock()

	if revived {
		m.setConnected(ids, true, now)
		for _, id := range ids {
			m.emit("info", "device.connected", "heartbeat resumed", map[string]interface{}{
				"agent_id":   agentID,
				"logical_id": id,
				"reconnect":  true,
			})
		}
	}
}

// Start begins the background health check loop.
func (m *Monitor) Start(checkInterval time.Duration) {
	m.wg.Add(1)
	go m.healthCheckLoop(checkInterval)
}

// Stop stops the background health check loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) healthCheckLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkHealth()
		}
	}
}

type lapsed struct {
	agentID  string
	lastSeen time.Time
	timeout  time.Duration
	devices  []string
}

func (m *Monitor) checkHealth() {
	now := m.now()

	var gone []lapsed
	m.mu.Lock()
	for id, state := range m.agents {
		if !state.Connected {
			continue
		}
		timeout := time.Duration(float64(state.HeartbeatSec)*m.tolerance) * time.Second
		if now.Sub(state.LastSeen) > timeout {
			state.Connected = false
			gone = append(gone, lapsed{id, state.LastSeen, timeout, append([]string{}, state.Devices...)})
		}
	}
	m.mu.Unlock()

	for _, g := range gone {
		m.setConnected(g.devices, false, now)
		for _, logicalID := range g.devices {
			m.emit("warn", "device.disconnected", "heartbeat timeout", map[string]interface{}{
				"agent_id":    g.agentID,
				"logical_id":  logicalID,
				"last_seen":   g.lastSeen.Format(time.RFC3339),
				"timeout_sec": g.timeout.Seconds(),
			})
		}
	}
}

func (m *Monitor) setConnected(ids []string, connected bool, now time.Time) {
	if m.sink == nil {
		return
	}
	ctx := context.Background()
	for _, id := range ids {
		d, err := m.sink.GetDevice(ctx, id)
		if err != nil {
			continue
		}
		if connected {
			d.Connect(now)
		} else {
			d.Disconnect()
		}
		if err := m.sink.PutDevice(ctx, d); err != nil {
			m.log.WithError(err).WithField("logical_id", id).Warn("update device failed")
		}
	}
}

// GetAgentState returns a copy of an agent's state, or nil.
func (m *Monitor) GetAgentState(agentID string) *AgentState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.agents[agentID]; ok {
		cpy := *state
		cpy.Devices = append([]string{}, state.Devices...)
		return &cpy
	}
	return nil
}

// ConnectedAgents returns the ids of agents currently considered online.
func (m *Monitor) ConnectedAgents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, state := range m.agents {
		if state.Connected {
			ids = append(ids, id)
		}
	}
	return ids
}
