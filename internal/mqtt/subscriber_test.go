package mqtt

import (
	"errors"
	"sync"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SentientStudio/internal/events"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

// MockConn is an in-memory broker connection.
type MockConn struct {
	mu            sync.Mutex
	subscriptions map[string]paho.MessageHandler
	published     []published
	connected     bool
	subscribeErr  error
	publishErr    error
}

func NewMockConn() *MockConn {
	return &MockConn{
		subscriptions: make(map[string]paho.MessageHandler),
		connected:     true,
	}
}

func (m *MockConn) Subscribe(topic string, handler paho.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscriptions[topic] = handler
	return nil
}

func (m *MockConn) Publish(topic string, payload []byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic, append([]byte(nil), payload...), retained})
	return nil
}

func (m *MockConn) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockConn) Published() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.published...)
}

func (m *MockConn) GetSubscriptions() map[string]paho.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make(map[string]paho.MessageHandler)
	for k, v := range m.subscriptions {
		result[k] = v
	}
	return result
}

func (m *MockConn) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.subscriptions[topic]
	m.mu.Unlock()
	if ok {
		handler(nil, &mockMessage{topic: topic, payload: payload})
	}
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

func headset(id, topic string) *RegisteredDevice {
	return &RegisteredDevice{
		LogicalID:    id,
		AgentID:      "agent-1",
		Type:         "vr_headset",
		EventTopic:   topic,
		Capabilities: []string{"hand_tracking"},
	}
}

func TestDeviceSubscriber_SubscribeDevice(t *testing.T) {
	mock := NewMockConn()
	subscriber := NewDeviceSubscriber(mock, NewDeviceRegistry(), nil)

	err := subscriber.SubscribeDevice(headset("quest_1", "studio/agents/agent-1/quest_1/events"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subs := mock.GetSubscriptions()
	if _, ok := subs["studio/agents/agent-1/quest_1/events"]; !ok {
		t.Error("expected subscription to device event topic")
	}
	if !subscriber.IsSubscribed("studio/agents/agent-1/quest_1/events") {
		t.Error("expected subscriber to track subscription")
	}
}

func TestDeviceSubscriber_SubscribeDevice_Idempotent(t *testing.T) {
	mock := NewMockConn()
	subscriber := NewDeviceSubscriber(mock, NewDeviceRegistry(), nil)

	dev := headset("quest_1", "studio/agents/agent-1/quest_1/events")
	_ = subscriber.SubscribeDevice(dev)
	_ = subscriber.SubscribeDevice(dev)

	if topics := subscriber.SubscribedTopics(); len(topics) != 1 {
		t.Errorf("expected 1 subscribed topic, got %d", len(topics))
	}
}

func TestDeviceSubscriber_NoEventTopic(t *testing.T) {
	mock := NewMockConn()
	subscriber := NewDeviceSubscriber(mock, NewDeviceRegistry(), nil)

	if err := subscriber.SubscribeDevice(headset("sim", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.GetSubscriptions()) != 0 {
		t.Error("expected no subscription for a device without event topic")
	}
}

func TestDeviceSubscriber_SubscribeErrorNotTracked(t *testing.T) {
	mock := NewMockConn()
	mock.subscribeErr = errors.New("broker gone")
	subscriber := NewDeviceSubscriber(mock, NewDeviceRegistry(), nil)

	if err := subscriber.SubscribeDevice(headset("quest_1", "t/events")); err == nil {
		t.Fatal("expected error")
	}
	if subscriber.IsSubscribed("t/events") {
		t.Error("failed subscription must not be tracked")
	}
}

func TestDeviceSubscriber_SubscribeAll(t *testing.T) {
	mock := NewMockConn()
	registry := NewDeviceRegistry()
	registry.Register(headset("quest_1", "t/quest_1/events"))
	registry.Register(headset("quest_2", "t/quest_2/events"))

	subscriber := NewDeviceSubscriber(mock, registry, nil)
	subscriber.SubscribeAll()

	if got := len(subscriber.SubscribedTopics()); got != 2 {
		t.Errorf("expected 2 subscriptions, got %d", got)
	}
}

func TestDeviceSubscriber_ClearSubscriptions(t *testing.T) {
	mock := NewMockConn()
	subscriber := NewDeviceSubscriber(mock, NewDeviceRegistry(), nil)
	_ = subscriber.SubscribeDevice(headset("quest_1", "t/events"))

	subscriber.ClearSubscriptions()
	if subscriber.IsSubscribed("t/events") {
		t.Error("expected subscriptions cleared")
	}
	if err := subscriber.SubscribeDevice(headset("quest_1", "t/events")); err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}
	if !subscriber.IsSubscribed("t/events") {
		t.Error("expected resubscription after clear")
	}
}

func TestDeviceSubscriber_HandlerEmitsAndForwards(t *testing.T) {
	events.Clear()
	mock := NewMockConn()

	var gotDev *RegisteredDevice
	var gotPayload interface{}
	subscriber := NewDeviceSubscriber(mock, NewDeviceRegistry(), func(dev *RegisteredDevice, payload interface{}) {
		gotDev = dev
		gotPayload = payload
	})
	_ = subscriber.SubscribeDevice(headset("quest_1", "t/events"))

	mock.SimulateMessage("t/events", []byte(`{"kind":"heartbeat","battery":0.8}`))

	if gotDev == nil || gotDev.LogicalID != "quest_1" {
		t.Fatalf("callback not invoked with device, got %+v", gotDev)
	}
	m, ok := gotPayload.(map[string]interface{})
	if !ok || m["kind"] != "heartbeat" {
		t.Errorf("unexpected payload %v", gotPayload)
	}

	found := false
	for _, e := range events.Snapshot() {
		if e.Name == "device.message" && e.Fields["logical_id"] == "quest_1" {
			found = true
		}
	}
	if !found {
		t.Error("expected device.message event")
	}

	mock.SimulateMessage("t/events", []byte("not json"))
	if gotPayload != "not json" {
		t.Errorf("raw payload should pass through as string, got %v", gotPayload)
	}
}
