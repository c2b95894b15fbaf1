package mqtt

import (
	"encoding/json"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/SentientStudio/internal/events"
)

// MessageFunc receives a decoded message from a device's event topic.
type MessageFunc func(dev *RegisteredDevice, payload interface{})

// DeviceSubscriber manages subscriptions to device event topics.
// It ensures idempotent subscription handling across reconnects.
type DeviceSubscriber struct {
	mu         sync.RWMutex
	conn       Conn
	registry   *DeviceRegistry
	onMessage  MessageFunc
	subscribed map[string]bool // topic -> subscribed
}

// NewDeviceSubscriber creates a new device subscriber. onMessage may be nil.
func NewDeviceSubscriber(conn Conn, registry *DeviceRegistry, onMessage MessageFunc) *DeviceSubscriber {
	return &DeviceSubscriber{
		conn:       conn,
		registry:   registry,
		onMessage:  onMessage,
		subscribed: make(map[string]bool),
	}
}

// SubscribeDevice subscribes to a device's event topic if not already subscribed.
// This is idempotent - calling multiple times for the same device is safe.
func (s *DeviceSubscriber) SubscribeDevice(dev *RegisteredDevice) error {
	if dev.EventTopic == "" {
		return nil
	}

	s.mu.Lock()
	if s.subscribed[dev.EventTopic] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.conn.Subscribe(dev.EventTopic, s.createHandler(dev.clone())); err != nil {
		return err
	}

	s.mu.Lock()
	s.subscribed[dev.EventTopic] = true
	s.mu.Unlock()

	return nil
}

// SubscribeAll subscribes to all devices in the registry.
// Useful for initial subscription after connection.
func (s *DeviceSubscriber) SubscribeAll() {
	for _, dev := range s.registry.All() {
		if err := s.SubscribeDevice(dev); err != nil {
			events.Emit("error", "device.error", "failed to subscribe to device events", map[string]interface{}{
				"logical_id": dev.LogicalID,
				"topic":      dev.EventTopic,
				"error":      err.Error(),
			})
		}
	}
}

// createHandler emits device.message for every payload and passes it on.
func (s *DeviceSubscriber) createHandler(dev *RegisteredDevice) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		var payload interface{}
		if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
			payload = string(msg.Payload())
		}

		events.Emit("debug", "device.message", "", map[string]interface{}{
			"agent_id":   dev.AgentID,
			"logical_id": dev.LogicalID,
			"topic":      msg.Topic(),
			"payload":    payload,
		})
		if s.onMessage != nil {
			s.onMessage(dev, payload)
		}
	}
}

// IsSubscribed returns true if the topic is already subscribed.
func (s *DeviceSubscriber) IsSubscribed(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscribed[topic]
}

// SubscribedTopics returns a list of all subscribed topics.
func (s *DeviceSubscriber) SubscribedTopics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	topics := make([]string, 0, len(s.subscribed))
	for topic := range s.subscribed {
		topics = append(topics, topic)
	}
	return topics
}

// ClearSubscriptions clears the subscription tracking.
// Call this on disconnect to allow re-subscription on reconnect.
func (s *DeviceSubscriber) ClearSubscriptions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribed = make(map[string]bool)
}
