// Package emitter reports the recording indicator to the outside world.
//
// MQTTIndicator publishes the indicator state (retained) and capture
// lifecycle events to an MQTT broker. LogIndicator writes the same
// transitions to the structured log when no broker is configured.
package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	queueSize      = 16
)

// Lifecycle event names
const (
	EventCaptureStarted = "capture_started"
	EventCaptureEnded   = "capture_ended"
)

// Config configures an MQTTIndicator
type Config struct {
	// Broker is host:port, dialled over tcp
	Broker   string
	ClientID string
	// IndicatorTopic receives the retained indicator state
	IndicatorTopic string
	// EventsTopic receives capture lifecycle events
	EventsTopic string
	QoS         byte
}

// IndicatorState is the retained indicator payload
type IndicatorState struct {
	Active    bool   `json:"active"`
	SessionID string `json:"session_id"`
}

// Event is a capture lifecycle payload
type Event struct {
	Event     string    `json:"event"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats contains indicator statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Errors    uint64
	Dropped   uint64
}

// publisher is the part of mqtt.Client the indicator uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type message struct {
	topic    string
	retained bool
	payload  []byte
}

// MQTTIndicator is a camerarender.Indicator backed by an MQTT broker.
//
// SetActive is called on the frame-processing thread and never blocks:
// messages go through a bounded queue drained by Run. When the queue is
// full the message is dropped and counted.
type MQTTIndicator struct {
	cfg    Config
	client publisher
	conn   mqtt.Client
	queue  chan message

	mu        sync.RWMutex
	active    bool
	sessionID string
	connected bool
	published map[string]uint64

	errors  atomic.Uint64
	dropped atomic.Uint64
}

var (
	_ camerarender.Indicator       = (*MQTTIndicator)(nil)
	_ camerarender.SessionObserver = (*MQTTIndicator)(nil)
)

// NewMQTTIndicator creates an indicator. Call Connect before Run.
func NewMQTTIndicator(cfg Config) (*MQTTIndicator, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("emitter: mqtt broker is required")
	}
	if cfg.IndicatorTopic == "" || cfg.EventsTopic == "" {
		return nil, fmt.Errorf("emitter: indicator and events topics are required")
	}
	return newIndicator(cfg, nil), nil
}

func newIndicator(cfg Config, client publisher) *MQTTIndicator {
	return &MQTTIndicator{
		cfg:       cfg,
		client:    client,
		queue:     make(chan message, queueSize),
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection. The client reconnects on its
// own afterwards and re-sends the current indicator state on every connect.
func (e *MQTTIndicator) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetWill(e.cfg.IndicatorTopic, string(mustJSON(IndicatorState{})), e.cfg.QoS, true)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("emitter: mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID,
		)
		e.enqueueState()
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("emitter: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker,
		)
	}

	client := mqtt.NewClient(opts)
	e.conn = client
	e.client = client

	slog.Info("emitter: connecting to mqtt broker", "broker", e.cfg.Broker)

	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectTimeout):
		return fmt.Errorf("emitter: mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: mqtt connection failed: %w", err)
	}
	return nil
}

// SessionChanged records the session id carried by the next payloads.
func (e *MQTTIndicator) SessionChanged(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sessionID != "" {
		e.sessionID = sessionID
	}
}

// SetActive publishes the new indicator state and the matching event.
func (e *MQTTIndicator) SetActive(active bool) {
	e.mu.Lock()
	changed := e.active != active
	e.active = active
	session := e.sessionID
	if !active {
		e.sessionID = ""
	}
	e.mu.Unlock()

	e.enqueue(e.cfg.IndicatorTopic, true, IndicatorState{Active: active, SessionID: session})

	if !changed {
		return
	}
	event := EventCaptureEnded
	if active {
		event = EventCaptureStarted
	}
	e.enqueue(e.cfg.EventsTopic, false, Event{
		Event:     event,
		SessionID: session,
		Timestamp: time.Now(),
	})
}

func (e *MQTTIndicator) enqueueState() {
	e.mu.RLock()
	state := IndicatorState{Active: e.active, SessionID: e.sessionID}
	e.mu.RUnlock()
	e.enqueue(e.cfg.IndicatorTopic, true, state)
}

func (e *MQTTIndicator) enqueue(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		e.errors.Add(1)
		slog.Error("emitter: marshal payload", "topic", topic, "error", err)
		return
	}

	select {
	case e.queue <- message{topic: topic, retained: retained, payload: payload}:
	default:
		e.dropped.Add(1)
		slog.Warn("emitter: queue full, message dropped", "topic", topic)
	}
}

// Run publishes queued messages until ctx is cancelled.
func (e *MQTTIndicator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-e.queue:
			if err := e.publish(msg); err != nil {
				e.errors.Add(1)
				slog.Warn("emitter: publish failed",
					"topic", msg.topic,
					"error", err,
				)
			}
		}
	}
}

func (e *MQTTIndicator) publish(msg message) error {
	if e.client == nil {
		return fmt.Errorf("emitter: mqtt not connected")
	}

	token := e.client.Publish(msg.topic, e.cfg.QoS, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("emitter: publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("emitter: %w", err)
	}

	e.mu.Lock()
	e.published[msg.topic]++
	e.mu.Unlock()

	slog.Debug("emitter: message published",
		"topic", msg.topic,
		"retained", msg.retained,
		"size", len(msg.payload),
	)
	return nil
}

// Disconnect clears the retained indicator and closes the connection.
func (e *MQTTIndicator) Disconnect() {
	if e.conn != nil && e.conn.IsConnected() {
		_ = e.publish(message{
			topic:    e.cfg.IndicatorTopic,
			retained: true,
			payload:  mustJSON(IndicatorState{}),
		})
		e.conn.Disconnect(250)
		slog.Info("emitter: mqtt disconnected")
	}

	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}

// Stats returns indicator statistics.
func (e *MQTTIndicator) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors.Load(),
		Dropped:   e.dropped.Load(),
	}
}

func mustJSON(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return payload
}
