package emitter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-json-experiment/json"
	"go.uber.org/zap"

	"github.com/BYTE-6D65/blinkbreak/pkg/event"
)

// MQTTConfig describes the broker connection.
type MQTTConfig struct {
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	TopicPrefix string        `yaml:"topic_prefix"`
	QoS         byte          `yaml:"qos"`
	Retain      bool          `yaml:"retain"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DefaultMQTTConfig returns a local broker configuration.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:      "tcp://localhost:1883",
		ClientID:    "blinkbreak",
		TopicPrefix: "blinkbreak",
		Timeout:     2 * time.Second,
	}
}

// Publisher is the part of mqtt.Client the emitter uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTEmitter publishes event envelopes as JSON. The bus topic is mapped
// onto the MQTT topic tree: "bci.control.left" becomes
// "<prefix>/bci/control/left".
type MQTTEmitter struct {
	cfg    MQTTConfig
	client Publisher
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// DialMQTT connects to the broker.
func DialMQTT(cfg MQTTConfig, logger *zap.Logger) (*MQTTEmitter, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.Timeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timed out after %s", cfg.Broker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return NewMQTTEmitter(cfg, client, logger), nil
}

// NewMQTTEmitter wraps an already connected client.
func NewMQTTEmitter(cfg MQTTConfig, client Publisher, logger *zap.Logger) *MQTTEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &MQTTEmitter{cfg: cfg, client: client, logger: logger}
}

// Filter selects the events worth publishing off-box. Per-frame records stay
// local.
func (m *MQTTEmitter) Filter() event.Filter {
	return event.Filter{Types: []string{"bci.control.*", event.TypeObservation, "bci.trial.*", event.TypeSessionSummary}}
}

func (m *MQTTEmitter) ID() string   { return "mqtt:" + m.cfg.Broker }
func (m *MQTTEmitter) Type() string { return "mqtt" }

// Topic maps a bus event type onto an MQTT topic.
func (m *MQTTEmitter) Topic(eventType string) string {
	t := strings.ReplaceAll(eventType, ".", "/")
	if m.cfg.TopicPrefix == "" {
		return t
	}
	return m.cfg.TopicPrefix + "/" + t
}

// Emit publishes evt and waits for the broker acknowledgement up to the
// configured timeout.
func (m *MQTTEmitter) Emit(ctx context.Context, evt event.Event) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	token := m.client.Publish(m.Topic(evt.Type), m.cfg.QoS, m.cfg.Retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.cfg.Timeout):
		return fmt.Errorf("mqtt publish %s: timed out", evt.Type)
	}
	if err := token.Error(); err != nil {
		m.logger.Debug("[mqtt] publish failed", zap.String("type", evt.Type), zap.Error(err))
		return fmt.Errorf("mqtt publish %s: %w", evt.Type, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTEmitter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.client.Disconnect(250)
	return nil
}
