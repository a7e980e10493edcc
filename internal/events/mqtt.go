package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

// MQTTConfig holds broker settings for MQTTPublisher.
type MQTTConfig struct {
	Broker      string // host:port
	TopicPrefix string
	ClientID    string // generated when empty
	QoS         byte
}

// Topic returns the topic rest events are published on.
func (c MQTTConfig) Topic() string {
	return strings.TrimSuffix(c.TopicPrefix, "/") + "/rest"
}

// MQTTPublisher publishes events as JSON to an MQTT broker.
type MQTTPublisher struct {
	cfg    MQTTConfig
	client mqtt.Client
	log    logrus.FieldLogger

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64
}

// NewMQTTPublisher creates a publisher; call Connect before publishing.
func NewMQTTPublisher(cfg MQTTConfig, log logrus.FieldLogger) *MQTTPublisher {
	if cfg.ClientID == "" {
		cfg.ClientID = "palmrest-" + uuid.New().String()
	}
	return &MQTTPublisher{
		cfg: cfg,
		log: log.WithField("component", "mqtt"),
	}
}

// Connect establishes the broker connection. Later drops are retried in the background.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		p.log.WithField("broker", p.cfg.Broker).Info("mqtt connected")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		p.log.WithError(err).Warn("mqtt connection lost, reconnecting")
	}

	p.client = mqtt.NewClient(opts)

	token := p.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectTimeout):
		return fmt.Errorf("mqtt connect %s: timeout", p.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", p.cfg.Broker, err)
	}
	return nil
}

// Publish sends ev to the rest topic.
func (p *MQTTPublisher) Publish(ctx context.Context, ev Event) error {
	if p.client == nil {
		return fmt.Errorf("mqtt publish: not connected")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	token := p.client.Publish(p.cfg.Topic(), p.cfg.QoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		p.countError()
		return ctx.Err()
	case <-time.After(publishTimeout):
		p.countError()
		return fmt.Errorf("mqtt publish %s: timeout", p.cfg.Topic())
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("mqtt publish %s: %w", p.cfg.Topic(), err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()
	return nil
}

// Stats returns published and failed counts, and whether the broker is connected.
func (p *MQTTPublisher) Stats() (published, failed uint64, connected bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.published, p.errors, p.connected
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(250)
	}
	p.setConnected(false)
	return nil
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *MQTTPublisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}
