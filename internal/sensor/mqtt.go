// Package sensor adapts the MQTT sensor bus onto the streaming
// authenticator's narrow OnSample/OnPresence contract. The adapter owns
// no matching logic; it decodes payloads, drops malformed ones, and
// forwards the rest. Reconnect mechanics are delegated to the paho
// client options.
package sensor

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/pulse-dna/PulseDNA/internal/model"
	"github.com/pulse-dna/PulseDNA/internal/stream"
	"github.com/pulse-dna/PulseDNA/pkg/logger"
)

// Config holds the MQTT connection and topic settings.
type Config struct {
	Broker        string
	ClientID      string
	Username      string
	Password      string
	SampleTopic   string
	PresenceTopic string
	QoS           byte
}

// DefaultConfig returns sensible local-broker defaults.
func DefaultConfig() Config {
	return Config{
		Broker:        "tcp://localhost:1883",
		ClientID:      "pulsedna-" + uuid.NewString()[:8],
		SampleTopic:   "pulsedna/sensor/heartrate",
		PresenceTopic: "pulsedna/sensor/presence",
		QoS:           1,
	}
}

// samplePayload is the wire shape of one heart-rate message.
type samplePayload struct {
	Timestamp     time.Time `json:"timestamp"`
	HeartRate     float64   `json:"heart_rate"`
	Confidence    float64   `json:"confidence"`
	BreathingRate float64   `json:"breathing_rate"`
	Distance      float64   `json:"distance"`
}

// presencePayload is the wire shape of one presence transition.
type presencePayload struct {
	Present bool `json:"present"`
}

// Consumer subscribes to the sensor topics and feeds the streaming
// authenticator.
type Consumer struct {
	cfg    Config
	client mqtt.Client
	auth   *stream.Authenticator
	log    *logger.Logger
}

// NewConsumer creates a consumer bound to one streaming session.
func NewConsumer(cfg Config, auth *stream.Authenticator) *Consumer {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	return &Consumer{
		cfg:    cfg,
		client: mqtt.NewClient(opts),
		auth:   auth,
		log:    logger.GetLogger(),
	}
}

// Start connects to the broker and subscribes to both sensor topics.
func (c *Consumer) Start() error {
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to MQTT broker %s: %w", c.cfg.Broker, token.Error())
	}

	if token := c.client.Subscribe(c.cfg.SampleTopic, c.cfg.QoS, c.handleSample); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribing to %s: %w", c.cfg.SampleTopic, token.Error())
	}
	if token := c.client.Subscribe(c.cfg.PresenceTopic, c.cfg.QoS, c.handlePresence); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribing to %s: %w", c.cfg.PresenceTopic, token.Error())
	}

	c.log.Infof("Sensor consumer connected to %s", c.cfg.Broker)
	return nil
}

// Stop unsubscribes and disconnects. Safe to call once after Start.
func (c *Consumer) Stop() {
	if c.client.IsConnected() {
		if token := c.client.Unsubscribe(c.cfg.SampleTopic, c.cfg.PresenceTopic); token.Wait() && token.Error() != nil {
			c.log.Warnf("Unsubscribe failed: %v", token.Error())
		}
		c.client.Disconnect(250)
	}
	c.log.Infof("Sensor consumer stopped")
}

// handleSample decodes one heart-rate message. Malformed payloads are
// dropped with a warning; they never stop the pipeline.
func (c *Consumer) handleSample(_ mqtt.Client, msg mqtt.Message) {
	var payload samplePayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		c.log.Warnf("Dropping malformed sample payload on %s: %v", msg.Topic(), err)
		return
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}

	c.auth.OnSample(model.HeartRateSample{
		Timestamp:     payload.Timestamp,
		HeartRate:     payload.HeartRate,
		Confidence:    payload.Confidence,
		BreathingRate: payload.BreathingRate,
		Distance:      payload.Distance,
	})
}

// handlePresence decodes one presence transition.
func (c *Consumer) handlePresence(_ mqtt.Client, msg mqtt.Message) {
	var payload presencePayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		c.log.Warnf("Dropping malformed presence payload on %s: %v", msg.Topic(), err)
		return
	}
	c.auth.OnPresence(payload.Present)
}
