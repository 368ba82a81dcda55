package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/vmihailenco/msgpack/v5"

	"turbo-slide/internal/config"
)

// SlideEvent is the payload published for every slide change
type SlideEvent struct {
	Deck      string    `json:"deck" msgpack:"deck"`
	Slide     int       `json:"slide" msgpack:"slide"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// MQTTEmitter mirrors broadcaster slide changes to an MQTT broker as
// retained messages on <prefix>/<deck>/current.
type MQTTEmitter struct {
	cfg    config.MQTTConfig
	Client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates a new MQTT emitter
func NewMQTTEmitter(cfg config.MQTTConfig) *MQTTEmitter {
	return &MQTTEmitter{
		cfg:       cfg,
		published: make(map[string]uint64),
	}
}

// clientOptions builds the paho options. A write timeout keeps Publish from
// blocking on a stalled broker link.
func (e *MQTTEmitter) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		log.Printf("MQTT connected to %s as %s", e.cfg.Broker, e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		log.Printf("Warning: MQTT connection lost (%v), reconnecting", err)
	}

	writeTimeout := e.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 2 * time.Second
	}
	opts.SetWriteTimeout(writeTimeout)

	return opts
}

// Connect establishes connection to the broker
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	e.Client = mqtt.NewClient(e.clientOptions())

	log.Printf("Connecting to MQTT broker %s", e.cfg.Broker)

	token := e.Client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// SlideChanged publishes the new slide. Broadcasts to other listeners queue
// behind it, so it only enqueues the message and waits for the ack elsewhere.
func (e *MQTTEmitter) SlideChanged(deck string, slide int) {
	if err := e.Publish(deck, slide); err != nil {
		log.Printf("Warning: failed to publish slide change: %v", err)
	}
}

// Publish sends a retained slide event for deck
func (e *MQTTEmitter) Publish(deck string, slide int) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := encodePayload(e.cfg.PayloadFormat, SlideEvent{
		Deck:      deck,
		Slide:     slide,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to encode slide event: %w", err)
	}

	topic := e.Topic(deck)
	token := e.Client.Publish(topic, e.cfg.QoS, true, payload)

	go func() {
		if !token.WaitTimeout(2 * time.Second) {
			e.countError()
			log.Printf("Warning: MQTT publish to %s timed out", topic)
			return
		}
		if err := token.Error(); err != nil {
			e.countError()
			log.Printf("Warning: MQTT publish to %s failed: %v", topic, err)
			return
		}
		e.mu.Lock()
		e.published[topic]++
		e.mu.Unlock()
	}()

	return nil
}

// Topic returns the topic slide changes of deck are published on
func (e *MQTTEmitter) Topic(deck string) string {
	return fmt.Sprintf("%s/%s/current", e.cfg.TopicPrefix, deck)
}

// Disconnect closes the MQTT connection
func (e *MQTTEmitter) Disconnect() {
	if e.Client != nil && e.Client.IsConnected() {
		e.Client.Disconnect(250)
		log.Printf("MQTT disconnected")
	}
	e.setConnected(false)
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}

	return Stats{
		Connected: e.connected,
		Published: published,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected && e.Client != nil
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// encodePayload serialises ev in the configured format (json by default)
func encodePayload(format string, ev SlideEvent) ([]byte, error) {
	switch format {
	case "", "json":
		return json.Marshal(ev)
	case "msgpack":
		return msgpack.Marshal(ev)
	default:
		return nil, fmt.Errorf("unsupported payload format %q", format)
	}
}
