// SPDX-License-Identifier: GPL-3.0-only

// Package mqtt mirrors brightness updates to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/shini4i/tuya-brightness-bridge/internal/characteristic"
)

const (
	// publishTimeout bounds how long a single publish may block.
	publishTimeout = 5 * time.Second

	// connectTimeout bounds the initial broker connection.
	connectTimeout = 10 * time.Second
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt operation timed out")

// Options configures the broker connection.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// ClientOptions builds paho client options with automatic reconnects.
func (o Options) ClientOptions() *paho.ClientOptions {
	return paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		}).
		SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
			log.Info().Msg("MQTT reconnecting")
		})
}

// Connect opens a connection to the broker.
func Connect(opts Options) (paho.Client, error) {
	client := paho.NewClient(opts.ClientOptions())
	t := client.Connect()
	if !t.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Broker, ErrTimeout)
	}
	if err := t.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Broker, err)
	}
	log.Info().Str("broker", opts.Broker).Msg("Connected to MQTT broker")
	return client, nil
}

// Client is the subset of paho.Client used for publishing.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// Source is a device whose brightness updates can be mirrored.
type Source interface {
	ID() string
	Subscribe(id string, fn func(int))
}

type brightnessState struct {
	Brightness int `json:"brightness"`
}

// Publisher writes retained brightness states to per-device topics.
type Publisher struct {
	client Client
	prefix string
}

// NewPublisher creates a publisher rooted at prefix.
func NewPublisher(client Client, prefix string) *Publisher {
	return &Publisher{
		client: client,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Topic returns the state topic for a device.
func (p *Publisher) Topic(deviceID string) string {
	if p.prefix == "" {
		return deviceID + "/brightness"
	}
	return p.prefix + "/" + deviceID + "/brightness"
}

// Publish sends the brightness of a device as a retained message.
func (p *Publisher) Publish(deviceID string, brightness int) error {
	payload, err := json.Marshal(brightnessState{Brightness: brightness})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	topic := p.Topic(deviceID)
	t := p.client.Publish(topic, 0, true, payload)
	if !t.WaitTimeout(publishTimeout) {
		return fmt.Errorf("[%s] publish error: %w", topic, ErrTimeout)
	}
	if err := t.Error(); err != nil {
		return fmt.Errorf("[%s] publish error: %w", topic, err)
	}
	return nil
}

// Attach mirrors every spontaneous brightness update of src.
func (p *Publisher) Attach(src Source) {
	id := src.ID()
	src.Subscribe(characteristic.BrightnessTitle, func(value int) {
		if err := p.Publish(id, value); err != nil {
			log.Warn().Err(err).Str("device", id).Msg("Failed to publish brightness")
		}
	})
}
