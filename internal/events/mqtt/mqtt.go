// internal/events/mqtt/mqtt.go
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tamzrod/fingerprint-terminal/internal/events"
)

const (
	DefaultServer   = "tcp://localhost:1883"
	DefaultClientID = "fingerprint-terminal"
	DefaultTopic    = "terminal/%s/access"

	publishTimeout = 2 * time.Second
)

// Config is the broker connection config.
type Config struct {
	Server   string
	ClientID string
	Username string
	Password string
	Topic    string // may contain %s for the terminal id
}

// Publisher sends events as JSON to one topic.
type Publisher struct {
	client paho.Client
	topic  string
}

// New connects to the broker.
func New(cfg Config) (*Publisher, error) {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}

	opts := paho.NewClientOptions().AddBroker(cfg.Server).SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return newWithClient(client, cfg.Topic), nil
}

func newWithClient(client paho.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Publish sends e with QoS 0, not retained.
func (p *Publisher) Publish(e events.Event) error {
	if p.client == nil {
		return errors.New("mqtt client not connected")
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	token := p.client.Publish(topicFor(p.topic, e.Terminal), 0, false, b)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt publish: timeout after %s", publishTimeout)
	}
	return token.Error()
}

func (p *Publisher) Close() error {
	if p.client != nil {
		p.client.Disconnect(250)
	}
	return nil
}

// topicFor expands an optional %s formatter with the terminal id.
func topicFor(base, terminal string) string {
	if strings.Contains(base, "%s") {
		return fmt.Sprintf(base, terminal)
	}
	return base
}
