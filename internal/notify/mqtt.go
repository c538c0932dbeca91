// Package notify publishes channels found by the scanner to an MQTT broker.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/roman-kulish/radio-receiver/internal/scanner"
)

const (
	DefaultTopic = "radio-receiver"

	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	disconnectWait = 250 // ms
)

// ErrNotConnected is returned when publishing before Connect succeeded
var ErrNotConnected = errors.New("mqtt not connected")

// Config holds the broker settings
type Config struct {
	Broker   string `yaml:"broker" json:"broker"` // host:port
	ClientID string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Topic    string `yaml:"topic,omitempty" json:"topic,omitempty"`
	QoS      byte   `yaml:"qos,omitempty" json:"qos,omitempty"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Broker) == "" {
		return errors.New("mqtt broker address is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2: %d given", c.QoS)
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	c.Topic = strings.TrimSuffix(c.Topic, "/")
	if c.ClientID == "" {
		c.ClientID = "radio-receiver-" + uuid.NewString()
	}
	return nil
}

// ChannelMessage is the payload published for an active channel
type ChannelMessage struct {
	Frequency float64   `json:"frequency"` // MHz
	Label     string    `json:"label"`
	Quality   float64   `json:"quality"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChannelMessage builds the message for ch
func NewChannelMessage(ch scanner.Channel) ChannelMessage {
	fract, suffix := humanize.ComputeSI(ch.Frequency * 1e6)

	return ChannelMessage{
		Frequency: ch.Frequency,
		Label:     fmt.Sprintf("%0.4f %sHz", fract, suffix),
		Quality:   ch.Quality,
		Timestamp: ch.Timestamp.UTC(),
	}
}

// WithLogger sets the logger for the publisher
func WithLogger(logger *slog.Logger) func(p *Publisher) {
	return func(p *Publisher) {
		p.logger = logger.With(slog.String("component", "notify"))
	}
}

// WithClient replaces the paho client built from the configuration
func WithClient(client mqtt.Client) func(p *Publisher) {
	return func(p *Publisher) {
		p.client = client
	}
}

// Publisher sends active channels to <topic>/active. It implements
// scanner.ChannelSink.
type Publisher struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	connected bool
	published uint64
	errors    uint64

	logger *slog.Logger
}

var _ scanner.ChannelSink = (*Publisher)(nil)

// NewPublisher creates a publisher for cfg. Call Connect before publishing.
func NewPublisher(cfg Config, options ...func(p *Publisher)) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := Publisher{
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	if p.client == nil {
		p.client = mqtt.NewClient(p.clientOptions())
	}

	return &p, nil
}

func (p *Publisher) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}

	opts.OnConnect = func(mqtt.Client) {
		p.setConnected(true)
		p.logger.Info("mqtt connection established",
			slog.String("broker", p.cfg.Broker),
			slog.String("client_id", p.cfg.ClientID),
		)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.setConnected(false)
		p.logger.Warn("mqtt connection lost, will auto-reconnect",
			slog.String("broker", p.cfg.Broker),
			slog.String("error", err.Error()),
		)
	}

	return opts
}

// Connect connects to the broker
func (p *Publisher) Connect(ctx context.Context) error {
	p.logger.Info("connecting to mqtt broker", slog.String("broker", p.cfg.Broker))

	token := p.client.Connect()
	if err := wait(ctx, token, connectTimeout); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	p.setConnected(true)
	return nil
}

// Topic returns the topic active channels are published to
func (p *Publisher) Topic() string {
	return p.cfg.Topic + "/active"
}

// ActiveChannel publishes ch
func (p *Publisher) ActiveChannel(ctx context.Context, ch scanner.Channel) error {
	if !p.isConnected() {
		p.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(NewChannelMessage(ch))
	if err != nil {
		p.countError()
		return fmt.Errorf("marshaling channel: %w", err)
	}

	token := p.client.Publish(p.Topic(), p.cfg.QoS, false, payload)
	if err := wait(ctx, token, publishTimeout); err != nil {
		p.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	p.mu.Lock()
	p.published++
	p.mu.Unlock()

	p.logger.Debug("active channel published",
		slog.String("topic", p.Topic()),
		slog.Float64("frequency", ch.Frequency),
		slog.Int("size", len(payload)),
	)

	return nil
}

// Close disconnects from the broker
func (p *Publisher) Close() error {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(disconnectWait)
		p.logger.Info("mqtt disconnected")
	}
	p.setConnected(false)
	return nil
}

// Stats returns the number of published messages and failures
func (p *Publisher) Stats() (published, failed uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.published, p.errors
}

func (p *Publisher) setConnected(connected bool) {
	p.mu.Lock()
	p.connected = connected
	p.mu.Unlock()
}

func (p *Publisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *Publisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("timeout")
	}
}
