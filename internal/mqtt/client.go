// Package mqtt publishes vehicle state and low-charge notifications to an
// MQTT broker and receives vehicle commands from it.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kstaniek/go-ovms-va/internal/logging"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
	"github.com/kstaniek/go-ovms-va/internal/notify"
	"github.com/kstaniek/go-ovms-va/internal/vehicle"
)

const (
	DefaultUpdateInterval = 30 * time.Second
	DefaultClientID       = "ovms-va"
	DefaultTopic          = "ovms/va/state"

	publishTimeout = 2 * time.Second
	disconnectMS   = 250
)

// Config holds broker and topic settings. Empty NotifyTopic defaults to
// Topic+"/notify"; empty CommandTopic disables command handling.
type Config struct {
	Broker         string
	ClientID       string
	Topic          string
	NotifyTopic    string
	CommandTopic   string
	UpdateInterval time.Duration
}

// broker is the subset of paho.Client the daemon uses.
type broker interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Disconnect(quiesce uint)
}

// Notification is the body published on the notify topic.
type Notification struct {
	Kind string    `json:"kind"`
	SOC  int       `json:"soc"`
	VIN  string    `json:"vin,omitempty"`
	Time time.Time `json:"time"`
}

// Ack answers every command on CommandTopic+"/ack".
type Ack struct {
	Type    CommandType `json:"type"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
}

// Client is the MQTT side of the daemon. It implements notify.Notifier.
type Client struct {
	cfg     Config
	client  broker
	source  func() vehicle.Snapshot
	handler func(Command) error
	log     *slog.Logger
	wg      sync.WaitGroup
}

var _ notify.Notifier = (*Client)(nil)

// NewClient builds a client. source supplies the snapshot for periodic
// publishes and notifications; handler may be nil.
func NewClient(cfg Config, source func() vehicle.Snapshot, handler func(Command) error) *Client {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.NotifyTopic == "" {
		cfg.NotifyTopic = cfg.Topic + "/notify"
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	return &Client{
		cfg:     cfg,
		source:  source,
		handler: handler,
		log:     logging.L().With("component", "mqtt"),
	}
}

// Connect dials the broker. Auto-reconnect is on and the command
// subscription is renewed on every (re)connect.
func (c *Client) Connect() error {
	opts := paho.NewClientOptions()
	opts.AddBroker(c.cfg.Broker)
	opts.SetClientID(c.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(paho.Client) {
		c.log.Info("mqtt_connected", "broker", c.cfg.Broker)
		c.subscribe()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.log.Warn("mqtt_connection_lost", "error", err)
	})

	cl := paho.NewClient(opts)
	c.client = cl
	if token := cl.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", c.cfg.Broker, token.Error())
	}
	return nil
}

// Start publishes a state snapshot every UpdateInterval until ctx ends.
func (c *Client) Start(ctx context.Context) {
	c.log.Info("mqtt_publishing", "topic", c.cfg.Topic, "interval", c.cfg.UpdateInterval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		t := time.NewTicker(c.cfg.UpdateInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := c.PublishState(); err != nil {
					c.log.Warn("mqtt_publish_error", "topic", c.cfg.Topic, "error", err)
				}
			}
		}
	}()
}

// Close waits for the publisher to stop and disconnects.
func (c *Client) Close() {
	c.wg.Wait()
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(disconnectMS)
	}
}

// PublishState sends the current snapshot to Topic and waits for the broker.
func (c *Client) PublishState() error {
	if c.client == nil || !c.client.IsConnected() {
		return nil
	}
	b, err := json.Marshal(c.source())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return c.await(c.client.Publish(c.cfg.Topic, 0, false, b))
}

// Notify publishes a notification request without blocking the caller.
func (c *Client) Notify(k notify.Kind) {
	if c.client == nil || !c.client.IsConnected() {
		c.log.Warn("mqtt_notify_skipped", "kind", string(k), "reason", "not connected")
		return
	}
	n := Notification{Kind: string(k), Time: time.Now().UTC()}
	if c.source != nil {
		s := c.source()
		n.SOC = s.SOC
		if s.VINComplete {
			n.VIN = s.VIN
		}
	}
	b, err := json.Marshal(n)
	if err != nil {
		c.log.Error("mqtt_notify_encode", "error", err)
		return
	}
	token := c.client.Publish(c.cfg.NotifyTopic, 1, false, b)
	go func() {
		if err := c.await(token); err != nil {
			c.log.Warn("mqtt_notify_error", "topic", c.cfg.NotifyTopic, "error", err)
		}
	}()
}

func (c *Client) await(token paho.Token) error {
	if !token.WaitTimeout(publishTimeout) {
		metrics.IncError(metrics.ErrMQTTPublish)
		return fmt.Errorf("publish: timeout after %s", publishTimeout)
	}
	if err := token.Error(); err != nil {
		metrics.IncError(metrics.ErrMQTTPublish)
		return fmt.Errorf("publish: %w", err)
	}
	metrics.IncPublished()
	return nil
}

func (c *Client) subscribe() {
	topic := c.cfg.CommandTopic
	if topic == "" {
		c.log.Debug("mqtt_commands_disabled")
		return
	}
	token := c.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		c.handleCommand(msg.Payload())
	})
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.log.Error("mqtt_subscribe_error", "topic", topic, "error", err)
			return
		}
		c.log.Info("mqtt_subscribed", "topic", topic)
	}()
}

func (c *Client) handleCommand(payload []byte) {
	metrics.IncCommand()
	cmd, err := ParseCommand(payload)
	if err == nil {
		c.log.Info("mqtt_command", "type", string(cmd.Type))
		if c.handler != nil {
			err = c.handler(cmd)
		}
	}
	ack := Ack{Type: cmd.Type, Success: err == nil}
	if err != nil {
		metrics.IncError(metrics.ErrMQTTCommand)
		c.log.Warn("mqtt_command_error", "type", string(cmd.Type), "error", err)
		ack.Message = err.Error()
	}
	b, _ := json.Marshal(ack)
	token := c.client.Publish(c.cfg.CommandTopic+"/ack", 1, false, b)
	go func() { _ = c.await(token) }()
}
