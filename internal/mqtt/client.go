package mqtt

import (
	"errors"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/afroash/buffet-monitor/internal/config"
)

// Sentinel errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")
)

// MessageHandler is the callback signature for received messages.
// Handlers are invoked in separate goroutines by the paho library and
// should not block for extended periods.
type MessageHandler func(topic string, payload []byte)

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	handler MessageHandler
}

// Client wraps paho.mqtt.golang with connection management, publishing,
// and automatic re-subscription on reconnect. All methods are safe for
// concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	logger zerolog.Logger

	subscriptions map[string]subscription
	subMu         sync.RWMutex
}

// Connect establishes a connection to the MQTT broker and returns a
// client ready for use. Auto-reconnect is enabled; active subscriptions
// are restored when the connection comes back.
func Connect(cfg config.MQTTConfig, logger zerolog.Logger) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		logger:        logger,
		subscriptions: make(map[string]subscription),
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		logger.Info().Str("broker", cfg.BrokerURL).Msg("MQTT connected")
		c.resubscribe()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// IsConnected reports whether the client currently has a broker connection.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Publish sends a message to the specified topic with the configured QoS.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, payload)
	if !token.WaitTimeout(c.cfg.Timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, c.cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// Subscribe registers a handler for a topic. The subscription is
// restored automatically after a reconnect.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, byte(c.cfg.QoS), func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(c.cfg.Timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, c.cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{topic: topic, handler: handler}
	c.subMu.Unlock()

	return nil
}

// resubscribe restores all tracked subscriptions after a reconnect.
func (c *Client) resubscribe() {
	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		handler := sub.handler
		token := c.client.Subscribe(sub.topic, byte(c.cfg.QoS), func(_ pahomqtt.Client, msg pahomqtt.Message) {
			handler(msg.Topic(), msg.Payload())
		})
		if token.WaitTimeout(c.cfg.Timeout) && token.Error() == nil {
			continue
		}
		c.logger.Error().Str("topic", sub.topic).Err(token.Error()).Msg("Failed to restore subscription")
	}
}

// Close disconnects from the broker, allowing in-flight messages to drain.
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}
