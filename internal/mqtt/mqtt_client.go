package mqtt

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/farouk15160/evocharger/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned when a subscription is attempted while the
// broker is unreachable. Publishing never fails on it: paho queues or drops.
var ErrNotConnected = errors.New("mqtt client not connected")

// Client wraps the paho client with the bridge's topic routing.
type Client struct {
	pahoClient MQTT.Client
	connectURL string
	clientID   string
	user       string
	pw         string
	qos        byte
	debug      atomic.Bool
	dispatcher *Dispatcher
	logger     zerolog.Logger
}

// ParseBroker splits user:pass@ credentials out of a broker URL. Credentials
// in the URL win over user and pw.
func ParseBroker(brokerURL, user, pw string) (connectURL, username, password string) {
	scheme, rest, found := strings.Cut(brokerURL, "://")
	if !found {
		scheme, rest = "tcp", brokerURL
	}
	userPassword, host, found := strings.Cut(rest, "@")
	if !found {
		return scheme + "://" + rest, user, pw
	}
	username, password, found = strings.Cut(userPassword, ":")
	if !found {
		password = pw
	}
	return scheme + "://" + host, username, password
}

// NewClient configures a client; Connect starts talking to the broker.
func NewClient(cfg config.MQTT, d *Dispatcher) *Client {
	if d == nil {
		d = NewDispatcher()
	}
	c := &Client{
		clientID:   cfg.ClientID,
		qos:        cfg.QoS,
		dispatcher: d,
		logger:     log.With().Str("component", "mqtt").Logger(),
	}
	c.connectURL, c.user, c.pw = ParseBroker(cfg.Broker, cfg.Username, cfg.Password)

	opts := MQTT.NewClientOptions()
	opts.AddBroker(c.connectURL)
	opts.SetClientID(c.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetOrderMatters(false)

	// the broker keeps subscriptions of this client id across short drops
	opts.SetCleanSession(false)
	opts.SetResumeSubs(true)

	if c.user != "" {
		opts.SetUsername(c.user)
	}
	if c.pw != "" {
		opts.SetPassword(c.pw)
	}

	opts.SetDefaultPublishHandler(c.defaultHandler)
	opts.SetConnectionLostHandler(c.connectionLostHandler)
	opts.SetOnConnectHandler(c.onConnectHandler)

	c.pahoClient = MQTT.NewClient(opts)
	return c
}

// Connect initiates the connection and returns at once; paho keeps
// retrying in the background.
func (c *Client) Connect() {
	ev := c.logger.Info().Str("broker", c.connectURL)
	if c.user != "" {
		ev = ev.Str("username", c.user)
	}
	ev.Msg("MQTT: Initiating connection (will retry automatically)")
	go func() {
		if token := c.pahoClient.Connect(); token.Wait() && token.Error() != nil {
			c.logger.Warn().Err(token.Error()).Msg("MQTT: Initial connection attempt failed (AutoReconnect enabled)")
		}
	}()
}

// SetDebug toggles payload logging.
func (c *Client) SetDebug(v bool) {
	c.debug.Store(v)
}

func (c *Client) defaultHandler(_ MQTT.Client, msg MQTT.Message) {
	topic := msg.Topic()
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	if c.debug.Load() {
		c.logger.Debug().Str("topic", topic).Str("payload", abbreviate(payload)).Msg("MQTT Handler: Received")
	}

	start := time.Now()
	if !c.dispatcher.Dispatch(topic, payload) {
		c.logger.Debug().Str("topic", topic).Msg("MQTT Handler: No handler for topic, message ignored")
		return
	}
	if c.debug.Load() {
		c.logger.Debug().Str("topic", topic).Dur("took", time.Since(start)).Msg("MQTT Handler: Processed")
	}
}

func (c *Client) onConnectHandler(_ MQTT.Client) {
	c.logger.Info().Msg("MQTT: Connection established/re-established")
	topics := c.dispatcher.Topics()
	for _, topic := range topics {
		if err := c.Subscribe(topic); err != nil {
			c.logger.Error().Err(err).Str("topic", topic).Msg("MQTT: Error re-subscribing")
		}
	}
	c.logger.Info().Int("topics", len(topics)).Msg("MQTT: Re-subscription process completed")
}

func (c *Client) connectionLostHandler(_ MQTT.Client, err error) {
	c.logger.Error().Err(err).Msg("MQTT: Connection lost. AutoReconnect will attempt to reconnect")
}

// Subscribe adds a subscription. Messages are delivered through the
// dispatcher.
func (c *Client) Subscribe(topic string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.pahoClient.Subscribe(topic, c.qos, nil)
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return token.Error()
	}
	c.logger.Info().Str("topic", topic).Msg("MQTT: Subscribed")
	return nil
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(topic string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if token := c.pahoClient.Unsubscribe(topic); token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Publish sends a non-retained message and returns immediately.
func (c *Client) Publish(topic string, payload []byte) error {
	return c.publish(topic, payload, false)
}

// PublishRetained sends a message with the retained flag set.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.publish(topic, payload, true)
}

func (c *Client) publish(topic string, payload []byte, retained bool) error {
	if !c.IsConnected() {
		c.logger.Debug().Str("topic", topic).Msg("MQTT: Not connected, message might be lost")
	}
	if c.debug.Load() {
		c.logger.Debug().Str("topic", topic).Bool("retained", retained).Str("payload", abbreviate(payload)).Msg("MQTT Publish")
	}
	token := c.pahoClient.Publish(topic, c.qos, retained, payload)
	go func(t MQTT.Token) {
		if t.WaitTimeout(3*time.Second) && t.Error() != nil {
			c.logger.Error().Err(t.Error()).Str("topic", topic).Msg("MQTT: Async check for publish failed")
		}
	}(token)
	return nil
}

// Disconnect gracefully closes the connection.
func (c *Client) Disconnect() {
	if c.pahoClient != nil && c.IsConnected() {
		c.logger.Info().Msg("MQTT: Disconnecting client")
		c.pahoClient.Disconnect(500)
	}
}

// IsConnected checks connection status.
func (c *Client) IsConnected() bool {
	return c.pahoClient != nil && c.pahoClient.IsConnected()
}

func abbreviate(p []byte) string {
	if len(p) > 100 {
		return string(p[:100]) + "..."
	}
	return string(p)
}
