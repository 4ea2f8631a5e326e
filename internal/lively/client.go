package lively

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jonboulle/clockwork"

	"livelyclient/internal/envelope"
	"livelyclient/internal/eventlog"
)

const (
	DefaultRealm     = "wss://matt.engagelively.com/"
	DefaultPath      = "/lively-socket.io"
	DefaultNamespace = "/l2l"
	DefaultToken     = "incorrect" // placeholder, must be overridden
)

// Config is fixed for the lifetime of a Client.
type Config struct {
	Realm     string
	Path      string
	Namespace string
	Token     string

	Debug           bool // trace connect/send details at debug level
	DisconnectOnAck bool // close the connection once the server acks a message
}

func DefaultConfig() Config {
	return Config{
		Realm:     DefaultRealm,
		Path:      DefaultPath,
		Namespace: DefaultNamespace,
		Token:     DefaultToken,
	}
}

// Client owns one transport connection to a realm and sends broadcast envelopes on it.
type Client struct {
	cfg       Config
	transport Transport
	recorder  eventlog.Recorder
	logger    *slog.Logger
	clock     clockwork.Clock
}

// Option customises a Client at construction.
type Option func(*Client)

func WithRecorder(r eventlog.Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewClient binds cfg to transport. Empty config fields fall back to the defaults.
func NewClient(cfg Config, transport Transport, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.Realm == "" {
		cfg.Realm = def.Realm
	}
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.Namespace == "" {
		cfg.Namespace = def.Namespace
	}
	if cfg.Token == "" {
		cfg.Token = def.Token
	}

	c := &Client{
		cfg:       cfg,
		transport: transport,
		recorder:  eventlog.Discard,
		logger:    slog.Default(),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Config() Config { return c.cfg }

// Connect opens the transport. Failures are returned as-is, wrapped; there is no retry.
func (c *Client) Connect(ctx context.Context) error {
	headers := http.Header{}
	headers.Set("token", c.cfg.Token)

	err := c.transport.Connect(ctx, c.cfg.Realm, c.cfg.Path, []string{c.cfg.Namespace}, headers)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.cfg.Realm, err)
	}

	connected := c.transport.Connected()
	if c.cfg.Debug {
		c.logger.Debug("Client Connected", "realm", c.cfg.Realm, "namespace", c.cfg.Namespace, "connected", connected)
	}
	c.recorder.Record(eventlog.ConnectedFlag(c.clock.Now(), connected))
	c.recorder.Record(eventlog.Connected(c.clock.Now()))
	return nil
}

// Disconnect closes the transport. Calling it twice is a transport-level error.
func (c *Client) Disconnect() error {
	if err := c.transport.Disconnect(); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	if c.cfg.Debug {
		c.logger.Debug("Client Disconnected", "realm", c.cfg.Realm)
	}
	c.recorder.Record(eventlog.Disconnected(c.clock.Now()))
	return nil
}

// OnMessageReceived is the delivery callback registered with every emit.
// It runs on the transport's goroutine.
func (c *Client) OnMessageReceived(args ...any) {
	if c.cfg.Debug {
		c.logger.Debug("Message has been received by server.", "ack_args", len(args))
	}
	c.recorder.Record(eventlog.Ack(c.clock.Now()))

	if c.cfg.DisconnectOnAck {
		if err := c.Disconnect(); err != nil {
			c.logger.Warn("Disconnect after ack failed", "error", err)
		}
	}
}

// Send wraps payload for room and emits it on the client's namespace.
// The caller must have connected first; that is not checked here.
func (c *Client) Send(ctx context.Context, payload any, room string, opts ...SendOption) error {
	o := defaultSendOptions()
	for _, opt := range opts {
		opt(&o)
	}

	data := envelope.BuildData(envelope.DataAction, room, payload)
	msg := envelope.BuildMessage(o.sender, data, o.action, o.n, c.cfg.Token)

	raw, err := envelope.Serialize(msg)
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}
	if c.cfg.Debug {
		c.logger.Debug("This is the message that is being sent",
			"message", "<<<LivelyMessage>>>"+raw+"<<<LivelyMessage>>>",
			"version", envelope.SerializationVersion)
	}
	logged, err := envelope.Serialize(msg.Redacted())
	if err != nil {
		return fmt.Errorf("serialize message: %w", err)
	}
	c.recorder.Record(eventlog.Sent(c.clock.Now(), room, logged))

	wire, err := envelope.ParseWire(raw)
	if err != nil {
		return err
	}
	if err := c.transport.Emit(ctx, wire, c.cfg.Namespace, c.OnMessageReceived); err != nil {
		return fmt.Errorf("emit to room %s: %w", room, err)
	}
	return nil
}
