package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client.go = Socket.IO v4 client over a single websocket (no polling, no reconnect).

const (
	WriteWait        = 10 * time.Second // max time to write a frame to the peer
	HandshakeTimeout = 20 * time.Second // open packet + namespace connect, when ctx has no deadline
)

var (
	ErrNotConnected          = errors.New("socketio: not connected")
	ErrAlreadyConnected      = errors.New("socketio: already connected")
	ErrHandshake             = errors.New("socketio: handshake failed")
	ErrConnectRejected       = errors.New("socketio: namespace connection rejected")
	ErrNamespaceNotConnected = errors.New("socketio: namespace not connected")
	ErrConnectionClosed      = errors.New("socketio: connection closed")
)

// AckFunc receives the arguments of an ACK packet.
type AckFunc = func(args ...any)

// Client is one Engine.IO session carrying one or more namespaces.
// All methods are safe for concurrent use; ack callbacks and event handlers run
// on their own goroutines.
type Client struct {
	dialer *websocket.Dialer
	logger *slog.Logger

	lifecycle sync.Mutex // serialises Connect and Disconnect
	writeMu   sync.Mutex // gorilla allows one concurrent writer

	mu         sync.Mutex
	conn       *websocket.Conn
	done       chan struct{} // closed when the read loop exits
	connected  bool
	sid        string
	namespaces map[string]string // namespace -> socket id
	waiters    map[string]chan error
	pending    map[uint64]AckFunc
	nextID     uint64
	handlers   map[string]func(args ...any)
}

type ClientOption func(*Client)

func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		dialer:   websocket.DefaultDialer,
		logger:   slog.Default(),
		handlers: make(map[string]func(args ...any)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// On registers a handler for a server-initiated event on any namespace.
func (c *Client) On(event string, handler func(args ...any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = handler
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SID returns the Engine.IO session id of the current connection.
func (c *Client) SID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sid
}

// Connect dials realm+subPath, completes the Engine.IO handshake and connects
// every namespace, authenticating with headers. It returns once all namespaces
// are acknowledged or the first one fails.
func (c *Client) Connect(ctx context.Context, realm, subPath string, namespaces []string, headers http.Header) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if err := c.releaseDead(); err != nil {
		return err
	}

	endpoint, err := BuildURL(realm, subPath)
	if err != nil {
		return err
	}
	if len(namespaces) == 0 {
		namespaces = []string{DefaultNamespace}
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, HandshakeTimeout)
		defer cancel()
	}

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: dial %s: %s", ErrHandshake, endpoint, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	open, err := readOpen(ctx, conn)
	if err != nil {
		conn.Close()
		return err
	}

	waiters := make(map[string]chan error, len(namespaces))
	for _, ns := range namespaces {
		waiters[normalizeNamespace(ns)] = make(chan error, 1)
	}
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.sid = open.SID
	c.namespaces = make(map[string]string)
	c.waiters = waiters
	c.pending = make(map[uint64]AckFunc)
	c.mu.Unlock()

	window := time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	go c.readLoop(conn, done, window)

	c.logger.Debug("Engine.IO session opened", "sid", open.SID, "endpoint", endpoint)

	for _, ns := range sortedKeys(waiters) {
		frame := Packet{Type: PacketConnect, Namespace: ns}.Frame()
		if err := c.write(ctx, conn, frame); err != nil {
			c.abort(conn, done)
			return fmt.Errorf("connect namespace %s: %w", ns, err)
		}
	}

	for _, ns := range sortedKeys(waiters) {
		select {
		case err := <-waiters[ns]:
			if err != nil {
				c.abort(conn, done)
				return fmt.Errorf("connect namespace %s: %w", ns, err)
			}
		case <-ctx.Done():
			c.abort(conn, done)
			return fmt.Errorf("connect namespace %s: %w", ns, ctx.Err())
		}
	}

	// done is closed under mu, so this check cannot race the read loop's exit
	c.mu.Lock()
	select {
	case <-done:
		c.mu.Unlock()
		c.abort(conn, done)
		return ErrConnectionClosed
	default:
	}
	c.connected = true
	c.mu.Unlock()
	return nil
}

// Disconnect leaves every namespace and closes the socket. Calling it without
// an open connection returns ErrNotConnected.
func (c *Client) Disconnect() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	conn, done, wasConnected := c.conn, c.done, c.connected
	namespaces := sortedKeys(c.namespaces)
	c.connected = false
	c.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	if wasConnected {
		ctx, cancel := context.WithTimeout(context.Background(), WriteWait)
		for _, ns := range namespaces {
			_ = c.write(ctx, conn, Packet{Type: PacketDisconnect, Namespace: ns}.Frame())
		}
		cancel()

		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(WriteWait))
		c.writeMu.Unlock()
	}

	c.abort(conn, done)
	if !wasConnected {
		return ErrNotConnected
	}
	return nil
}

// Emit sends payload as the single argument of an EVENT packet on namespace.
// When ack is non-nil an ack id is attached and ack runs once the server answers.
func (c *Client) Emit(ctx context.Context, payload any, namespace string, ack AckFunc) error {
	ns := normalizeNamespace(namespace)
	packet, err := EventPacket(ns, nil, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if _, ok := c.namespaces[ns]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNamespaceNotConnected, ns)
	}
	conn := c.conn
	if ack != nil {
		n := c.nextID
		c.nextID++
		c.pending[n] = ack
		packet.ID = &n
	}
	c.mu.Unlock()

	if err := c.write(ctx, conn, packet.Frame()); err != nil {
		if packet.ID != nil {
			c.mu.Lock()
			delete(c.pending, *packet.ID)
			c.mu.Unlock()
		}
		return fmt.Errorf("emit on %s: %w", ns, err)
	}
	return nil
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, frame string) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(WriteWait)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}, window time.Duration) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		for ns, ch := range c.waiters {
			select {
			case ch <- ErrConnectionClosed:
			default:
			}
			delete(c.waiters, ns)
		}
		if dropped := len(c.pending); dropped > 0 {
			c.logger.Debug("Dropping unacknowledged emits", "count", dropped)
		}
		c.pending = make(map[uint64]AckFunc)
		close(done)
		c.mu.Unlock()
	}()

	for {
		if window > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(window))
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("Socket read failed", "error", err)
			} else {
				c.logger.Debug("Socket read loop stopped", "error", err)
			}
			return
		}
		if stop := c.handleFrame(conn, string(data)); stop {
			return
		}
	}
}

// handleFrame processes one Engine.IO packet and reports whether the session ended.
func (c *Client) handleFrame(conn *websocket.Conn, frame string) bool {
	if frame == "" {
		return false
	}
	switch EnginePacket(frame[0]) {
	case EnginePing:
		ctx, cancel := context.WithTimeout(context.Background(), WriteWait)
		defer cancel()
		if err := c.write(ctx, conn, string(EnginePong)+frame[1:]); err != nil {
			c.logger.Warn("Failed to answer ping", "error", err)
		}
	case EngineClose:
		c.logger.Debug("Server closed the Engine.IO session")
		return true
	case EngineMessage:
		p, err := DecodePacket(frame[1:])
		if err != nil {
			c.logger.Warn("Dropping malformed packet", "error", err)
			return false
		}
		c.handlePacket(p)
	case EnginePong, EngineNoop:
	default:
		c.logger.Debug("Ignoring Engine.IO packet", "type", string(frame[0]))
	}
	return false
}

func (c *Client) handlePacket(p Packet) {
	switch p.Type {
	case PacketConnect:
		var body struct {
			SID string `json:"sid"`
		}
		_ = json.Unmarshal(p.Data, &body)

		c.mu.Lock()
		c.namespaces[p.Namespace] = body.SID
		ch := c.waiters[p.Namespace]
		delete(c.waiters, p.Namespace)
		c.mu.Unlock()
		if ch != nil {
			ch <- nil
		}

	case PacketConnectError:
		c.mu.Lock()
		ch := c.waiters[p.Namespace]
		delete(c.waiters, p.Namespace)
		c.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrConnectRejected, p.ConnectErrorMessage())
		if ch != nil {
			ch <- err
		} else {
			c.logger.Warn("Unexpected connect error", "namespace", p.Namespace, "error", err)
		}

	case PacketAck:
		if p.ID == nil {
			return
		}
		c.mu.Lock()
		cb, ok := c.pending[*p.ID]
		delete(c.pending, *p.ID)
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("Ack for unknown id", "id", *p.ID)
			return
		}
		args, err := p.Args()
		if err != nil {
			c.logger.Warn("Malformed ack payload", "id", *p.ID, "error", err)
		}
		go cb(args...)

	case PacketEvent:
		args, err := p.Args()
		if err != nil || len(args) == 0 {
			c.logger.Warn("Malformed event packet", "namespace", p.Namespace, "error", err)
			return
		}
		name, _ := args[0].(string)
		c.mu.Lock()
		h := c.handlers[name]
		c.mu.Unlock()
		if h == nil {
			c.logger.Debug("Unhandled server event", "namespace", p.Namespace, "event", name)
			return
		}
		go h(args[1:]...)

	case PacketDisconnect:
		c.mu.Lock()
		delete(c.namespaces, p.Namespace)
		c.mu.Unlock()
		c.logger.Info("Namespace disconnected by server", "namespace", p.Namespace)
	}
}

// abort closes conn, waits for the read loop and clears session state.
func (c *Client) abort(conn *websocket.Conn, done chan struct{}) {
	conn.Close()
	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
		c.done = nil
		c.connected = false
		c.sid = ""
		c.namespaces = nil
	}
}

// releaseDead clears a session whose read loop already ended (server went away)
// so that Connect may dial again. A live session is ErrAlreadyConnected.
func (c *Client) releaseDead() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	select {
	case <-done:
		c.abort(conn, done)
		return nil
	default:
		return ErrAlreadyConnected
	}
}

func readOpen(ctx context.Context, conn *websocket.Conn) (OpenPayload, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		defer conn.SetReadDeadline(time.Time{})
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return OpenPayload{}, fmt.Errorf("%w: read open packet: %v", ErrHandshake, err)
	}
	if len(data) == 0 || EnginePacket(data[0]) != EngineOpen {
		return OpenPayload{}, fmt.Errorf("%w: expected open packet, got %q", ErrHandshake, data)
	}
	var open OpenPayload
	if err := json.Unmarshal(data[1:], &open); err != nil {
		return OpenPayload{}, fmt.Errorf("%w: decode open packet: %v", ErrHandshake, err)
	}
	return open, nil
}

func normalizeNamespace(ns string) string {
	if ns == "" {
		return DefaultNamespace
	}
	if ns[0] != '/' {
		return "/" + ns
	}
	return ns
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
