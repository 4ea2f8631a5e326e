package devrealm

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"livelyclient/internal/transport/socketio"
)

// session = one Engine.IO connection. It runs a read pump on the handler
// goroutine and a ping pump on its own goroutine.

const (
	WriteWait      = 10 * time.Second // max time to write a frame to the peer
	MaxMessageSize = 1_000_000        // advertised as maxPayload
)

type session struct {
	id     string
	user   string
	conn   *websocket.Conn
	server *Server

	writeMu sync.Mutex
	mu      sync.Mutex
	sockets map[string]string // namespace -> socket id
	done    chan struct{}
}

func newSession(user string, conn *websocket.Conn, server *Server) *session {
	return &session{
		id:      uuid.NewString(),
		user:    user,
		conn:    conn,
		server:  server,
		sockets: make(map[string]string),
		done:    make(chan struct{}),
	}
}

func (s *session) write(frame string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (s *session) writePacket(p socketio.Packet) error {
	return s.write(p.Frame())
}

func (s *session) close() {
	s.conn.Close()
}

// run blocks until the peer goes away or the server closes the session.
func (s *session) run() {
	defer close(s.done)
	defer s.conn.Close()

	cfg := s.server.cfg
	open, _ := json.Marshal(socketio.OpenPayload{
		SID:          s.id,
		Upgrades:     []string{},
		PingInterval: int(cfg.PingInterval / time.Millisecond),
		PingTimeout:  int(cfg.PingTimeout / time.Millisecond),
		MaxPayload:   MaxMessageSize,
	})
	if err := s.write(string(socketio.EngineOpen) + string(open)); err != nil {
		s.server.logger.Warn("Failed to send open packet", "sid", s.id, "error", err)
		return
	}

	go s.pingPump()

	s.conn.SetReadLimit(MaxMessageSize)
	window := cfg.PingInterval + cfg.PingTimeout
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(window))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.server.logger.Debug("Session read ended", "sid", s.id, "error", err)
			return
		}
		if !s.handleFrame(string(data)) {
			return
		}
	}
}

func (s *session) pingPump() {
	ticker := time.NewTicker(s.server.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.write(string(socketio.EnginePing)); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// handleFrame returns false when the session should end.
func (s *session) handleFrame(frame string) bool {
	if frame == "" {
		return true
	}
	switch socketio.EnginePacket(frame[0]) {
	case socketio.EngineClose:
		return false
	case socketio.EnginePing:
		_ = s.write(string(socketio.EnginePong) + frame[1:])
	case socketio.EngineMessage:
		p, err := socketio.DecodePacket(frame[1:])
		if err != nil {
			s.server.logger.Warn("Malformed packet", "sid", s.id, "error", err)
			return true
		}
		s.handlePacket(p)
	}
	return true
}

func (s *session) handlePacket(p socketio.Packet) {
	logger := s.server.logger
	switch p.Type {
	case socketio.PacketConnect:
		if !s.server.allowsNamespace(p.Namespace) {
			body, _ := json.Marshal(map[string]string{"message": "Invalid namespace"})
			_ = s.writePacket(socketio.Packet{Type: socketio.PacketConnectError, Namespace: p.Namespace, Data: body})
			logger.Info("Namespace rejected", "sid", s.id, "namespace", p.Namespace)
			return
		}
		socketID := uuid.NewString()
		s.mu.Lock()
		s.sockets[p.Namespace] = socketID
		s.mu.Unlock()
		body, _ := json.Marshal(map[string]string{"sid": socketID})
		_ = s.writePacket(socketio.Packet{Type: socketio.PacketConnect, Namespace: p.Namespace, Data: body})
		logger.Info("Namespace connected", "sid", s.id, "namespace", p.Namespace, "user", s.user)

	case socketio.PacketDisconnect:
		s.mu.Lock()
		delete(s.sockets, p.Namespace)
		s.mu.Unlock()
		logger.Info("Namespace left", "sid", s.id, "namespace", p.Namespace)

	case socketio.PacketEvent:
		s.mu.Lock()
		_, joined := s.sockets[p.Namespace]
		s.mu.Unlock()
		if !joined {
			logger.Warn("Event on unconnected namespace", "sid", s.id, "namespace", p.Namespace)
			return
		}

		args, err := p.Args()
		if err != nil || len(args) == 0 {
			logger.Warn("Malformed event", "sid", s.id, "error", err)
			return
		}
		s.server.accept(s, p.Namespace, args[0])

		if p.ID != nil {
			ack := socketio.Packet{Type: socketio.PacketAck, Namespace: p.Namespace, ID: p.ID, Data: json.RawMessage(`[{"status":"ok"}]`)}
			if err := s.writePacket(ack); err != nil {
				logger.Warn("Failed to ack event", "sid", s.id, "error", err)
				return
			}
			s.server.metrics.Acks.Inc()
		}
	}
}
