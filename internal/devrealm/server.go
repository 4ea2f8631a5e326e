package devrealm

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"livelyclient/internal/auth"
)

type Config struct {
	Path         string   // transport sub-path, e.g. /lively-socket.io
	Namespaces   []string // namespaces clients may connect
	Secret       string   // HS256 secret for the token header; empty accepts any token
	PingInterval time.Duration
	PingTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Path:         "/lively-socket.io",
		Namespaces:   []string{"/l2l"},
		PingInterval: 25 * time.Second,
		PingTimeout:  20 * time.Second,
	}
}

var ErrUnauthorized = errors.New("invalid token")

type Server struct {
	cfg      Config
	hub      *Hub
	metrics  *Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
}

func NewServer(cfg Config, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if len(cfg.Namespaces) == 0 {
		cfg.Namespaces = def.Namespaces
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		cfg:     cfg,
		hub:     NewHub(),
		metrics: NewMetrics(),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// dev realm only; any origin may connect
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessions: make(map[*session]struct{}),
	}
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Metrics() *Metrics { return s.metrics }

// Routes mounts the socket endpoint, health check and metrics on r.
func (s *Server) Routes(r gin.IRouter) {
	base := "/" + strings.Trim(s.cfg.Path, "/")
	r.GET(base, s.TokenAuth(), s.SocketHandler())
	r.GET(base+"/", s.TokenAuth(), s.SocketHandler())
	r.GET("/healthz", s.healthHandler)
	r.GET("/rooms", s.roomsHandler)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// Engine returns a gin engine serving only this realm.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	s.Routes(r)
	return r
}

// SocketHandler upgrades Engine.IO websocket requests and runs the session.
// It expects TokenAuth to have run first.
func (s *Server) SocketHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("EIO") != "4" || c.Query("transport") != "websocket" {
			s.metrics.Handshakes.WithLabelValues("bad_request").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"code": 0, "message": "Transport unknown"})
			return
		}
		user := c.GetString(userKey)

		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			s.metrics.Handshakes.WithLabelValues("upgrade_failed").Inc()
			s.logger.Warn("Failed to upgrade to WebSocket", "error", err)
			return
		}
		s.metrics.Handshakes.WithLabelValues("ok").Inc()

		sess := newSession(user, conn, s)
		s.track(sess, true)
		defer s.track(sess, false)

		s.logger.Info("Session opened", "sid", sess.id, "user", user)
		sess.run()
		s.logger.Info("Session closed", "sid", sess.id)
	}
}

// Close ends every open session.
func (s *Server) Close() {
	s.mu.Lock()
	open := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	for _, sess := range open {
		sess.close()
	}
}

func (s *Server) track(sess *session, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.sessions[sess] = struct{}{}
		s.metrics.ActiveSessions.Inc()
	} else {
		delete(s.sessions, sess)
		s.metrics.ActiveSessions.Dec()
	}
}

func (s *Server) authenticate(token string) (string, error) {
	if s.cfg.Secret == "" {
		return "anonymous", nil
	}
	if token == "" {
		return "", ErrUnauthorized
	}
	sub, err := auth.VerifyHS256(token, s.cfg.Secret)
	if err != nil {
		return "", ErrUnauthorized
	}
	return sub, nil
}

func (s *Server) allowsNamespace(ns string) bool {
	for _, allowed := range s.cfg.Namespaces {
		if allowed == ns {
			return true
		}
	}
	return false
}

func (s *Server) accept(sess *session, namespace string, payload any) {
	room := RoomOf(payload)
	s.hub.Room(room).Add(Received{
		Namespace: namespace,
		SessionID: sess.id,
		User:      sess.user,
		Payload:   payload,
		At:        time.Now().UTC(),
	})
	s.metrics.Events.WithLabelValues(namespace).Inc()
	s.logger.Info("Broadcast received", "sid", sess.id, "namespace", namespace, "room", room)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) roomsHandler(c *gin.Context) {
	rooms := gin.H{}
	for _, id := range s.hub.RoomIDs() {
		rooms[id] = s.hub.Room(id).Count()
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}
