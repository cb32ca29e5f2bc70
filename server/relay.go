// Package server is the relay's transport edge: it authenticates websocket
// handshakes, owns connection sessions, and wires them to the routers and
// the presence registry.
package server

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/runtime"
	"chat-relay/services"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type Options struct {
	JWTSecret            []byte
	ConnectionBufferSize int
	WriteTimeout         time.Duration
	PongTimeout          time.Duration
	ReadLimit            int64
}

// RelayServer is the top-level coordinator: it owns the presence registry,
// accepts new connection sessions, and hands their events to the routers.
type RelayServer struct {
	log      *slog.Logger
	registry *runtime.Registry
	direct   services.IDirectRouter
	group    services.IGroupRouter
	history  services.IHistoryService

	upgrader             websocket.Upgrader
	jwtSecret            []byte
	connectionBufferSize int
	writeTimeout         time.Duration
	pongTimeout          time.Duration
	readLimit            int64
}

func NewRelayServer(log *slog.Logger, registry *runtime.Registry,
	direct services.IDirectRouter, group services.IGroupRouter,
	history services.IHistoryService, opts Options) *RelayServer {
	return &RelayServer{
		log:      log,
		registry: registry,
		direct:   direct,
		group:    group,
		history:  history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are native apps holding bearer tokens, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		jwtSecret:            opts.JWTSecret,
		connectionBufferSize: opts.ConnectionBufferSize,
		writeTimeout:         opts.WriteTimeout,
		pongTimeout:          opts.PongTimeout,
		readLimit:            opts.ReadLimit,
	}
}

func (s *RelayServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleConnect)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// handleConnect resolves the handshake token to a user identity, upgrades
// the transport, and runs the session until disconnect. The identity layer
// validated credentials when it minted the token; here we only verify it.
func (s *RelayServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "authorization token is missing", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ValidateToken(s.jwtSecret, token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	session := newSession(s.log, conn, s, domain.UserID(claims.UserID))
	go session.writeLoop()
	// Blocks until the transport closes; the deferred cleanup in readLoop
	// unregisters the session promptly.
	session.readLoop(r.Context())
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
