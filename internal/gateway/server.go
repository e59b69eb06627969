// Package gateway exposes the agent over HTTP and WebSocket. Clients post
// messages to /api/agent and may watch turn progress on /ws.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/experimentein/research-agent/internal/agent"
	"github.com/experimentein/research-agent/internal/config"
	"github.com/experimentein/research-agent/internal/domain"
	"github.com/experimentein/research-agent/internal/logging"
	"github.com/experimentein/research-agent/internal/version"
)

// TurnRunner processes one user message and returns the reply.
type TurnRunner interface {
	Run(ctx context.Context, sessionKey, message string) (*agent.TurnResult, error)
}

// ConversationLister enumerates stored conversations for the listing route.
type ConversationLister interface {
	List() []domain.Conversation
}

// Server is the agent's HTTP/WebSocket gateway.
type Server struct {
	cfg           config.GatewayConfig
	runner        TurnRunner
	conversations ConversationLister
	log           *logging.Logger
	hub           *eventHub
	upgrader      websocket.Upgrader
	httpServer    *http.Server
	startedAt     time.Time
}

// New creates a gateway server. The lister may be nil, in which case the
// conversation listing route reports 404.
func New(cfg config.GatewayConfig, runner TurnRunner, conversations ConversationLister, log *logging.Logger) *Server {
	glog := log.Sub("gateway")
	return &Server{
		cfg:           cfg,
		runner:        runner,
		conversations: conversations,
		log:           glog,
		hub:           newEventHub(glog),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.CorsOrigins),
		},
	}
}

// Broadcast forwards a turn event to every connected WebSocket client.
// Install it with runner.OnEvent.
func (s *Server) Broadcast(evt agent.TurnEvent) {
	s.hub.Broadcast(evt)
}

// Handler builds the full HTTP handler with routing, auth, and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("POST /api/agent", authMiddleware(http.HandlerFunc(s.handleAgent), s.cfg.Auth.Token))
	mux.Handle("GET /api/conversations", authMiddleware(http.HandlerFunc(s.handleConversations), s.cfg.Auth.Token))
	mux.Handle("GET /ws", authMiddleware(http.HandlerFunc(s.handleWebSocket), s.cfg.Auth.Token))
	return withMiddleware(mux, s.log, s.cfg.CorsOrigins)
}

// checkWebSocketOrigin returns a function that validates WebSocket Origin
// headers. Requests without an Origin header (non-browser clients) always
// pass; browser requests must match a configured origin.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Bool("auth", s.cfg.Auth.Token != "").
		Msg("gateway server ready")

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.hub.closeAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// agentRequest is the body of POST /api/agent.
type agentRequest struct {
	SessionKey string `json:"sessionKey"`
	Message    string `json:"message"`
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionKey == "" {
		req.SessionKey = "default"
	}

	result, err := s.runner.Run(r.Context(), req.SessionKey, req.Message)
	if err != nil {
		s.log.Error().Err(err).Str("sessionKey", req.SessionKey).Msg("turn failed")
		writeError(w, http.StatusBadGateway, "agent turn failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Duration(0)
	if !s.startedAt.IsZero() {
		uptime = time.Since(s.startedAt)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"uptime":  uptime.Round(time.Second).String(),
		"clients": s.hub.count(),
	})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if s.conversations == nil {
		writeError(w, http.StatusNotFound, "conversation listing is not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": s.conversations.List(),
	})
}

// handleWebSocket upgrades the connection and streams turn events until the
// client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := s.hub.add(conn)
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("new websocket connection")

	go client.writePump()

	// Drain inbound frames so pings and close frames are processed. The
	// event feed is one-way.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.remove(client)
	conn.Close()
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("websocket connection closed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
