package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/harun/agentcore/internal/observability"
	"github.com/harun/agentcore/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// SecretHeader carries the shared secret on plain HTTP RPC requests.
const SecretHeader = "X-Agentcore-Secret"

// Server exposes running agents over websocket and HTTP JSON-RPC.
type Server struct {
	addr              string
	tickInterval      time.Duration
	requestsPerMinute int
	maxConcurrent     int
	server            *http.Server
	listener          net.Listener
	upgrader          websocket.Upgrader
	clients           *ClientRegistry
	router            *RPCRouter
	authHandler       *AuthHandler
	broadcaster       *EventBroadcaster
	agents            AgentDirectory
	logger            zerolog.Logger
	isShuttingDown    bool
	shutdownMu        sync.RWMutex
	inFlightReqs      sync.WaitGroup
	tickCancel        context.CancelFunc
	tickWG            sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Addr string
	// SharedSecret enables HMAC challenge authentication when non-empty.
	SharedSecret      string
	TickInterval      time.Duration
	RequestsPerMinute int
	MaxConcurrent     int
	Agents            AgentDirectory
	Logger            zerolog.Logger
}

// NewServer creates a new Gateway Server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Agents == nil {
		return nil, fmt.Errorf("agent directory is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8765"
	}
	if cfg.TickInterval < 0 {
		cfg.TickInterval = 0
	}

	observability.EnsureRegistered()

	clients := NewClientRegistry()
	logger := cfg.Logger.With().Str("component", "gateway").Logger()

	s := &Server{
		addr:              cfg.Addr,
		tickInterval:      cfg.TickInterval,
		requestsPerMinute: cfg.RequestsPerMinute,
		maxConcurrent:     cfg.MaxConcurrent,
		clients:           clients,
		router:            NewRPCRouter(),
		authHandler:       NewAuthHandler(cfg.SharedSecret),
		broadcaster:       NewEventBroadcaster(clients, cfg.Logger),
		agents:            cfg.Agents,
		logger:            logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.registerBuiltinMethods()

	return s, nil
}

// Handler returns the HTTP routes of the gateway.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting Gateway Server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	s.startTickEmitter()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the Gateway Server
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down Gateway Server")
	s.stopTickEmitter()

	s.broadcaster.BroadcastTyped(EventMessage{
		Event:  "server.shutdown",
		Stream: StreamTypeLifecycle,
		Phase:  "shutdown",
		Data:   map[string]any{"message": "Server is shutting down"},
	})

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, client := range s.clients.All() {
		_ = client.Conn.Close()
	}

	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway Server stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

func (s *Server) startTickEmitter() {
	if s.tickInterval <= 0 {
		return
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	s.tickCancel = cancel
	s.tickWG.Add(1)

	go func() {
		defer s.tickWG.Done()

		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-tickCtx.Done():
				return
			case <-ticker.C:
				s.broadcaster.BroadcastTyped(EventMessage{
					Event:  "tick",
					Stream: StreamTypeLifecycle,
					Phase:  "tick",
					Data:   map[string]any{"status": "alive", "clients": s.clients.Count()},
				})
			}
		}
	}()
}

func (s *Server) stopTickEmitter() {
	if s.tickCancel != nil {
		s.tickCancel()
		s.tickCancel = nil
	}
	s.tickWG.Wait()
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	now := time.Now()
	client := &Client{
		ID:           clientID,
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
		IPAddress:    r.RemoteAddr,
		RateLimiter:  NewClientRateLimiter(s.requestsPerMinute, s.maxConcurrent),
		State:        StateConnecting,
	}
	s.clients.Add(client)

	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	if err := s.greet(client); err != nil {
		s.logger.Error().Err(err).Str("clientId", clientID).Msg("Failed to send auth challenge")
		_ = conn.Close()
		s.clients.Remove(clientID)
		return
	}

	go s.handleClient(client)
}

// greet sends an authentication challenge, or accepts the client right away
// when no shared secret is configured.
func (s *Server) greet(client *Client) error {
	if !s.authHandler.Required() {
		s.clients.update(func() {
			client.Authenticated = true
			client.State = StateAuthenticated
		})
		return client.WriteJSON(AuthResult{Event: "auth.success", Success: true})
	}

	challenge, err := s.authHandler.GenerateChallenge()
	if err != nil {
		return err
	}
	s.clients.update(func() {
		client.Challenge = challenge
		client.State = StateAuthenticating
	})
	return client.WriteJSON(AuthChallenge{Event: "auth.challenge", Challenge: challenge})
}

// handleClient handles messages from a client
func (s *Server) handleClient(client *Client) {
	defer func() {
		_ = client.Conn.Close()
		s.clients.update(func() { client.State = StateDisconnected })
		s.clients.Remove(client.ID)
		s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("clientId", client.ID).Msg("WebSocket error")
			}
			return
		}

		s.clients.Touch(client.ID)
		if !s.handleMessage(client, message) {
			return
		}
	}
}

// handleMessage handles a single message from a client. It returns false
// when the connection must be closed.
func (s *Server) handleMessage(client *Client, message []byte) bool {
	var authResp AuthResponse
	if err := json.Unmarshal(message, &authResp); err == nil && authResp.Method == "auth.response" {
		return s.handleAuthMessage(client, authResp)
	}

	authenticated := false
	s.clients.update(func() { authenticated = client.Authenticated })
	if !authenticated {
		s.sendError(client, "", AuthenticationRequired, "Authentication required")
		return true
	}

	req, err := s.router.ParseRequest(message)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			s.sendError(client, "", rpcErr.Code, rpcErr.Message)
		} else {
			s.sendError(client, "", ParseError, err.Error())
		}
		return true
	}

	if s.shuttingDown() {
		s.sendError(client, req.ID, InternalError, "server is shutting down")
		return true
	}

	allowed, reason := client.RateLimiter.Acquire()
	if !allowed {
		code := RateLimitExceeded
		if reason == reasonConcurrent {
			code = TooManyConcurrent
		}
		s.sendError(client, req.ID, code, reason)
		return true
	}

	s.inFlightReqs.Add(1)
	go func() {
		defer client.RateLimiter.Release()
		defer s.inFlightReqs.Done()

		ctx := tracing.WithTraceID(context.Background(), tracing.NewTraceID())
		ctx = withClientID(ctx, client.ID)

		response := s.router.RouteRequest(ctx, req)
		if err := client.WriteJSON(response); err != nil {
			s.logger.Error().
				Err(err).
				Str("clientId", client.ID).
				Str("requestId", req.ID).
				Msg("Failed to send response")
		}
	}()
	return true
}

// handleRPC handles single-shot HTTP JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authHandler.CheckHeader(r.Header.Get(SecretHeader)) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.shuttingDown() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	req, err := s.router.ParseRequest(body)
	if err != nil {
		rpcErr := &RPCError{Code: ParseError, Message: err.Error()}
		errors.As(err, &rpcErr)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: "2.0", Error: rpcErr})
		return
	}

	traceID := r.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	ctx := tracing.WithTraceID(r.Context(), traceID)
	logger := tracing.LoggerFromContext(ctx, s.logger)
	logger.Info().
		Str("request_id", req.ID).
		Str("method", req.Method).
		Msg("Gateway received HTTP RPC request")

	s.inFlightReqs.Add(1)
	resp := s.router.RouteRequest(ctx, req)
	s.inFlightReqs.Done()

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("Failed to encode RPC response")
	}
}

// handleAuthMessage handles authentication messages. It returns false when
// the client exhausted its attempts.
func (s *Server) handleAuthMessage(client *Client, authResp AuthResponse) bool {
	var (
		result   AuthResult
		attempts int
	)
	s.clients.update(func() {
		result = s.authHandler.HandleAuthResponse(client, authResp.Signature)
		attempts = client.AuthAttempts
	})

	if err := client.WriteJSON(result); err != nil {
		s.logger.Error().Err(err).Str("clientId", client.ID).Msg("Failed to send auth result")
		return false
	}

	if result.Success {
		s.logger.Info().Str("clientId", client.ID).Msg("Client authenticated")
		return true
	}

	s.logger.Warn().
		Str("clientId", client.ID).
		Str("reason", result.Message).
		Msg("Authentication failed")
	return attempts < maxAuthAttempts
}

// sendError sends an error response to a client
func (s *Server) sendError(client *Client, requestID string, code int, message string) {
	if err := client.WriteJSON(errorResponse(requestID, code, message)); err != nil {
		s.logger.Error().
			Err(err).
			Str("clientId", client.ID).
			Msg("Failed to send error response")
	}
}

// Broadcaster returns the event broadcaster; its ForAgent streams are meant
// to be installed as agent notifiers.
func (s *Server) Broadcaster() *EventBroadcaster {
	return s.broadcaster
}

// RegisterMethod registers an RPC method handler
func (s *Server) RegisterMethod(name string, handler RequestHandler) error {
	return s.router.RegisterMethod(name, handler)
}

// UnregisterMethod unregisters an RPC method handler
func (s *Server) UnregisterMethod(name string) {
	s.router.UnregisterMethod(name)
}

// GetConnectedClients returns information about all connected clients
func (s *Server) GetConnectedClients() []ClientInfo {
	return s.clients.Infos()
}
