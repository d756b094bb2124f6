package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harun/toolgate/internal/metrics"
	"github.com/harun/toolgate/internal/tracing"
	"github.com/harun/toolgate/pkg/toolexecutor"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const (
	transportHTTP      = "http"
	transportWebSocket = "ws"

	maxRequestBytes = 1 << 20
)

// Server exposes a tool registry over JSON-RPC 2.0 on HTTP and WebSocket.
type Server struct {
	addr         string
	tickInterval time.Duration

	server   *http.Server
	listener net.Listener
	upgrader websocket.Upgrader

	tools       *toolexecutor.Registry
	metrics     *metrics.Metrics
	clients     *ClientRegistry
	router      *RPCRouter
	authHandler *AuthHandler
	broadcaster *EventBroadcaster
	logger      zerolog.Logger

	clientRequestsPerMinute int
	clientMaxConcurrent     int

	baseCtx    context.Context
	cancelBase context.CancelFunc

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
	tickCancel     context.CancelFunc
	tickWG         sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host string
	// Port 0 binds an ephemeral port; see Server.Addr.
	Port int
	// SharedSecret enables authentication when set.
	SharedSecret string
	// AllowedOrigins restricts WebSocket origins. Empty allows all.
	AllowedOrigins []string
	// TickInterval paces lifecycle tick events. Zero disables them.
	TickInterval time.Duration

	ClientRequestsPerMinute int
	ClientMaxConcurrent     int

	Tools   *toolexecutor.Registry
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// NewServer creates a new Gateway Server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Tools == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	logger := cfg.Logger.With().Str("component", "gateway").Logger()
	clients := NewClientRegistry()
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr:                    net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		tickInterval:            cfg.TickInterval,
		tools:                   cfg.Tools,
		metrics:                 cfg.Metrics,
		clients:                 clients,
		router:                  NewRPCRouter(),
		authHandler:             NewAuthHandler(cfg.SharedSecret),
		broadcaster:             NewEventBroadcaster(clients, logger),
		logger:                  logger,
		clientRequestsPerMinute: cfg.ClientRequestsPerMinute,
		clientMaxConcurrent:     cfg.ClientMaxConcurrent,
		baseCtx:                 baseCtx,
		cancelBase:              cancel,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(cfg.AllowedOrigins),
		},
	}

	s.registerBuiltinMethods()

	return s, nil
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Handler returns the gateway's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/rpc", s.handleRPC)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting Gateway Server")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	s.startTickEmitter()
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop drains in-flight requests until ctx expires, then closes every
// connection.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down Gateway Server")
	s.stopTickEmitter()

	s.broadcaster.Broadcast("server.shutdown", map[string]interface{}{
		"message": "Server is shutting down",
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
		s.logger.Warn().Msg("Shutdown timeout reached, cancelling in-flight requests")
	}
	s.cancelBase()

	for _, client := range s.clients.All(false) {
		_ = client.Conn.Close()
	}

	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
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

// beginRequest registers an in-flight request unless shutdown has started.
// The check and the Add share the read lock so Stop, which sets the flag
// under the write lock, never waits on a counter that can still grow.
func (s *Server) beginRequest() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	if s.isShuttingDown {
		return false
	}
	s.inFlightReqs.Add(1)
	return true
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
					Data: map[string]interface{}{
						"tools":   s.tools.Count(),
						"clients": s.clients.Count(),
					},
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := http.StatusOK
	body := map[string]interface{}{
		"status":  "ok",
		"tools":   s.tools.Count(),
		"clients": s.clients.Count(),
	}
	if s.shuttingDown() {
		status = http.StatusServiceUnavailable
		body["status"] = "shutting_down"
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// requestContext derives the context one RPC call runs under.
func (s *Server) requestContext(parent context.Context, traceID, requestID string) (context.Context, zerolog.Logger) {
	ctx := parent
	if traceID != "" {
		ctx = tracing.WithTraceID(ctx, traceID)
	}
	ctx = tracing.NewRequestContext(ctx, requestID)
	logger := tracing.LoggerFromContext(ctx, s.logger)
	return logger.WithContext(ctx), logger
}

func (s *Server) countRequest(method, transport string) {
	if s.metrics != nil {
		s.metrics.GatewayRequestsTotal.WithLabelValues(method, transport).Inc()
	}
}

// handleRPC handles single-shot HTTP JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authHandler.VerifySecret(r.Header.Get(SecretHeader)) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !s.beginRequest() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.inFlightReqs.Done()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	req, err := s.router.ParseRequest(body)
	if err != nil {
		rpcErr, ok := err.(*RPCError)
		if !ok {
			rpcErr = &RPCError{Code: ParseError, Message: err.Error()}
		}
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: "2.0", Error: rpcErr})
		return
	}

	ctx, logger := s.requestContext(withCaller(r.Context(), caller{transport: transportHTTP}), r.Header.Get("X-Trace-Id"), req.ID)
	w.Header().Set("X-Trace-Id", tracing.GetTraceID(ctx))
	logger.Debug().Str("method", req.Method).Msg("Gateway received HTTP RPC request")
	s.countRequest(req.Method, transportHTTP)

	resp := s.router.RouteRequest(ctx, req)

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Msg("Failed to encode RPC response")
	}
}

// handleWebSocket upgrades a connection and greets it with either
// auth.success or an auth.challenge.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	presented := r.Header.Get(SecretHeader)
	if presented != "" && !s.authHandler.VerifySecret(presented) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, err := gonanoid.New()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate client id")
		_ = conn.Close()
		return
	}
	now := time.Now()
	client := &Client{
		ID:           clientID,
		Conn:         conn,
		ConnectedAt:  now,
		LastActivity: now,
		IPAddress:    r.RemoteAddr,
		RateLimiter:  NewClientRateLimiterWithLimits(s.clientRequestsPerMinute, s.clientMaxConcurrent),
		State:        StateConnecting,
	}

	s.clients.Add(client)
	if s.metrics != nil {
		s.metrics.GatewayConnectionsActive.Inc()
	}

	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	if err := s.greet(client, presented != "" || !s.authHandler.Enabled()); err != nil {
		s.logger.Error().Err(err).Str("clientId", clientID).Msg("Failed to greet client")
		s.disconnect(client)
		return
	}

	go s.handleClient(client)
}

func (s *Server) greet(client *Client, preAuthenticated bool) error {
	if preAuthenticated {
		markAuthenticated(client)
		return client.WriteJSON(AuthResult{Event: "auth.success", Success: true})
	}

	challenge, err := s.authHandler.GenerateChallenge()
	if err != nil {
		return err
	}
	client.Challenge = challenge
	client.State = StateAuthenticating

	return client.WriteJSON(AuthChallenge{
		Event:     "auth.challenge",
		Challenge: challenge,
	})
}

func (s *Server) disconnect(client *Client) {
	_ = client.Conn.Close()
	if !s.clients.Remove(client.ID) {
		return
	}
	client.State = StateDisconnected
	if s.metrics != nil {
		s.metrics.GatewayConnectionsActive.Dec()
	}
	s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
}

// handleClient reads messages from a client until the connection closes.
func (s *Server) handleClient(client *Client) {
	defer s.disconnect(client)

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Str("clientId", client.ID).Msg("WebSocket read error")
			}
			return
		}

		s.clients.Touch(client.ID)
		if !s.handleMessage(client, message) {
			return
		}
	}
}

// handleMessage handles one client frame and reports whether the connection
// should stay open.
func (s *Server) handleMessage(client *Client, message []byte) bool {
	var authResp AuthResponse
	if err := json.Unmarshal(message, &authResp); err == nil && authResp.Method == "auth.response" {
		return s.handleAuthMessage(client, authResp)
	}

	if !client.Authenticated {
		s.sendError(client, "", AuthenticationRequired, "Authentication required")
		return true
	}

	req, err := s.router.ParseRequest(message)
	if err != nil {
		if rpcErr, ok := err.(*RPCError); ok {
			s.sendError(client, "", rpcErr.Code, rpcErr.Message)
		} else {
			s.sendError(client, "", ParseError, err.Error())
		}
		return true
	}

	if !s.beginRequest() {
		s.sendError(client, req.ID, ServerShuttingDown, "Server is shutting down")
		return true
	}
	if err := client.RateLimiter.Acquire(); err != nil {
		s.inFlightReqs.Done()
		s.sendError(client, req.ID, rateLimitCode(err), err.Error())
		return true
	}

	go func() {
		defer client.RateLimiter.Release()
		defer s.inFlightReqs.Done()

		base := withCaller(s.baseCtx, caller{clientID: client.ID, transport: transportWebSocket})
		ctx, logger := s.requestContext(base, "", req.ID)
		s.countRequest(req.Method, transportWebSocket)

		response := s.router.RouteRequest(ctx, req)
		if err := client.WriteJSON(response); err != nil {
			logger.Error().
				Err(err).
				Str("clientId", client.ID).
				Msg("Failed to send response")
		}
	}()
	return true
}

func (s *Server) handleAuthMessage(client *Client, authResp AuthResponse) bool {
	result := s.authHandler.HandleAuthResponse(client, authResp.Signature)

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
	return client.AuthAttempts < MaxAuthAttempts
}

// sendError sends an error response to a client
func (s *Server) sendError(client *Client, requestID string, code int, message string) {
	response := RPCResponse{
		ID:      requestID,
		JSONRPC: "2.0",
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}

	if err := client.WriteJSON(response); err != nil {
		s.logger.Error().
			Err(err).
			Str("clientId", client.ID).
			Msg("Failed to send error response")
	}
}

// ToolHooks returns hooks that stream tool lifecycle events to connected
// WebSocket clients. Pass them to tools served by this gateway.
func (s *Server) ToolHooks() toolexecutor.Hooks {
	return s.broadcaster.ToolHooks()
}

// Broadcast broadcasts an event to all authenticated clients
func (s *Server) Broadcast(event string, data interface{}) {
	s.broadcaster.Broadcast(event, data)
}

// RegisterMethod registers an additional RPC method handler
func (s *Server) RegisterMethod(name string, handler RequestHandler) error {
	return s.router.RegisterMethod(name, handler)
}

// Methods lists the registered RPC methods.
func (s *Server) Methods() []string {
	return s.router.GetMethods()
}

// GetConnectedClients returns information about all connected clients
func (s *Server) GetConnectedClients() []ClientInfo {
	return s.clients.Snapshot()
}
