package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"rentalchain/core"
	"rentalchain/observability"
	"rentalchain/observability/logging"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20

	requestIDHeader = "X-Request-ID"

	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 15 * time.Second
	shutdownTimeout     = 5 * time.Second
)

// ServerConfig tunes the JSON-RPC listener.
type ServerConfig struct {
	// AuthToken gates mutating methods behind a bearer token. With neither
	// AuthToken nor JWT configured mutating methods are disabled.
	AuthToken string
	// JWT additionally accepts HMAC-signed bearer tokens carrying the
	// submit scope.
	JWT JWTConfig
	// RateLimit is the sustained requests per second allowed per client on
	// mutating methods. Zero disables throttling.
	RateLimit float64
	RateBurst int
	// TrustProxyHeaders honours X-Forwarded-For and X-Real-IP when
	// identifying clients.
	TrustProxyHeaders bool
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	Logger            *slog.Logger
}

// Server exposes a rentals node over JSON-RPC 2.0.
type Server struct {
	node    *core.Node
	cfg     ServerConfig
	logger  *slog.Logger
	methods map[string]method

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	serverMu   sync.Mutex
	httpServer *http.Server
}

type handlerFunc func(ctx context.Context, params []json.RawMessage) (interface{}, *RPCError)

type method struct {
	module   string
	mutating bool
	handle   handlerFunc
}

// NewServer wires the method table for node.
func NewServer(node *core.Node, cfg ServerConfig) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	s := &Server{
		node:     node,
		cfg:      cfg,
		logger:   logging.Component(cfg.Logger, "rpc"),
		limiters: make(map[string]*rate.Limiter),
	}
	s.methods = s.routes()
	return s
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, rpcErr *RPCError) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// Handler returns the HTTP routes served by the node.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if s.cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Post("/", s.handle)
	r.Get("/healthz", s.health)
	r.Get("/ws/events", s.handleEventsWS)
	return otelhttp.NewHandler(r, "rentals-rpc")
}

// Serve accepts connections on listener until Shutdown is called.
func (s *Server) Serve(listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
	s.serverMu.Lock()
	s.httpServer = srv
	s.serverMu.Unlock()
	s.logger.Info("json-rpc server listening", slog.String("addr", listener.Addr().String()))
	return srv.Serve(listener)
}

// Start listens on addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(listener) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Shutdown gracefully stops the listener started by Serve.
func (s *Server) Shutdown(ctx context.Context) error {
	s.serverMu.Lock()
	srv := s.httpServer
	s.serverMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"height": s.node.Chain().Height(),
	})
}

// statusRecorder captures the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, requestID)
	w.Header().Set("Content-Type", "application/json")
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	module, methodName := "", ""
	defer func() {
		observability.RPC().Observe(module, methodName, rec.status, time.Since(start))
	}()

	reader := http.MaxBytesReader(rec, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()
	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(rec, status, nil, &RPCError{Code: codeInvalidRequest, Message: message, Data: err.Error()})
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(rec, http.StatusBadRequest, nil, &RPCError{Code: codeInvalidRequest, Message: "request body required"})
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(rec, http.StatusBadRequest, nil, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()})
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(rec, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC})
		return
	}
	if req.Method == "" {
		writeError(rec, http.StatusBadRequest, req.ID, &RPCError{Code: codeInvalidRequest, Message: "method required"})
		return
	}
	m, ok := s.methods[req.Method]
	if !ok {
		writeError(rec, http.StatusNotFound, req.ID, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("unknown method %s", req.Method)})
		return
	}
	module, methodName = m.module, req.Method
	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
		attribute.String("rentals.request_id", requestID),
	)

	if m.mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(rec, http.StatusUnauthorized, req.ID, authErr)
			return
		}
		if !s.allowSource(s.clientSource(r)) {
			observability.RPC().RecordThrottle(m.module, "rate_limit")
			writeError(rec, http.StatusTooManyRequests, req.ID, &RPCError{Code: codeRateLimited, Message: "rate limit exceeded"})
			return
		}
	}

	result, rpcErr := m.handle(r.Context(), req.Params)
	if rpcErr != nil {
		status := rpcErr.status
		if status == 0 {
			status = http.StatusBadRequest
		}
		s.logger.Info("rpc call failed",
			slog.String("request_id", requestID),
			slog.String("method", req.Method),
			slog.Int("code", rpcErr.Code),
			slog.String("error", rpcErr.Message))
		writeError(rec, status, req.ID, rpcErr)
		return
	}
	s.logger.Debug("rpc call served",
		slog.String("request_id", requestID),
		slog.String("method", req.Method),
		slog.Duration("duration", time.Since(start)))
	writeResult(rec, req.ID, result)
}

func (s *Server) clientSource(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func (s *Server) allowSource(source string) bool {
	if s.cfg.RateLimit <= 0 {
		return true
	}
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
		s.limiters[source] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}
