package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/username/holiday-calendar/internal/calendar"
)

// Querier answers date queries. *calendar.Engine implements it.
// Every endpoint is served from a single GetInfo call so that "today" is
// resolved once per request.
type Querier interface {
	GetInfo(ctx context.Context, date string) (*calendar.DayInfo, error)
}

// BoolResult is the body of /is_holiday and /is_workday
type BoolResult struct {
	Date   string `json:"date"`
	Result bool   `json:"result"`
}

// ErrorResult is the body of every failed request
type ErrorResult struct {
	Error string `json:"error"`
}

// Server exposes the query engine over HTTP
type Server struct {
	querier         Querier
	addr            string
	shutdownTimeout time.Duration
	logger          *zap.Logger

	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
}

// New creates a new HTTP server
func New(querier Querier, addr string, shutdownTimeout time.Duration, logger *zap.Logger) *Server {
	if querier == nil {
		panic("querier cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		querier:         querier,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// a cold query may wait on the remote fetch
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  (30 + 1) * time.Second,
	}
	return s
}

// Handler returns the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /is_holiday", s.handleIsHoliday)
	mux.HandleFunc("GET /is_workday", s.handleIsWorkday)
	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Addr returns the bound address once Start is listening, or the configured one
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start serves until Stop is called or SIGINT/SIGTERM arrives, then drains
// in-flight requests
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("HTTP server started",
		zap.String("addr", ln.Addr().String()))

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)

	case sig := <-sigChan:
		s.logger.Info("Received signal, shutting down",
			zap.String("signal", sig.String()))

	case <-s.ctx.Done():
		s.logger.Info("Server stop requested")
	}

	return s.shutdown()
}

// Stop asks a running Start to shut down
func (s *Server) Stop() {
	s.cancel()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleIsHoliday(w http.ResponseWriter, r *http.Request) {
	s.handleBool(w, r, func(info *calendar.DayInfo) bool { return info.IsHoliday })
}

func (s *Server) handleIsWorkday(w http.ResponseWriter, r *http.Request) {
	s.handleBool(w, r, func(info *calendar.DayInfo) bool { return info.IsWorkday })
}

func (s *Server) handleBool(w http.ResponseWriter, r *http.Request, pick func(*calendar.DayInfo) bool) {
	info, err := s.querier.GetInfo(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// info.Date is the normalized date, which tells the caller what "today" was
	writeJSON(w, http.StatusOK, BoolResult{Date: info.Date, Result: pick(info)})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.querier.GetInfo(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Query failed",
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.Error(err))
	} else {
		s.logger.Debug("Rejected query",
			zap.String("path", r.URL.Path),
			zap.String("query", r.URL.RawQuery),
			zap.Error(err))
	}
	writeJSON(w, status, ErrorResult{Error: err.Error()})
}

// StatusFor maps a query error to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, calendar.ErrInvalidDate):
		return http.StatusBadRequest
	case errors.Is(err, calendar.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}
