package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/CatherineChiramel/Squirrel/internal/frontier"
	"github.com/CatherineChiramel/Squirrel/internal/resource"
)

const (
	// DefaultBatchLimit caps how many resources a single batch request
	// may claim when no limit is configured.
	DefaultBatchLimit = 32

	// requestTimeout bounds the ledger and queue work behind a single
	// API call.
	requestTimeout = 10 * time.Second

	// shutdownTimeout is the grace period for in-flight requests once
	// the server context is cancelled.
	shutdownTimeout = 5 * time.Second
)

// Frontier is the capability surface the API serves. *frontier.Frontier
// satisfies it; tests install fakes.
type Frontier interface {
	// Submit admits references into the frontier.
	Submit(ctx context.Context, refs []string) error
	// NextBatch claims up to maxSize dispatchable resources.
	NextBatch(maxSize int) []*resource.Resource
	// Completion records a finished crawl and resubmits its children.
	Completion(ctx context.Context, crawled string, children []string) error
	// Snapshot gathers current queue and ledger figures.
	Snapshot(ctx context.Context) (frontier.Stats, error)
}

// Options configures the API server.
type Options struct {
	// Addr is the TCP listen address in "host:port" form.
	Addr string
	// BatchLimit caps the batch size a single request may claim.
	// Zero or negative selects DefaultBatchLimit.
	BatchLimit int
	// Logger receives request and lifecycle logs. Nil discards them.
	Logger *slog.Logger
}

// Server serves the frontier to crawl workers over HTTP.
//
// Design decision: the standard library mux carries the whole surface
// because:
// 1. Five fixed routes need no pattern matching beyond exact paths.
// 2. Method guards in the handlers keep the route table flat.
// 3. No middleware stack means nothing hides the request flow.
type Server struct {
	frontier   Frontier
	addr       string
	batchLimit int
	logger     *slog.Logger

	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates a server for the given frontier. It does not start
// listening; call Start.
func NewServer(f Frontier, opts Options) *Server {
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = DefaultBatchLimit
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		frontier:   f,
		addr:       opts.Addr,
		batchLimit: opts.BatchLimit,
		logger:     opts.Logger,
	}
}

// Handler returns the route table. It is exposed separately from Start
// so tests can drive the handlers through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/submit", s.handleSubmit)
	mux.HandleFunc("/api/v1/batch", s.handleBatch)
	mux.HandleFunc("/api/v1/completion", s.handleCompletion)
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// Start binds the listen address and begins serving in the background.
// Binding happens synchronously so a bad address fails here rather than
// in a goroutine. The server shuts down when ctx is cancelled, waiting
// up to shutdownTimeout for in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("api server shutdown failed", "error", err)
		}
	}()

	s.logger.Info("api server listening", "addr", ln.Addr().String())
	return nil
}

// Addr reports the bound listen address once Start has succeeded. It
// differs from the configured address when the port was 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}
