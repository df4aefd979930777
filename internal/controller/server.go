// Package controller wires the meetscribe HTTP API.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"meetscribe/internal/controller/handlers"
	"meetscribe/internal/controller/middleware"
)

// Options configures the HTTP server.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	SubmitRateLimit float64
	SubmitRateBurst int
	// ReadTimeout bounds reading a whole request, upload included.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing a response once its request has been read.
	WriteTimeout time.Duration
	// Metrics is served on GET /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server is the HTTP server for the meetscribe API.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// New creates a new server.
func New(h *handlers.Handlers, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Minute
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           Routes(h, opts),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       opts.ReadTimeout,
			// net/http starts the write deadline once headers are read, so it must
			// cover the body upload too.
			WriteTimeout: opts.ReadTimeout + opts.WriteTimeout,
		},
		shutdownTimeout: opts.ShutdownTimeout,
	}
}

// Routes builds the request router with its middleware chain.
func Routes(h *handlers.Handlers, opts Options) http.Handler {
	limiter := middleware.NewRateLimiter(opts.SubmitRateLimit, opts.SubmitRateBurst)
	submit := limiter.Middleware()(middleware.MaxBytes(opts.MaxUploadBytes)(http.HandlerFunc(h.SubmitJob)))

	mux := http.NewServeMux()

	mux.Handle("POST /jobs", submit)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /jobs/{id}/context", h.GetContext)
	mux.HandleFunc("POST /search", h.Search)

	// Paths kept for existing clients
	mux.Handle("POST /process-audio/", submit)
	mux.HandleFunc("GET /job-status/{id}", h.GetJob)
	mux.HandleFunc("POST /search/", h.Search)

	mux.HandleFunc("GET /health", h.Health)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	return middleware.RequestID(middleware.Logging(opts.Logger)(mux))
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
