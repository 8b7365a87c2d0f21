// Package httpapi exposes the session manager over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cryptofolio-auth/internal/logging"
	"github.com/dmitrijs2005/cryptofolio-auth/internal/server/services"
)

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration
}

type Server struct {
	address         string
	auth            *services.AuthService
	cookies         *RefreshCookie
	limiter         *RateLimiter
	allowedOrigins  []string
	shutdownTimeout time.Duration
	logger          logging.Logger
	startedAt       time.Time
}

func NewServer(address string, l logging.Logger, svc *services.AuthService, cookies *RefreshCookie, opts Options) *Server {
	return &Server{
		address:         address,
		auth:            svc,
		cookies:         cookies,
		limiter:         NewRateLimiter(opts.RateLimitPerMinute, time.Minute),
		allowedOrigins:  opts.AllowedOrigins,
		shutdownTimeout: opts.ShutdownTimeout,
		logger:          l.With("module", "http_server"),
		startedAt:       time.Now(),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	return cors(s.allowedOrigins, s.accessLog(mux))
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.limiter.Sweep(ctx)

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
