package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/bookstore"
	"github.com/compozy/bookstore/engine/infra/monitoring"
	"github.com/compozy/bookstore/engine/infra/server/routes"
	"github.com/compozy/bookstore/pkg/config"
	"github.com/compozy/bookstore/pkg/logger"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	httpIdleTimeout       = 60 * time.Second
	defaultShutdownPeriod = 5 * time.Second
	hostAny               = "0.0.0.0"
	hostLoopback          = "127.0.0.1"
)

// Server exposes the data-access port over HTTP.
type Server struct {
	cfg             config.ServerConfig
	port            bookstore.Port
	monitoring      *monitoring.Service
	defaultStrategy book.ReadStrategy
	router          *gin.Engine
}

// NewServer builds the router eagerly so Handler can be used without Run.
// mon may be nil.
func NewServer(ctx context.Context, cfg *config.Config, port bookstore.Port, mon *monitoring.Service) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server configuration is required")
	}
	if port == nil {
		return nil, fmt.Errorf("data-access port is required")
	}
	strategy, err := book.ParseReadStrategy(cfg.Runtime.DefaultReadStrategy)
	if err != nil {
		return nil, fmt.Errorf("default read strategy: %w", err)
	}
	s := &Server{
		cfg:             cfg.Server,
		port:            port,
		monitoring:      mon,
		defaultStrategy: strategy,
	}
	s.router = s.buildRouter(ctx)
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then drains
// in-flight requests within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.FromContext(ctx)
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       httpIdleTimeout,
		// Requests keep the logger and config but are not cancelled by the
		// shutdown signal; Shutdown drains them instead.
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Starting HTTP server",
			"address", fmt.Sprintf("http://%s", s.Addr()),
			"api", fmt.Sprintf("http://%s%s", friendlyHost(s.cfg.Host, s.cfg.Port), routes.Base()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Shutting down HTTP server")
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownPeriod
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Info("HTTP server stopped")
		return nil
	})
	return g.Wait()
}

func friendlyHost(h string, port int) string {
	if h == hostAny || h == "::" || h == "" {
		h = hostLoopback
	}
	return net.JoinHostPort(h, strconv.Itoa(port))
}
