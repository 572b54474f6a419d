// Package adminhttp exposes the trading core over a small operator API:
// health, portfolio, risk status and the manual controls (signal injection,
// emergency close-all, reconcile, risk reset).
package adminhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"polytrader/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server hosts the operator API.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig lists the collaborators the API exposes.
type ServerConfig struct {
	Addr       string
	Engine     ExecutionEngine
	Risk       RiskGate
	Reconciler PositionReconciler
	Limits     LimitsSource
	Trades     TradeJournal
}

// NewServer builds the router with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil || cfg.Risk == nil {
		return nil, errors.New("adminhttp: engine and risk gate are required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	h, err := newHandler(cfg)
	if err != nil {
		return nil, err
	}
	h.register(router)

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler returns the underlying router, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("adminhttp: listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
