// Package server exposes one ledger engine over HTTP/JSON.
//
// The engine has a single owner; every handler takes the server mutex
// before touching it. Writes are attributed to the OID in the
// X-Requester-OID header and stamped with the server clock.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roach88/chainledger/internal/core"
	"github.com/roach88/chainledger/internal/engine"
)

// RequesterHeader carries the requester OID on every write.
const RequesterHeader = "X-Requester-OID"

// Server serves the v1 API for one engine.
type Server struct {
	mu     sync.Mutex
	engine *engine.Engine
	logger *zap.Logger
	ids    engine.IDGenerator
	now    func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator sets how ids are assigned to records posted without one.
func WithIDGenerator(g engine.IDGenerator) Option {
	return func(s *Server) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithClock sets the clock used for request contexts and missing record
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps e. The server does not own e; callers shut it down.
func New(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine: e,
		logger: zap.NewNop(),
		ids:    engine.UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if g := s.engine.Gatherer(); g != nil {
		h := promhttp.HandlerFor(g, promhttp.HandlerOpts{})
		r.GET("/metrics", gin.WrapH(h))
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/records", s.appendRecord)
		v1.POST("/records/batch", s.appendBatch)
		v1.GET("/records", s.query)
		v1.GET("/records/by-id/:id", s.getByID)
		v1.GET("/records/:hash", s.getByHash)

		v1.GET("/verify", s.verify)
		v1.GET("/storage/verify", s.verifyStorage)

		v1.POST("/grants", s.grant)
		v1.DELETE("/grants", s.revoke)
		v1.GET("/grants/:subject", s.listGrants)
		v1.GET("/access", s.checkAccess)

		v1.GET("/modules", s.modules)
	}
	return r
}

// Run serves on addr until ctx is cancelled, then shuts the HTTP server
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("ledger HTTP listening", zap.String("addr", addr), zap.String("ledger", s.engine.ID()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP shutdown error", zap.Error(err))
		return err
	}
	s.logger.Info("ledger HTTP stopped")
	return nil
}

func (s *Server) requestContext(c *gin.Context) core.RequestContext {
	return core.RequestContext{
		RequesterOID: c.GetHeader(RequesterHeader),
		Timestamp:    core.NowMillis(s.now()),
	}
}

// fill assigns an id and timestamp to records submitted without them.
func (s *Server) fill(rec *core.Record) {
	if rec.ID == "" {
		rec.ID = s.ids.Generate()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = core.NowMillis(s.now())
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
