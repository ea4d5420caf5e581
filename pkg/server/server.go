// Package server exposes the same-origin HTTP surface: proxy routes to the
// report-source, transcript and chat services, the upload coordinator, and
// health, version and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/otherjamesbrown/summit/pkg/chat"
	"github.com/otherjamesbrown/summit/pkg/journal"
	"github.com/otherjamesbrown/summit/pkg/logging"
	"github.com/otherjamesbrown/summit/pkg/meeting"
	"github.com/otherjamesbrown/summit/pkg/observability"
	"github.com/otherjamesbrown/summit/pkg/upload"
)

// ServiceName identifies the server in logs and /version.
const ServiceName = "summit-server"

// Default limits.
const (
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxUploadBytes  = 512 << 20
)

// ReportSource is the report-source surface the proxy needs.
type ReportSource interface {
	GetMeetingsRaw(ctx context.Context) (json.RawMessage, error)
	GetMeetingDetailRaw(ctx context.Context, id string) (json.RawMessage, error)
	GetTagsRaw(ctx context.Context) (json.RawMessage, error)
	GetMeetingDetail(ctx context.Context, id string) (*meeting.Meeting, error)
}

// ScriptSource is the transcript surface the proxy needs.
type ScriptSource interface {
	GetMeetingScriptRaw(ctx context.Context, id string) (json.RawMessage, error)
	GetMeetingScript(ctx context.Context, id string) (*meeting.Transcript, error)
}

// HistorySource lists finished uploads. *journal.Journal satisfies it.
type HistorySource interface {
	History(ctx context.Context, opts journal.HistoryOptions) ([]journal.Entry, error)
}

// Config holds server settings.
type Config struct {
	Address         string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// Deps holds the collaborators behind the routes. History, Metrics and
// Gatherer are optional.
type Deps struct {
	Reports  ReportSource
	Scripts  ScriptSource
	Chat     chat.Querier
	Uploads  *upload.Coordinator
	History  HistorySource
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Logger   logging.Logger
	Now      func() time.Time
}

// Server is the gin engine plus its http.Server.
type Server struct {
	cfg    Config
	deps   Deps
	logger logging.Logger
	engine *gin.Engine
}

// New builds the engine and registers every route.
func New(cfg Config, deps Deps) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.MaxMultipartMemory = 32 << 20

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(logging.F("component", "http_server")),
		engine: engine,
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.Use(requestID(), recovery(s.logger), requestLogger(s.logger), cors())

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/version", gin.WrapF(versionHandler()))
	s.engine.GET("/metrics", metricsHandler(s.deps.Gatherer))

	api := s.engine.Group("/api", proxyMetrics(s.deps.Metrics))

	meetings := api.Group("/meetings")
	handle(meetings, http.MethodGet, "", s.handleMeetings)
	handle(meetings, http.MethodGet, "/tags", s.handleTags)
	handle(meetings, http.MethodGet, "/:id", s.handleMeetingDetail)
	handle(meetings, http.MethodGet, "/:id/script", s.handleMeetingScript)
	handle(meetings, http.MethodGet, "/:id/export", s.handleMeetingExport)

	handle(api, http.MethodPost, "/chat/query", s.handleChatQuery)

	uploads := api.Group("/uploads")
	handle(uploads, http.MethodPost, "", s.handleStartUpload)
	handle(uploads, http.MethodGet, "/current", s.handleCurrentUpload)
	// The GET above already answers the preflight for /current.
	uploads.DELETE("/current", s.handleDismissUpload)
	handle(uploads, http.MethodGet, "/current/events", s.handleUploadEvents)
	handle(uploads, http.MethodGet, "/history", s.handleUploadHistory)
}

// handle registers h and a preflight handler on the same path.
func handle(g *gin.RouterGroup, method, path string, h gin.HandlerFunc) {
	g.Handle(method, path, h)
	g.OPTIONS(path, preflight)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", logging.F("address", s.cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listening on %s: %w", s.cfg.Address, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("HTTP server shutting down", logging.F("timeout", s.cfg.ShutdownTimeout))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
