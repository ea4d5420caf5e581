package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/summit/client"
	"github.com/otherjamesbrown/summit/config"
	"github.com/otherjamesbrown/summit/pkg/events"
	"github.com/otherjamesbrown/summit/pkg/journal"
	"github.com/otherjamesbrown/summit/pkg/logging"
	"github.com/otherjamesbrown/summit/pkg/observability"
	"github.com/otherjamesbrown/summit/pkg/server"
	"github.com/otherjamesbrown/summit/pkg/upload"
)

// ServeCommandDeps holds dependencies for the serve command.
type ServeCommandDeps struct {
	Config     *config.Config
	LoadConfig func() (*config.Config, error)
	Registry   prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// DefaultServeDeps returns default dependencies for production use.
func DefaultServeDeps() *ServeCommandDeps {
	return &ServeCommandDeps{
		LoadConfig: config.LoadConfig,
		Registry:   prometheus.DefaultRegisterer,
		Gatherer:   prometheus.DefaultGatherer,
	}
}

// NewServeCommand creates the serve command.
func NewServeCommand(deps *ServeCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultServeDeps()
	}

	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the same-origin HTTP server in front of the report-source,
transcript and chat services.

Routes:
  GET    /api/meetings, /api/meetings/tags, /api/meetings/:id
  GET    /api/meetings/:id/script, /api/meetings/:id/export
  POST   /api/chat/query
  POST   /api/uploads
  GET    /api/uploads/current, /api/uploads/current/events (SSE)
  DELETE /api/uploads/current
  GET    /api/uploads/history
  GET    /healthz, /version, /metrics

Upload events are published to Redis when redis.address is set, and finished
uploads are journaled to Postgres when journal.dsn is set.

Examples:
  summit serve
  summit serve --address 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.Config
			if cfg == nil {
				loaded, err := deps.LoadConfig()
				if err != nil {
					return fmt.Errorf("loading configuration: %w", err)
				}
				cfg = loaded
			}
			if address != "" {
				cfg.Server.Address = address
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, deps, cfg)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Listen address (overrides server.address)")
	return cmd
}

func runServe(ctx context.Context, deps *ServeCommandDeps, cfg *config.Config) error {
	logger := logging.MustGlobal().With(logging.F("service", server.ServiceName))
	metrics := observability.NewMetrics(deps.Registry)

	opts := &client.Options{
		Timeout: cfg.Timeout,
		Logger:  logger,
		Metrics: metrics,
	}
	reports := client.NewReportSourceClient(cfg.ReportSourceURL, opts)
	scripts := client.NewScriptClient(cfg.TranscriptURL, opts)
	chatClient := client.NewChatClient(cfg.ChatURL, opts)

	coordOpts := []upload.Option{
		upload.WithLogger(logger),
		upload.WithObserver(server.MetricsObserver(metrics)),
	}

	if cfg.Redis.Enabled() {
		pub, err := events.NewPublisherFromConfig(events.PublisherConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		coordOpts = append(coordOpts, upload.WithObserver(pub), upload.WithNavigator(pub))
		logger.Info("Publishing upload events", logging.F("redis", cfg.Redis.Address))
	}

	var history server.HistorySource
	if cfg.Journal.Enabled() {
		j, err := journal.Open(cfg.Journal.DSN, logger)
		if err != nil {
			return err
		}
		defer j.Close()
		if err := j.EnsureSchema(ctx); err != nil {
			return err
		}
		if _, err := journal.RegisterDBStatsCollector(j.DB(), observability.Namespace, server.ServiceName, deps.Registry); err != nil {
			return fmt.Errorf("registering journal metrics: %w", err)
		}
		coordOpts = append(coordOpts, upload.WithObserver(j))
		history = j
		logger.Info("Journaling uploads to Postgres")
	}

	coord := upload.NewCoordinator(scripts, upload.Config{
		NavigateDelay:  cfg.Upload.NavigateDelay,
		ResetDelay:     cfg.Upload.ResetDelay,
		MaxTitleLength: cfg.Upload.MaxTitleLength,
		NavigateRoute:  cfg.Upload.NavigateRoute,
	}, coordOpts...)
	defer coord.Close()

	srv := server.New(server.Config{
		Address:         cfg.Server.Address,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, server.Deps{
		Reports:  reports,
		Scripts:  scripts,
		Chat:     chatClient,
		Uploads:  coord,
		History:  history,
		Metrics:  metrics,
		Gatherer: deps.Gatherer,
		Logger:   logger,
	})

	return srv.Run(ctx)
}
