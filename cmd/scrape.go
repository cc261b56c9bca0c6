package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	gcpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/propfetch/rightmove-scraper/internal/api"
	"github.com/propfetch/rightmove-scraper/internal/archive"
	archivegcs "github.com/propfetch/rightmove-scraper/internal/archive/gcs"
	archivelocal "github.com/propfetch/rightmove-scraper/internal/archive/local"
	"github.com/propfetch/rightmove-scraper/internal/clock/system"
	"github.com/propfetch/rightmove-scraper/internal/config"
	iduuid "github.com/propfetch/rightmove-scraper/internal/id/uuid"
	"github.com/propfetch/rightmove-scraper/internal/logging"
	"github.com/propfetch/rightmove-scraper/internal/metrics"
	"github.com/propfetch/rightmove-scraper/internal/page"
	"github.com/propfetch/rightmove-scraper/internal/publisher/pubsub"
	"github.com/propfetch/rightmove-scraper/internal/runner"
	"github.com/propfetch/rightmove-scraper/internal/scraper"
	sinkfs "github.com/propfetch/rightmove-scraper/internal/sink/fs"
	sinkpg "github.com/propfetch/rightmove-scraper/internal/sink/postgres"
	"github.com/propfetch/rightmove-scraper/internal/tasks"
	"github.com/propfetch/rightmove-scraper/internal/validate"
	"github.com/propfetch/rightmove-scraper/internal/webhook"
)

// newScrapeCmd creates the 'scrape' subcommand, which executes one run.
func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Runs one extraction pass over the configured targets",
		RunE:  runScrapeCommand,
	}
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID, err := iduuid.New().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	logger.Info("starting run", zap.String("run_id", runID), zap.String("source", cfg.Run.Source))

	metrics.Init()
	recorder := metrics.NewRecorder(cfg.Metrics.MemorySampleInterval)
	clock := system.New()

	sink, closeSink, err := buildSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init sink: %w", err)
	}
	defer closeSink()

	snapshots, err := buildArchive(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init archive: %w", err)
	}

	dispatcher := webhook.NewDispatcher(
		cfg.Webhooks.Subscriptions,
		webhook.NewHTTPTransport(http.DefaultClient),
		sink,
		webhook.Config{
			RetryCount: cfg.Webhooks.RetryCount,
			BaseDelay:  cfg.Webhooks.BaseDelay,
			Timeout:    cfg.Webhooks.Timeout,
			RunID:      runID,
		},
		logger,
	)

	orchestrator := scraper.NewOrchestrator(
		[]scraper.Strategy{scraper.NewRightmove(cfg.Scraper.WaitSelectorWindow)},
		validate.New(clock),
		recorder,
		snapshots,
		cfg.Scraper.RetryDelays,
		logger,
	)

	browser, err := page.NewBrowser(page.Config{
		UserAgent:  cfg.Browser.UserAgent,
		Headless:   cfg.Browser.Headless,
		NavTimeout: cfg.Browser.NavTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("init browser: %w", err)
	}
	defer func() { _ = browser.Close(context.Background()) }()

	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init publisher: %w", err)
	}

	if cfg.Server.Listen != "" {
		api.NewServer(cfg.Server.Listen, recorder, runID, logger).Start(ctx)
	}

	taskList, err := buildTasks(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build tasks: %w", err)
	}
	logger.Info("tasks resolved", zap.Int("count", len(taskList)))

	run := runner.New(
		orchestrator,
		recorder,
		sink,
		dispatcher,
		browser,
		publisher,
		clock,
		runner.Config{Topic: cfg.PubSub.Topic},
		logger,
	)

	snapshot, err := run.Run(ctx, taskList)
	logger.Info("run finished",
		zap.String("run_id", runID),
		zap.Int64("duration_ms", snapshot.DurationMs),
		zap.Float64("success_rate", snapshot.SuccessRate),
		zap.Int64("items", snapshot.Requests.Total),
	)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

func buildSink(ctx context.Context, cfg config.Config) (scraper.Sink, func(), error) {
	switch cfg.Sink.Kind {
	case "postgres":
		sink, err := sinkpg.New(ctx, sinkpg.Config{
			DSN:           cfg.Sink.DSN,
			ListingsTable: cfg.Sink.ListingsTable,
			ReportsTable:  cfg.Sink.ReportsTable,
		})
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	default:
		sink, err := sinkfs.New(cfg.Sink.Dir)
		if err != nil {
			return nil, nil, err
		}
		return sink, func() {}, nil
	}
}

func buildArchive(ctx context.Context, cfg config.Config) (archive.Provider, error) {
	switch cfg.Archive.Kind {
	case "local":
		return archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.Dir})
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return archivegcs.New(client, archivegcs.Config{
			Bucket: cfg.Archive.Bucket,
			Prefix: cfg.Archive.Prefix,
		})
	default:
		return archive.NoOp{}, nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (runner.Publisher, error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.Topic == "" {
		return nil, nil
	}
	client, err := gcpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return pubsub.New(client), nil
}

func buildTasks(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]scraper.Task, error) {
	taskList := tasks.FromURLs(cfg.Run.StartURLs, cfg.Run.Source)

	if len(cfg.Run.SearchURLs) > 0 {
		discoverer := tasks.NewDiscoverer(tasks.DiscoverConfig{
			UserAgent: cfg.Browser.UserAgent,
			MaxTasks:  cfg.Run.MaxItems,
			Source:    cfg.Run.Source,
		}, logger)
		discovered, err := discoverer.Discover(ctx, cfg.Run.SearchURLs)
		if err != nil {
			return nil, err
		}
		taskList = append(taskList, discovered...)
	}

	if cfg.Run.MaxItems > 0 && len(taskList) > cfg.Run.MaxItems {
		taskList = taskList[:cfg.Run.MaxItems]
	}
	return taskList, nil
}
