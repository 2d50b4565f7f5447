package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jfourny/profilescout/internal/blob"
	"github.com/jfourny/profilescout/internal/config"
	"github.com/jfourny/profilescout/internal/crawler"
	"github.com/jfourny/profilescout/internal/extract"
	"github.com/jfourny/profilescout/internal/fetch"
	"github.com/jfourny/profilescout/internal/logging"
	"github.com/jfourny/profilescout/internal/metrics"
	"github.com/jfourny/profilescout/internal/ops"
	"github.com/jfourny/profilescout/internal/publish"
	"github.com/jfourny/profilescout/internal/sink"
	"github.com/jfourny/profilescout/internal/store"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run one crawl from the configured seed search URL",
	RunE:  runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer, err := buildRenderer(cfg, logger)
	if err != nil {
		return err
	}
	defer renderer.Close()

	recordSink, closeSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	archiver, err := buildArchiver(ctx, cfg, logger)
	if err != nil {
		return err
	}

	coordinator := crawler.NewCoordinator(
		crawler.CoordinatorConfig{
			SeedURL:  cfg.Crawl.SeedURL,
			MaxPages: cfg.Crawl.MaxPages,
		},
		renderer,
		extract.NewSearchParser(),
		extract.NewProfileExtractor(cfg.Crawl.CountryKeyword, cfg.Crawl.FieldKeywords),
		recordSink,
		archiver,
		crawler.NewExponentialRetryPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, cfg.Retry.MaxDelay),
		crawler.NewThrottle(cfg.Throttle.Floor, cfg.Throttle.Ceiling),
		nil,
		nil,
		logger.Named("coordinator"),
	)

	if cfg.Ops.Port > 0 {
		opsServer := ops.NewServer(cfg.Ops.Port, coordinator.Stats(), logger.Named("ops"))
		go func() {
			if err := opsServer.Start(); err != nil {
				logger.Error("ops server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := opsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("ops server shutdown", zap.Error(err))
			}
		}()
	}

	summary, err := coordinator.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("crawl run: %w", err)
	}
	logger.Info("crawl complete",
		zap.String("run_id", summary.RunID),
		zap.Int64("profiles_emitted", summary.ProfilesEmitted),
		zap.Int64("profiles_filtered", summary.ProfilesFiltered),
		zap.Int64("permanent_failures", summary.PermanentFailures),
	)
	return nil
}

func buildRenderer(cfg config.Config, logger *zap.Logger) (*fetch.Client, error) {
	var probe *fetch.Probe
	if cfg.Probe.Enabled {
		probe = fetch.NewProbe(fetch.ProbeConfig{Timeout: cfg.Probe.Timeout})
	}
	headless, err := fetch.NewHeadlessRenderer(fetch.HeadlessConfig{
		NavTimeout: cfg.Headless.NavTimeout,
		HostQPS:    cfg.Headless.HostQPS,
	}, logger.Named("headless"))
	if err != nil {
		return nil, fmt.Errorf("start headless renderer: %w", err)
	}
	detector := fetch.NewHeuristic(cfg.Probe.MinHTMLBytes)
	agents := fetch.NewAgentRotator(cfg.Crawl.UserAgents)
	return fetch.NewClient(probe, headless, detector, agents, logger.Named("fetch")), nil
}

func buildSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.RecordSink, func(), error) {
	jsonl, err := sink.NewJSONLWriter(cfg.Output.Path)
	if err != nil {
		return nil, nil, err
	}

	sinks := []crawler.RecordSink{jsonl}
	closers := []func(){func() {
		if err := jsonl.Close(); err != nil {
			logger.Warn("close jsonl writer", zap.Error(err))
		}
	}}

	if cfg.DB.DSN != "" {
		pg, err := store.NewProfileStore(ctx, store.ProfileStoreConfig{
			DSN:   cfg.DB.DSN,
			Table: cfg.DB.Table,
		})
		if err != nil {
			runClosers(closers)
			return nil, nil, err
		}
		sinks = append(sinks, pg)
		closers = append(closers, pg.Close)
	}

	if cfg.PubSub.ProjectID != "" {
		pub, err := publish.NewPublisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID, logger.Named("publish"))
		if err != nil {
			runClosers(closers)
			return nil, nil, err
		}
		sinks = append(sinks, pub)
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("close pubsub publisher", zap.Error(err))
			}
		})
	}

	if len(sinks) == 1 {
		return sinks[0], func() { runClosers(closers) }, nil
	}
	return sink.NewFanout(sinks...), func() { runClosers(closers) }, nil
}

func buildArchiver(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Archiver, error) {
	var provider blob.Provider
	switch cfg.Archive.Backend {
	case "":
		return nil, nil
	case "local":
		p, err := blob.NewLocalProvider(cfg.Archive.Dir)
		if err != nil {
			return nil, err
		}
		provider = p
	case "gcs":
		p, err := blob.NewGCSProvider(ctx, cfg.Archive.GCSBucket, logger.Named("gcs"))
		if err != nil {
			return nil, err
		}
		provider = p
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
	return blob.NewSnapshotArchiver(provider, cfg.Archive.Prefix, nil)
}

func runClosers(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
