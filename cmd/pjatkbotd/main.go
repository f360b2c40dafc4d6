// Command pjatkbotd scrapes the PJATK schedule portal, reconciles it
// against the persisted schedule, and dispatches lead-time notifications
// to subscribed users.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hdbg/pjatkbot-go/internal/bus"
	"github.com/hdbg/pjatkbot-go/internal/buildinfo"
	"github.com/hdbg/pjatkbot-go/internal/config"
	"github.com/hdbg/pjatkbot-go/internal/dispatcher"
	"github.com/hdbg/pjatkbot-go/internal/notifier"
	"github.com/hdbg/pjatkbot-go/internal/parsermanager"
	"github.com/hdbg/pjatkbot-go/internal/portal"
	"github.com/hdbg/pjatkbot-go/internal/reconciler"
	"github.com/hdbg/pjatkbot-go/internal/sender"
	"github.com/hdbg/pjatkbot-go/internal/store"
	"github.com/hdbg/pjatkbot-go/internal/store/mongostore"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "serve":
			runServe(logger, *configPath)
		case "once":
			runOnce(logger, *configPath)
		case "version":
			fmt.Println(buildinfo.String())
			for k, v := range buildinfo.BuildInfo() {
				fmt.Printf("  %-12s %s\n", k+":", v)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
		return
	}

	fmt.Println("pjatkbotd - PJATK schedule scraper and notifier")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve    Run the scraper/notifier/dispatcher pipeline")
	fmt.Println("  once     Run a single parse-and-reconcile tick, then exit")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

// logTransport is the sender.Transport used until a real chat-platform
// integration is wired in: it logs the rendered message instead of
// delivering it, so the pipeline is demonstrably end-to-end without
// depending on an external service being reachable.
type logTransport struct {
	logger *slog.Logger
}

func (t *logTransport) SendMessage(ctx context.Context, userID, text string) error {
	t.logger.Info("outbound message", "user_id", userID, "text", text)
	return nil
}

func loadConfig(logger *slog.Logger, configPath string) *config.Config {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	return cfg
}

func reconfigureLogger(logger *slog.Logger, cfg *config.Config) *slog.Logger {
	if cfg.LogLevel == "" {
		return logger
	}
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid log_level in config", "error", err)
		os.Exit(1)
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

func connectStore(ctx context.Context, logger *slog.Logger, cfg *config.Config) store.Store {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Error("connecting to mongo", "error", err)
		os.Exit(1)
	}
	st, err := mongostore.New(ctx, mongostore.Options{
		Client:   client,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		logger.Error("initializing store", "error", err)
		os.Exit(1)
	}
	return st
}

func buildParserManager(logger *slog.Logger, cfg *config.Config, st store.Store, updates *bus.Topic[bus.UpdateEvent]) *parsermanager.Manager {
	client, err := portal.New(cfg.Portal.BaseURL, cfg.Portal.UserAgent)
	if err != nil {
		logger.Error("building portal client", "error", err)
		os.Exit(1)
	}
	pm, err := parsermanager.New(parsermanager.Config{
		Client:     client,
		Reconciler: reconciler.New(st),
		Store:      st,
		Updates:    updates,
		DaysAhead:  cfg.Parser.DaysAhead,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("building parser manager", "error", err)
		os.Exit(1)
	}
	return pm
}

// runOnce runs a single ParserManager tick against the configured store
// and exits — useful for manual verification and cron-style deployments
// that would rather own their own scheduling than run pjatkbotd as a
// long-lived daemon.
func runOnce(logger *slog.Logger, configPath string) {
	cfg := loadConfig(logger, configPath)
	logger = reconfigureLogger(logger, cfg)

	ctx := context.Background()
	st := connectStore(ctx, logger, cfg)
	updates := bus.New[bus.UpdateEvent](64)

	pm := buildParserManager(logger, cfg, st, updates)
	if err := pm.Tick(ctx); err != nil {
		logger.Error("tick failed", "error", err)
		os.Exit(1)
	}
	updates.Close()
	logger.Info("once: tick complete")
}

func runServe(logger *slog.Logger, configPath string) {
	cfg := loadConfig(logger, configPath)
	logger = reconfigureLogger(logger, cfg)
	logger.Info("starting pjatkbotd", "version", buildinfo.Version, "commit", buildinfo.GitCommit)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := connectStore(ctx, logger, cfg)

	updates := bus.New[bus.UpdateEvent](256)
	outbound := bus.New[bus.NotificationEvent](256)

	pm := buildParserManager(logger, cfg, st, updates)
	parserRunner := pm.Runner(cfg.Parser.Interval)

	plan := notifier.New(notifier.Config{
		Store:                 st,
		Updates:               updates,
		Outbound:              outbound,
		ResyncInterval:        cfg.Notifier.ResyncInterval,
		ResyncRateLimitPerMin: cfg.Notifier.ResyncRateLimitPerMin,
		Logger:                logger,
	})

	disp := dispatcher.New(dispatcher.Config{Store: st, Outbound: outbound, Logger: logger})
	dispatchRunner := disp.Runner(cfg.Sender.PollInterval)

	out := sender.New(sender.Config{
		Transport:       &logTransport{logger: logger},
		Store:           st,
		RateLimitPerMin: cfg.Sender.RateLimitPerMin,
		MaxAttempts:     cfg.Sender.MaxSendAttempts,
		Logger:          logger,
	})

	parserRunner.Start(ctx)
	dispatchRunner.Start(ctx)

	go func() {
		if err := plan.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("notifier stopped", "error", err)
		}
	}()
	go func() {
		if err := out.Run(ctx, outbound); err != nil && ctx.Err() == nil {
			logger.Error("sender stopped", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	parserRunner.Stop()
	dispatchRunner.Stop()
	updates.Close()
	outbound.Close()

	logger.Info("pjatkbotd stopped")
}
