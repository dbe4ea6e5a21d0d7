package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/luckfunc/stockbot/internal/alerts"
	"github.com/luckfunc/stockbot/internal/backup"
	"github.com/luckfunc/stockbot/internal/bot"
	"github.com/luckfunc/stockbot/internal/commands"
	"github.com/luckfunc/stockbot/internal/config"
	"github.com/luckfunc/stockbot/internal/handlers"
	"github.com/luckfunc/stockbot/internal/market"
	"github.com/luckfunc/stockbot/internal/market/alpaca"
	"github.com/luckfunc/stockbot/internal/market/sina"
	"github.com/luckfunc/stockbot/internal/market/yahoo"
	"github.com/luckfunc/stockbot/internal/market/yfinance"
	"github.com/luckfunc/stockbot/internal/scheduler"
	"github.com/luckfunc/stockbot/internal/server"
	"github.com/luckfunc/stockbot/internal/services"
	"github.com/luckfunc/stockbot/internal/storage"
	"github.com/luckfunc/stockbot/pkg/logger"
)

var (
	serviceVersion = "dev"
	methodError    = []string{"method", "error"}
)

const (
	metricsNamespace = "stockbot"
	shutdownTimeout  = 10 * time.Second
)

func main() {
	printVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println(serviceVersion)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Level: "info"})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		Version: serviceVersion,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("version", serviceVersion).Interface("config", cfg.Redacted()).Msg("Starting stockbot")

	// Initialize database
	store, err := storage.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer store.Close()

	provider := newProvider(cfg, log)

	var renderer services.WatchlistRenderer
	if cfg.Bot.ChromeRender {
		renderer = services.ChromeRenderer{Timeout: 20 * time.Second}
	}

	// Commands
	registry := commands.NewRegistry(log)
	for _, cmd := range commands.Builtin(commands.Deps{
		Provider:    provider,
		Store:       store,
		Renderer:    renderer,
		Log:         log,
		DefaultDays: cfg.DefaultDays,
	}) {
		// rejects are logged by the registry and caught by Validate
		_ = registry.Register(cmd)
	}
	if err := registry.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Command registry is incomplete")
	}

	// Chat transport
	wx := bot.New(bot.Config{
		HotLoginFile: cfg.Bot.HotLoginFile,
		Desktop:      cfg.Bot.Desktop,
		Log:          log,
	})
	defer wx.Close()

	dedup := handlers.NewDedupWindow(cfg.Dedup.Cooldown)
	dispatcher := handlers.NewDispatcher(handlers.DispatcherConfig{
		Registry:  registry,
		Dedup:     dedup,
		Transport: wx,
		Log:       log,
		Timeout:   cfg.CommandTimeout,
		Counter: kitprometheus.NewCounterFrom(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "dispatcher",
			Name:      "messages_total",
			Help:      "Handled chat messages by path",
		}, []string{"path"}),
	})

	// Initialize scheduler
	sched := scheduler.New(log)
	if err := registerJobs(sched, cfg, store, provider, wx, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:     cfg.HTTPPort,
		Log:      log,
		Commands: registry,
		Jobs:     sched,
		Dedup:    dedup,
		Self:     dispatcher.Self,
		Version:  serviceVersion,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	self, err := wx.Login()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to log in")
	}
	dispatcher.SetSelf(self)

	sched.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("bot", self.Name).Int("port", cfg.HTTPPort).Msg("Bot started successfully")

	// Block until a signal arrives or the chat session ends
	if err := wx.Run(ctx, dispatcher.Dispatch); err != nil {
		log.Error().Err(err).Msg("Chat session ended")
	}
	stop()

	log.Info().Msg("Shutting down...")

	sched.Stop()
	dispatcher.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Bot stopped")
}

// newProvider builds the market-data chain: source, timeout, logging, metrics
func newProvider(cfg *config.Config, log zerolog.Logger) market.Provider {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	var svc market.Provider
	switch cfg.Provider {
	case "alpaca":
		svc = alpaca.NewProvider(cfg.Alpaca.Key, cfg.Alpaca.Secret, cfg.Alpaca.BaseURL)
	case "yfinance":
		svc = yfinance.NewProvider()
	default:
		svc = yahoo.NewClient(cfg.Yahoo.BaseURL, httpClient)
	}
	if cfg.QuoteSource == "sina" {
		svc = market.Split{Quotes: sina.NewClient("", httpClient), History: svc}
	}

	svc = market.NewTimeoutMiddleware(cfg.RequestTimeout, svc)
	svc = market.NewLoggingMiddleware(log, svc)
	svc = market.NewInstrumentingMiddleware(
		kitprometheus.NewCounterFrom(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "provider",
			Name:      "request_count",
			Help:      "Market data requests",
		}, methodError),
		kitprometheus.NewSummaryFrom(prometheus.SummaryOpts{
			Namespace: metricsNamespace,
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Market data request duration",
		}, methodError),
		svc,
	)
	return svc
}

func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, store *storage.Store, provider market.Provider, notifier alerts.Notifier, log zerolog.Logger) error {
	if cfg.Alert.Enabled {
		alerter := alerts.NewAlerter(alerts.AlerterConfig{
			Store:     store,
			Provider:  provider,
			Notifier:  notifier,
			Log:       log,
			Threshold: cfg.Alert.Threshold,
		})
		if err := sched.AddJob(cfg.AlertSchedule(), alerter); err != nil {
			return fmt.Errorf("failed to register %s job: %w", alerter.Name(), err)
		}
	}

	if cfg.Backup.Enabled {
		s3cfg := backup.S3Config{
			Bucket:    cfg.Backup.Bucket,
			Prefix:    cfg.Backup.Prefix,
			Region:    cfg.Backup.Region,
			Endpoint:  cfg.Backup.Endpoint,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		}
		uploader, err := backup.NewS3Uploader(context.Background(), s3cfg)
		if err != nil {
			return err
		}
		job := backup.NewJob(store, uploader, s3cfg, filepath.Join(cfg.DataDir, "backups"), log)
		if err := sched.AddJob(cfg.Backup.Schedule, job); err != nil {
			return fmt.Errorf("failed to register %s job: %w", job.Name(), err)
		}
	}
	return nil
}
