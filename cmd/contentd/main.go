package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"content_sync/internal/config"
	"content_sync/internal/httpapi"
	"content_sync/internal/publisher"
	"content_sync/internal/scheduler"
	"content_sync/internal/service"
	"content_sync/internal/storage/local"
	"content_sync/internal/storage/postgres"
	"content_sync/internal/twofactor"
	"content_sync/internal/upload"
)

const drainTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("contentd stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	backend, err := local.Open(ctx, cfg.Local)
	if err != nil {
		return err
	}
	localStore := local.NewAdapter(backend, cfg.Local.KeyPrefix, logger)
	defer localStore.Close()
	logger.Info("local store opened", "driver", cfg.Local.Driver)

	var (
		remote    *service.Remote
		authCodes twofactor.CodeStore
		attempts  twofactor.AttemptStore
	)

	if cfg.Remote.Configured() {
		db, err := postgres.Connect(ctx, cfg.Remote.Database.DSN())
		if err != nil {
			return err
		}
		defer db.Close()
		logger.Info("connected to database")

		remote = newRemote(db)
		authCodes = postgres.NewAuthCodeStore(db)
		attempts = postgres.NewLoginAttemptStore(db)

		closer, err := attachFeed(cfg, remote, logger)
		if err != nil {
			return err
		}
		defer closer.Close()
	}

	content := service.NewContent(remote, localStore, logger)

	uploads, err := upload.Connect(cfg.Upload, logger)
	if err != nil {
		return err
	}

	auth := twofactor.New(authCodes, attempts, nil, cfg.TwoFactor.CodeTTL, logger)
	hub := httpapi.NewHub(content, logger)
	server := httpapi.NewServer(content, uploads, auth, hub, logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	if content.RemoteConfigured() {
		sched := scheduler.NewScheduler(content, cfg.Refresh.Interval, logger).WithCleanup(auth)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler error", "error", err)
			}
		}()
	}

	logger.Info("starting contentd",
		"addr", cfg.HTTP.Addr,
		"remote", content.RemoteConfigured(),
		"notify", cfg.Notify.Driver,
		"uploads", uploads.Configured(),
	)

	serverErr := server.Run(ctx, cfg.HTTP.Addr)
	cancel()
	wg.Wait()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := content.Close(drainCtx); err != nil {
		logger.Warn("pending remote writes not drained", "error", err)
	}

	return serverErr
}

func newRemote(db *sqlx.DB) *service.Remote {
	return &service.Remote{
		Banners: postgres.NewBannerStore(db),
		Videos:  postgres.NewVideoStore(db),
		Notices: postgres.NewNoticeStore(db),
		Promos:  postgres.NewPromoStore(db),
	}
}

// attachFeed wires the configured change notification transport into remote.
func attachFeed(cfg *config.Config, remote *service.Remote, logger *slog.Logger) (io.Closer, error) {
	switch cfg.Notify.Driver {
	case config.NotifyRabbitMQ:
		bus, err := publisher.NewRabbitMQ(publisher.Config{
			URL:      cfg.Notify.RabbitMQ.URL,
			Exchange: cfg.Notify.RabbitMQ.Exchange,
		}, logger)
		if err != nil {
			return nil, err
		}
		remote.Feed = bus
		remote.Publisher = bus
		return bus, nil
	default:
		listener := postgres.NewListener(
			cfg.Remote.Database.DSN(),
			cfg.Notify.MinReconnectInterval,
			cfg.Notify.MaxReconnectInterval,
			logger,
		)
		remote.Feed = listener
		return listener, nil
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
