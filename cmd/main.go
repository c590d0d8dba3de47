package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dtroode/useradmin-console/internal/api/rest"
	"github.com/dtroode/useradmin-console/internal/bulk"
	"github.com/dtroode/useradmin-console/internal/cache"
	"github.com/dtroode/useradmin-console/internal/clock"
	"github.com/dtroode/useradmin-console/internal/config"
	"github.com/dtroode/useradmin-console/internal/listing"
	"github.com/dtroode/useradmin-console/internal/logger"
	"github.com/dtroode/useradmin-console/internal/metrics"
	"github.com/dtroode/useradmin-console/internal/model"
	"github.com/dtroode/useradmin-console/internal/netstatus"
	"github.com/dtroode/useradmin-console/internal/notify"
	"github.com/dtroode/useradmin-console/internal/repository/postgres"
	"github.com/dtroode/useradmin-console/internal/server"
	"github.com/dtroode/useradmin-console/internal/session"
	"github.com/dtroode/useradmin-console/internal/storage/memory"
	storage "github.com/dtroode/useradmin-console/internal/storage/minio"
	"github.com/dtroode/useradmin-console/internal/storage/sqlite"
	"github.com/dtroode/useradmin-console/internal/tui"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer logFile.Close()
	logger := logger.NewWithWriter(cfg.LogLevel, logFile)

	logAppVersion(logger)

	missing, err := listing.ParseMissingPolicy(cfg.Listing.MissingDates)
	if err != nil {
		logger.Fatal("invalid listing config", "error", err)
	}

	clk := clock.Real{}
	m := metrics.New()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize state store", "error", err, "driver", cfg.Store.Driver)
	}
	defer closeStore()

	var wg sync.WaitGroup
	var metricsServer *server.MetricsServer
	if cfg.Metrics.Addr != "" {
		metricsServer = server.NewMetricsServer(cfg.Metrics.Addr, m.Handler(), logger)
		sl := server.NewSecurityLayer(cfg.Metrics.CertFileName, cfg.Metrics.PrivateKeyFileName)

		wg.Add(1)
		go func(s *server.MetricsServer) {
			defer wg.Done()
			if err := s.Start(sl); err != nil {
				logger.Error("failed to start metrics server", "error", err, "address", s.Address())
			}
		}(metricsServer)
	}

	network := netstatus.NewMonitor(logger)
	if cfg.Network.ProbeInterval > 0 {
		err := network.StartProbe(ctx, clk, &net.Dialer{}, cfg.API.BaseURL, cfg.Network.ProbeInterval, cfg.Network.ProbeTimeout)
		if err != nil {
			logger.Error("failed to start connectivity probe", "error", err)
		}
	}
	defer network.Stop()

	tokens := session.NewTokens(store)
	client, err := rest.NewClient(rest.Options{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout,
		RateLimit:     cfg.API.RateLimit,
		RateBurst:     cfg.API.RateBurst,
		RetryAttempts: cfg.API.RetryAttempts,
		RetryDelay:    cfg.API.RetryDelay,
	}, tokens, m, logger)
	if err != nil {
		logger.Fatal("failed to create api client", "error", err)
	}

	listingCache := cache.NewListingCache(store, clk, cfg.Listing.CacheTTL, logger)
	banners := notify.NewCenter(clk, cfg.Notify.Duration)
	bridge := tui.NewBridge()

	sess := session.New(client, tokens, listingCache, bridge, clk, logger)
	if err := sess.Restore(ctx); err != nil {
		logger.Warn("stored session discarded", "error", err)
	}

	workspace := func() (tui.Listing, tui.Bulk) {
		ctrl := listing.NewController(client, listingCache, network, sess, clk, m, listing.Options{
			SearchDebounce: cfg.Listing.SearchDebounce,
			PollInterval:   cfg.Listing.PollInterval,
			MissingDates:   missing,
		}, logger)
		exec := bulk.NewExecutor(client, ctrl, sess, bridge, banners, clk, cfg.Session.LogoutDelay, m, logger)
		return ctrl, exec
	}

	app := tui.NewApp(tui.Options{
		Context:   ctx,
		Session:   sess,
		Banners:   banners,
		Network:   network,
		Clock:     clk,
		Workspace: workspace,
		Logger:    logger,
	}, bridge)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p.Send)

	logger.Info("console started", "api", cfg.API.BaseURL, "store", cfg.Store.Driver)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		logger.Error("console exited with error", "error", err)
	}
	logger.Info("shutting down")

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			logger.Error("error during metrics server shutdown", "error", err, "address", metricsServer.Address())
		}
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

// openStore selects the state store backing the token and listing cache.
func openStore(ctx context.Context, cfg *config.Config, logger *logger.Logger) (model.StateStore, func(), error) {
	ns := cfg.Store.Namespace

	switch cfg.Store.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.Store.SQLitePath, ns)
		if err != nil {
			return nil, nil, err
		}
		return s, closer(logger, "sqlite", s), nil

	case config.DriverPostgres:
		db, err := postgres.NewConection(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStateRepository(db, ns), closer(logger, "postgres", db), nil

	case config.DriverMinio:
		s, err := storage.Dial(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey,
			cfg.Storage.UseSSL, cfg.Storage.Bucket, ns)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}

	return memory.NewStore(), func() {}, nil
}

func closer(logger *logger.Logger, name string, c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.Error("failed to close state store", "store", name, "error", err)
		}
	}
}

func logAppVersion(logger *logger.Logger) {
	logger.Info(fmt.Sprintf("Build version: %s", buildVersion),
		"build_date", buildDate,
		"build_commit", buildCommit)
}
