package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edvin/nodewatch/internal/api"
	"github.com/edvin/nodewatch/internal/collector"
	"github.com/edvin/nodewatch/internal/config"
	"github.com/edvin/nodewatch/internal/core"
	"github.com/edvin/nodewatch/internal/db"
	"github.com/edvin/nodewatch/internal/ledger"
	"github.com/edvin/nodewatch/internal/logging"
	"github.com/edvin/nodewatch/internal/metrics"
	"github.com/edvin/nodewatch/internal/notify"
	"github.com/edvin/nodewatch/internal/offchain"
	"github.com/edvin/nodewatch/internal/watchdog"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	peerMap, err := config.LoadPeerMap(cfg.PeerMapFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load peer map")
	}

	registry := core.NewRegistryService(pool, cfg.DownThreshold)
	notifier := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, logger)

	ledgerClient, err := ledger.New(cfg.LedgerRPCURL, cfg.LedgerContracts, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up ledger client")
	}
	defer ledgerClient.Close()

	offchainClient := offchain.New(cfg.OffchainAPIURL, logger)
	peerCollector := collector.New(ledgerClient, offchainClient, logger)
	refresher := collector.NewRefresher(registry, peerCollector, notifier, collector.RefresherConfig{
		Interval:        cfg.MetricsInterval,
		Policy:          collector.Policy(cfg.MetricsPolicy),
		DefaultIdentity: cfg.OffchainIdentity,
		DefaultAccounts: cfg.LedgerAccounts,
		PeerMap:         peerMap,
	}, logger)
	dog := watchdog.New(registry, notifier, cfg.WatchdogInterval, logger)

	srv := api.NewServer(logger, pool, cfg, registry, refresher)

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dog.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		refresher.Run(ctx)
	}()

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting nodewatch server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	wg.Wait()
}
