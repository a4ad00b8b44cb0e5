// The sync daemon polls the merchant back office, matches order amounts to
// products, and pushes each order to the remote store once. It also serves
// the operator console API.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/tonglian-sync-backend/internal/adapters/backoffice"
	"github.com/eshaffer321/tonglian-sync-backend/internal/adapters/firebase"
	"github.com/eshaffer321/tonglian-sync-backend/internal/api"
	appsync "github.com/eshaffer321/tonglian-sync-backend/internal/application/sync"
	"github.com/eshaffer321/tonglian-sync-backend/internal/domain/matcher"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/config"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/logging"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Configuration file path")
		once         = flag.Bool("once", false, "Run a single sync pass and exit")
		lookbackDays = flag.Int("days", 0, "Days to look back (0 = today only)")
		maxOrders    = flag.Int("max", 0, "Maximum orders per pass (0 = all)")
		force        = flag.Bool("force", false, "Re-sync orders already in the ledger")
		apiPort      = flag.Int("api-port", 0, "Serve the operator API on this port (0 = disabled)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "SYNC")
	slog.SetDefault(logger)

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	productStore := config.NewProductStore(cfg.Storage.ProductsPath)
	mappingSet, err := productStore.Load()
	if err != nil {
		logger.Error("Failed to load product mappings", "path", cfg.Storage.ProductsPath, "error", err)
		os.Exit(1)
	}
	productMatcher := matcher.NewMatcher(mappingSet, productStore, logger)

	session, err := backoffice.NewSessionManager(cfg.Backoffice, logger)
	if err != nil {
		logger.Error("Failed to create session manager", "error", err)
		os.Exit(1)
	}
	fetcher := backoffice.NewOrderFetcher(session, logger)

	remote, err := firebase.NewClient(cfg.Firebase, logger)
	if err != nil {
		logger.Error("Failed to create remote store client", "error", err)
		os.Exit(1)
	}

	engine := appsync.NewEngine(remote, store, productMatcher, logger)
	poller := appsync.NewPoller(appsync.PollerConfig{
		Auth:       session,
		Source:     fetcher,
		Engine:     engine,
		Repo:       store,
		CookieFile: cfg.Storage.CookieFile,
		Interval:   time.Duration(cfg.Sync.IntervalSeconds) * time.Second,
		Logger:     logger,
	})

	opts := appsync.Options{
		LookbackDays: pick(*lookbackDays, cfg.Sync.LookbackDays),
		MaxOrders:    pick(*maxOrders, cfg.Sync.MaxOrders),
		Force:        *force,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *apiPort > 0 {
		apiCfg := api.DefaultConfig()
		apiCfg.Port = *apiPort
		server := api.NewServer(apiCfg, store, productMatcher, poller, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("API server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	if *once {
		result, err := poller.RunOnce(ctx, opts)
		if err != nil {
			logger.Error("Sync pass failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Sync pass complete",
			"found", result.OrdersFound,
			"synced", result.SyncedCount,
			"skipped", result.SkippedCount,
			"errors", result.ErrorCount,
		)
		if result.ErrorCount > 0 {
			os.Exit(1)
		}
		return
	}

	if err := poller.Run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Poller exited", "error", err)
		os.Exit(1)
	}
}

// pick returns the flag value when set, otherwise the config value
func pick(flagVal, cfgVal int) int {
	if flagVal > 0 {
		return flagVal
	}
	return cfgVal
}
