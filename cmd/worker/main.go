/**
 * @description
 * Worker service entry point.
 * Responsible for background tasks:
 * 1. The round expiry sweep (closes rounds past their end time).
 * 2. Activity log retention pruning.
 * 3. Market snapshot refresh (cache for the API tier).
 * 4. Ingesting live prices from the upstream WebSocket stream.
 *
 * @dependencies
 * - internal/config
 * - internal/db
 * - internal/store
 * - internal/marketdata
 * - internal/pricestream
 * - github.com/robfig/cron/v3: schedules
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pricepulse-project/backend/internal/config"
	"github.com/pricepulse-project/backend/internal/db"
	"github.com/pricepulse-project/backend/internal/logger"
	"github.com/pricepulse-project/backend/internal/marketdata"
	"github.com/pricepulse-project/backend/internal/pricestream"
	"github.com/pricepulse-project/backend/internal/store"
)

// trackedSymbols are the tokens the worker keeps market data fresh for
var trackedSymbols = []string{"BTC", "ETH", "SOL", "ADA", "DOT"}

func main() {
	logger.Info("🔥 Starting PricePulse worker...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	// 2. Connect DBs
	pgDB, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Postgres connection failed: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Redis connection failed: %v", err)
	}

	// 3. Initialize Services
	roundStore := store.NewPostgresStore(pgDB, redisClient)
	if err := roundStore.Migrate(); err != nil {
		logger.Fatal("Failed to migrate schema: %v", err)
	}

	coinIDs := make([]string, 0, len(trackedSymbols))
	for _, s := range trackedSymbols {
		coinIDs = append(coinIDs, marketdata.CoinID(s))
	}
	poller := marketdata.NewPoller(
		marketdata.NewClient(cfg),
		redisClient,
		coinIDs,
		cfg.Market.SpotRefresh,
		cfg.Market.SnapshotRefresh,
	)
	wsClient := pricestream.NewClient(cfg, redisClient, trackedSymbols)

	// 4. Context with Cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Maintenance Schedules
	// The sweep is the authoritative closer of elapsed rounds; clients trigger
	// it too, so running it here just bounds how long a stale round can linger.
	scheduler := cron.New(cron.WithSeconds())
	sweepSpec := "@every " + cfg.Rounds.SweepInterval.String()
	if _, err := scheduler.AddFunc(sweepSpec, func() {
		if err := roundStore.SweepExpiredRounds(ctx); err != nil {
			logger.Error("Expiry sweep failed: %v", err)
		}
	}); err != nil {
		logger.Fatal("Failed to schedule expiry sweep: %v", err)
	}
	if _, err := scheduler.AddFunc("@hourly", func() {
		if err := roundStore.PruneActivity(ctx); err != nil {
			logger.Error("Activity prune failed: %v", err)
		}
	}); err != nil {
		logger.Fatal("Failed to schedule activity prune: %v", err)
	}
	scheduler.Start()

	// 6. Market data poll + live price stream
	go poller.Run(ctx)
	go func() {
		if err := wsClient.Connect(ctx); err != nil {
			logger.Error("❌ Price stream client failed: %v", err)
			// The 30s REST poll keeps prices flowing, just less fresh
		}
	}()

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	<-scheduler.Stop().Done()

	if err := wsClient.Close(); err != nil {
		logger.Error("Error closing price stream: %v", err)
	}

	time.Sleep(1 * time.Second) // Give connections time to close
	logger.Info("Worker exited.")
}
