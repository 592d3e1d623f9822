/**
 * @description
 * API route definitions.
 * Sets up the router groups and assigns handlers.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/api/handlers
 * - internal/rounds
 * - internal/votes
 * - internal/store
 */

package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pricepulse-project/backend/internal/api/handlers"
	"github.com/pricepulse-project/backend/internal/config"
	"github.com/pricepulse-project/backend/internal/marketdata"
	"github.com/pricepulse-project/backend/internal/rounds"
	"github.com/pricepulse-project/backend/internal/store"
	"github.com/pricepulse-project/backend/internal/votes"
)

// SetupRoutes configures all API routes. The store client is constructed here
// and injected into every core component; its lifecycle belongs to the
// composition root, never to a package-level global.
func SetupRoutes(app *fiber.App, db *gorm.DB, rdb *redis.Client, cfg *config.Config) {
	// 1. Initialize Services
	roundStore := store.NewPostgresStore(db, rdb)
	coordinator := rounds.NewCoordinator(roundStore, cfg.Rounds.DurationSeconds)
	ledger := votes.NewLedger(roundStore)
	marketClient := marketdata.NewClient(cfg)

	// 2. Initialize Handlers
	roundHandler := handlers.NewRoundHandler(coordinator, roundStore, rdb)
	voteHandler := handlers.NewVoteHandler(ledger, roundStore, rdb)
	activityHandler := handlers.NewActivityHandler(roundStore, rdb, cfg.Rounds.FeedLimit)
	marketHandler := handlers.NewMarketHandler(marketClient, rdb)
	purchaseHandler := handlers.NewPurchaseHandler(roundStore)

	// 3. Define Routes
	api := app.Group("/api")
	v1 := api.Group("/v1")

	v1.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Rounds
	roundsGroup := v1.Group("/rounds")
	roundsGroup.Post("/ensure", roundHandler.EnsureRound)
	roundsGroup.Get("/active", roundHandler.GetActiveRound)
	roundsGroup.Get("/stream", roundHandler.StreamRoundChanges)
	roundsGroup.Get("/:id/tally", roundHandler.GetTally)
	roundsGroup.Get("/:id/votes/stream", voteHandler.StreamVoteInserts)
	roundsGroup.Get("/:id/votes/:address", voteHandler.GetVote)

	// Votes
	v1.Post("/votes", voteHandler.CastVote)

	// Activity feed
	activity := v1.Group("/activity")
	activity.Get("/", activityHandler.GetRecentActivity)
	activity.Get("/stream", activityHandler.StreamActivity)
	v1.Post("/wallet/connect", activityHandler.ConnectWallet)

	// Market data
	market := v1.Group("/market")
	market.Get("/snapshot", marketHandler.GetSnapshot)
	market.Get("/history/:symbol", marketHandler.GetPriceHistory)
	market.Get("/stream", marketHandler.StreamPriceUpdates)

	// Simulated purchases
	v1.Post("/purchase/quote", purchaseHandler.QuotePurchase)
	v1.Post("/purchase", purchaseHandler.ExecutePurchase)
}
