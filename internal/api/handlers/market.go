/**
 * @description
 * Market data API handlers.
 * Serves the header snapshot (cache-first), the chart history, and the live
 * price stream. Provider failures surface as explicit error states so the
 * chart never renders fabricated data; the cached snapshot is the one view
 * allowed to go stale instead of erroring.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/marketdata
 */

package handlers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pricepulse-project/backend/internal/marketdata"
	"github.com/pricepulse-project/backend/internal/realtime"
)

type MarketHandler struct {
	Client *marketdata.Client
	Redis  *redis.Client
}

func NewMarketHandler(client *marketdata.Client, rdb *redis.Client) *MarketHandler {
	return &MarketHandler{Client: client, Redis: rdb}
}

// GetSnapshot returns the market snapshot, preferring Cache -> Provider
// GET /api/v1/market/snapshot
func (h *MarketHandler) GetSnapshot(c *fiber.Ctx) error {
	ctx := c.Context()

	// 1. Try Redis (last-good snapshot written by the worker)
	val, err := h.Redis.Get(ctx, marketdata.SnapshotCacheKey).Result()
	if err == nil {
		var snapshots []marketdata.Snapshot
		if err := json.Unmarshal([]byte(val), &snapshots); err == nil {
			return c.JSON(snapshots)
		}
		// If unmarshal fails, fall through to the provider
	}

	// 2. Fallback to the provider directly
	ids := []string{"bitcoin", "ethereum", "cardano", "solana", "polkadot"}
	snapshots, err := h.Client.GetMarketSnapshot(ctx, ids)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Market data unavailable"})
	}
	return c.JSON(snapshots)
}

// GetPriceHistory returns the chart series for a token symbol
// GET /api/v1/market/history/:symbol?days=1
func (h *MarketHandler) GetPriceHistory(c *fiber.Ctx) error {
	symbol := normalizeSymbol(c.Params("symbol"))
	days := c.QueryInt("days", 1)

	history, err := h.Client.GetPriceHistory(c.Context(), marketdata.CoinID(symbol), days)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Market data unavailable"})
	}
	return c.JSON(history)
}

// StreamPriceUpdates streams live price updates over SSE
// GET /api/v1/market/stream
func (h *MarketHandler) StreamPriceUpdates(c *fiber.Ctx) error {
	return streamChannel(c, h.Redis, realtime.PriceUpdateChannel)
}
