/**
 * @description
 * Activity feed API handlers.
 * One pull read seeds a client's feed; the SSE stream keeps it live.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/store
 */

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pricepulse-project/backend/internal/feed"
	"github.com/pricepulse-project/backend/internal/identity"
	"github.com/pricepulse-project/backend/internal/realtime"
	"github.com/pricepulse-project/backend/internal/store"
)

type ActivityHandler struct {
	Store store.Store
	Redis *redis.Client
	Limit int
}

func NewActivityHandler(st store.Store, rdb *redis.Client, limit int) *ActivityHandler {
	if limit <= 0 {
		limit = feed.DefaultLimit
	}
	return &ActivityHandler{Store: st, Redis: rdb, Limit: limit}
}

// GetRecentActivity returns the newest feed entries, newest first
// GET /api/v1/activity
func (h *ActivityHandler) GetRecentActivity(c *fiber.Ctx) error {
	entries, err := h.Store.ListRecentActivity(c.Context(), h.Limit)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to fetch activity"})
	}
	return c.JSON(entries)
}

// StreamActivity streams activity inserts over SSE
// GET /api/v1/activity/stream
func (h *ActivityHandler) StreamActivity(c *fiber.Ctx) error {
	return streamChannel(c, h.Redis, realtime.ActivityChannel)
}

// ConnectWalletRequest defines the payload for wallet connection
type ConnectWalletRequest struct {
	Address     string `json:"address"`
	TokenSymbol string `json:"token_symbol"`
}

// ConnectWallet validates the address and records the join on the feed.
// The address is a bare identifier; there is no authentication behind it.
// POST /api/v1/wallet/connect
func (h *ActivityHandler) ConnectWallet(c *fiber.Ctx) error {
	var req ConnectWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	address, err := identity.Join(c.Context(), h.Store, req.Address, normalizeSymbol(req.TokenSymbol))
	if err != nil {
		if errors.Is(err, identity.ErrInvalidAddress) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Not a valid wallet address"})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to record join"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"address": address})
}
