/**
 * @description
 * Round API handlers.
 * Round discovery/creation plus the per-symbol round change stream.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/rounds
 * - internal/store
 */

package handlers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pricepulse-project/backend/internal/realtime"
	"github.com/pricepulse-project/backend/internal/rounds"
	"github.com/pricepulse-project/backend/internal/store"
	"github.com/redis/go-redis/v9"
)

type RoundHandler struct {
	Coordinator *rounds.Coordinator
	Store       store.Store
	Redis       *redis.Client
}

func NewRoundHandler(coordinator *rounds.Coordinator, st store.Store, rdb *redis.Client) *RoundHandler {
	return &RoundHandler{Coordinator: coordinator, Store: st, Redis: rdb}
}

// EnsureRoundRequest defines the payload for round ensure
type EnsureRoundRequest struct {
	TokenSymbol string `json:"token_symbol"`
}

// EnsureRound sweeps expired rounds then returns (creating if needed) the
// active round for the symbol
// POST /api/v1/rounds/ensure
func (h *RoundHandler) EnsureRound(c *fiber.Ctx) error {
	var req EnsureRoundRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	symbol := normalizeSymbol(req.TokenSymbol)
	if symbol == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token_symbol is required"})
	}

	round, err := h.Coordinator.EnsureActiveRound(c.Context(), symbol)
	if err != nil {
		// Recoverable for the client: retry on the next action
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "No round available"})
	}
	return c.JSON(round)
}

// GetActiveRound returns the active round for a symbol without creating one
// GET /api/v1/rounds/active?symbol=BTC
func (h *RoundHandler) GetActiveRound(c *fiber.Ctx) error {
	symbol := normalizeSymbol(c.Query("symbol"))
	if symbol == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "symbol is required"})
	}

	round, err := h.Store.GetActiveRound(c.Context(), symbol)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No active round"})
	}
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to fetch round"})
	}
	return c.JSON(round)
}

// GetTally recomputes the aggregate tally for a round from the full vote set
// GET /api/v1/rounds/:id/tally
func (h *RoundHandler) GetTally(c *fiber.Ctx) error {
	roundID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round id"})
	}

	votes, err := h.Store.ListVotes(c.Context(), roundID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to fetch votes"})
	}

	tally := tallyPayload(votes)
	return c.JSON(tally)
}

// StreamRoundChanges streams round inserts/updates for one symbol over SSE
// GET /api/v1/rounds/stream?symbol=BTC
func (h *RoundHandler) StreamRoundChanges(c *fiber.Ctx) error {
	symbol := normalizeSymbol(c.Query("symbol"))
	if symbol == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "symbol is required"})
	}
	return streamChannel(c, h.Redis, realtime.RoundChannel(symbol))
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// streamChannel relays one Redis pub/sub channel over SSE until the client
// disconnects. Shared by the round, vote, activity, and price streams.
func streamChannel(c *fiber.Ctx, rdb *redis.Client, channel string) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	requestCtx := c.Context()

	ctx, cancel := context.WithCancel(context.Background())

	pubsub := rdb.Subscribe(ctx, channel)
	ch := pubsub.Channel()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cancel()
			_ = pubsub.Close()
		}()

		requestDone := requestCtx.Done()

		for {
			select {
			case <-requestDone:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}
