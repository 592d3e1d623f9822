/**
 * @description
 * Vote API handlers.
 * Casting routes through the Vote Ledger so precondition rejections are
 * classified before the store is touched; the store's uniqueness constraint
 * remains the final guard for races.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - internal/votes
 * - internal/store
 */

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pricepulse-project/backend/internal/identity"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/realtime"
	"github.com/pricepulse-project/backend/internal/store"
	"github.com/pricepulse-project/backend/internal/votes"
	"github.com/redis/go-redis/v9"
)

type VoteHandler struct {
	Ledger *votes.Ledger
	Store  store.Store
	Redis  *redis.Client
}

func NewVoteHandler(ledger *votes.Ledger, st store.Store, rdb *redis.Client) *VoteHandler {
	return &VoteHandler{Ledger: ledger, Store: st, Redis: rdb}
}

// CastVoteRequest defines the payload for vote casting
type CastVoteRequest struct {
	RoundID     string `json:"round_id"`
	TokenSymbol string `json:"token_symbol"`
	UserAddress string `json:"user_address"`
	Direction   string `json:"direction"`
}

// CastVote records one account's prediction for the active round
// POST /api/v1/votes
func (h *VoteHandler) CastVote(c *fiber.Ctx) error {
	var req CastVoteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	roundID, err := uuid.Parse(req.RoundID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round id"})
	}
	address, err := identity.Normalize(req.UserAddress)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Connect your wallet to vote"})
	}

	// The vote must target the round the store currently considers active;
	// anything else is a stale client casting into an ended round.
	round, err := h.Store.GetActiveRound(c.Context(), normalizeSymbol(req.TokenSymbol))
	if errors.Is(err, store.ErrNotFound) || (err == nil && round.ID != roundID) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "No active voting round available"})
	}
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to verify round"})
	}

	vote, err := h.Ledger.Cast(c.Context(), round, address, models.VoteDirection(req.Direction))
	if err != nil {
		return voteError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(vote)
}

// GetVote returns one account's vote for a round, or 404 when absent
// GET /api/v1/rounds/:id/votes/:address
func (h *VoteHandler) GetVote(c *fiber.Ctx) error {
	roundID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round id"})
	}
	address, err := identity.Normalize(c.Params("address"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid wallet address"})
	}

	vote, err := h.Ledger.CurrentVote(c.Context(), roundID, address)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to fetch vote"})
	}
	if vote == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No vote recorded"})
	}
	return c.JSON(vote)
}

// StreamVoteInserts streams vote inserts for one round over SSE
// GET /api/v1/rounds/:id/votes/stream
func (h *VoteHandler) StreamVoteInserts(c *fiber.Ctx) error {
	roundID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid round id"})
	}
	return streamChannel(c, h.Redis, realtime.VoteChannel(roundID))
}

// voteError maps the ledger's rejection taxonomy onto HTTP statuses.
// User-actionable rejections carry their specific message; everything else is
// a generic failure with no retry.
func voteError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, votes.ErrNotConnected), errors.Is(err, votes.ErrBadDirection):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": rejectionMessage(err)})
	case errors.Is(err, votes.ErrAlreadyVoted), errors.Is(err, votes.ErrVoteInFlight), errors.Is(err, votes.ErrRoundInactive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": rejectionMessage(err)})
	default:
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Unable to cast vote. Please try again."})
	}
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, votes.ErrNotConnected):
		return "Connect your wallet to vote"
	case errors.Is(err, votes.ErrAlreadyVoted):
		return "You have already voted in this round"
	case errors.Is(err, votes.ErrRoundInactive):
		return "No active voting round available"
	case errors.Is(err, votes.ErrVoteInFlight):
		return "A vote is already being submitted"
	case errors.Is(err, votes.ErrBadDirection):
		return "Direction must be up or down"
	default:
		return "Unable to cast vote. Please try again."
	}
}

// tallyPayload derives the response shape shared by the tally endpoints
func tallyPayload(voteSet []models.Vote) fiber.Map {
	tally := models.TallyOf(voteSet)
	up, down := tally.Percentages()
	return fiber.Map{
		"up":           tally.Up,
		"down":         tally.Down,
		"total":        tally.Total,
		"up_percent":   up,
		"down_percent": down,
	}
}
