/**
 * @description
 * Simulated purchase API handlers.
 * Quotes and executions run against a per-address simulated balance; a
 * completed buy lands on the activity feed like any other user action.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 * - github.com/shopspring/decimal
 * - internal/purchase
 */

package handlers

import (
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/pricepulse-project/backend/internal/identity"
	"github.com/pricepulse-project/backend/internal/purchase"
	"github.com/pricepulse-project/backend/internal/store"
)

type PurchaseHandler struct {
	Store store.Store

	mu    sync.Mutex
	desks map[string]*purchase.Desk // one simulated balance per address
}

func NewPurchaseHandler(st store.Store) *PurchaseHandler {
	return &PurchaseHandler{
		Store: st,
		desks: make(map[string]*purchase.Desk),
	}
}

// PurchaseRequest defines the payload for quotes and buys
type PurchaseRequest struct {
	UserAddress string `json:"user_address"`
	TokenSymbol string `json:"token_symbol"`
	Amount      string `json:"amount"`
	Price       string `json:"price"`
}

// purchaseInput is the validated request plus the caller's desk
type purchaseInput struct {
	desk    *purchase.Desk
	address string
	symbol  string
	amount  decimal.Decimal
	price   decimal.Decimal
}

// QuotePurchase prices a prospective buy without executing it
// POST /api/v1/purchase/quote
func (h *PurchaseHandler) QuotePurchase(c *fiber.Ctx) error {
	in, ok := h.parse(c)
	if !ok {
		return nil
	}

	quote, err := in.desk.QuoteFor(in.amount, in.price)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(quote)
}

// ExecutePurchase debits the simulated balance and records the buy
// POST /api/v1/purchase
func (h *PurchaseHandler) ExecutePurchase(c *fiber.Ctx) error {
	in, ok := h.parse(c)
	if !ok {
		return nil
	}

	quote, err := in.desk.Buy(c.Context(), in.address, in.symbol, in.amount, in.price)
	if errors.Is(err, purchase.ErrInsufficientFunds) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Insufficient balance",
			"quote": quote,
		})
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(quote)
}

// parse validates the shared request shape and resolves the caller's desk.
// On failure the response has already been written and ok is false.
func (h *PurchaseHandler) parse(c *fiber.Ctx) (purchaseInput, bool) {
	var req PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		return purchaseInput{}, false
	}

	address, err := identity.Normalize(req.UserAddress)
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Not a valid wallet address"})
		return purchaseInput{}, false
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid amount"})
		return purchaseInput{}, false
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid price"})
		return purchaseInput{}, false
	}

	h.mu.Lock()
	desk, ok := h.desks[address]
	if !ok {
		desk = purchase.NewDesk(h.Store)
		h.desks[address] = desk
	}
	h.mu.Unlock()

	return purchaseInput{
		desk:    desk,
		address: address,
		symbol:  normalizeSymbol(req.TokenSymbol),
		amount:  amount,
		price:   price,
	}, true
}
