/**
 * @description
 * Simulated token purchase flow. Quotes total cost against the session's
 * simulated USDC balance with exact decimal arithmetic, and records completed
 * purchases on the activity feed. No custody, no on-chain settlement.
 *
 * @dependencies
 * - github.com/shopspring/decimal: exact money math (cost, shortfall)
 * - internal/store: buy activity entries
 */

package purchase

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/pricepulse-project/backend/internal/logger"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/store"
)

var (
	ErrBadAmount         = errors.New("purchase: amount must be positive")
	ErrBadPrice          = errors.New("purchase: price must be positive")
	ErrInsufficientFunds = errors.New("purchase: insufficient balance")
)

// DefaultBalance is the simulated starting wallet balance in USDC
var DefaultBalance = decimal.RequireFromString("1500.00")

// QuickAmounts are the preset purchase sizes offered by the UI
var QuickAmounts = []int64{10, 50, 100, 500}

// Quote is the affordability projection for a prospective purchase
type Quote struct {
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	TotalCost decimal.Decimal `json:"total_cost"`
	Balance   decimal.Decimal `json:"balance"`
	CanAfford bool            `json:"can_afford"`
	// Shortfall is how much more the buyer needs; zero when affordable
	Shortfall decimal.Decimal `json:"shortfall"`
}

// Desk executes simulated purchases against a per-session balance
type Desk struct {
	store store.Store

	mu      sync.Mutex
	balance decimal.Decimal
}

func NewDesk(st store.Store) *Desk {
	return &Desk{store: st, balance: DefaultBalance}
}

// Balance returns the remaining simulated balance
func (d *Desk) Balance() decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.balance
}

// QuoteFor prices a prospective purchase without executing it
func (d *Desk) QuoteFor(amount, price decimal.Decimal) (Quote, error) {
	if amount.IsNegative() || amount.IsZero() {
		return Quote{}, ErrBadAmount
	}
	if price.IsNegative() || price.IsZero() {
		return Quote{}, ErrBadPrice
	}

	d.mu.Lock()
	balance := d.balance
	d.mu.Unlock()

	total := amount.Mul(price)
	q := Quote{
		Amount:    amount,
		Price:     price,
		TotalCost: total,
		Balance:   balance,
		CanAfford: total.LessThanOrEqual(balance),
		Shortfall: decimal.Zero,
	}
	if !q.CanAfford {
		q.Shortfall = total.Sub(balance)
	}
	return q, nil
}

// Buy executes the purchase: debits the simulated balance and appends a buy
// activity entry (best-effort; its failure does not undo the debit).
func (d *Desk) Buy(ctx context.Context, userAddress, tokenSymbol string, amount, price decimal.Decimal) (Quote, error) {
	q, err := d.QuoteFor(amount, price)
	if err != nil {
		return Quote{}, err
	}
	if !q.CanAfford {
		return q, ErrInsufficientFunds
	}

	d.mu.Lock()
	// Re-check under the lock: a concurrent buy may have spent the balance
	if q.TotalCost.GreaterThan(d.balance) {
		q.Balance = d.balance
		q.CanAfford = false
		q.Shortfall = q.TotalCost.Sub(d.balance)
		d.mu.Unlock()
		return q, ErrInsufficientFunds
	}
	d.balance = d.balance.Sub(q.TotalCost)
	q.Balance = d.balance
	d.mu.Unlock()

	amt, _ := amount.Float64()
	entry := &models.Activity{
		UserAddress: userAddress,
		Kind:        models.ActivityBuy,
		TokenSymbol: tokenSymbol,
		Amount:      &amt,
	}
	if err := d.store.AddActivity(ctx, entry); err != nil {
		logger.Error("purchase: failed to record buy activity for %s: %v", userAddress, err)
	}

	return q, nil
}
