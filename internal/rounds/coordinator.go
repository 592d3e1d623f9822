/**
 * @description
 * Round Coordinator: discovery and creation of the active round for a token.
 *
 * Race policy: round creation is not protected by client-side mutual exclusion.
 * If two clients race to create a round for a symbol, whichever round the next
 * lookup observes wins; the losing round is cheap and gets superseded through
 * the active-flag sweep. The coordinator only guarantees that some active round
 * is returned when the store is reachable.
 *
 * @dependencies
 * - internal/store
 * - internal/models
 */

package rounds

import (
	"context"
	"errors"

	"github.com/pricepulse-project/backend/internal/logger"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/store"
)

// ErrNoRound is the terminal "no round available" outcome: both lookup and
// creation failed. Recoverable: callers retry on the next user action.
var ErrNoRound = errors.New("rounds: no active round available")

// Coordinator owns round discovery, creation, and expiry-sweep triggering
type Coordinator struct {
	store           store.Store
	durationSeconds int
}

func NewCoordinator(st store.Store, durationSeconds int) *Coordinator {
	if durationSeconds <= 0 {
		durationSeconds = models.DefaultRoundDuration
	}
	return &Coordinator{store: st, durationSeconds: durationSeconds}
}

// EnsureActiveRound returns the active round for the symbol, creating one if
// none exists. The store-side expiry sweep runs first so an elapsed round is
// never handed back as active; sweep failure is tolerated because the sweep is
// idempotent and every other connected client triggers it too.
func (c *Coordinator) EnsureActiveRound(ctx context.Context, tokenSymbol string) (*models.Round, error) {
	if err := c.store.SweepExpiredRounds(ctx); err != nil {
		logger.Error("rounds: expiry sweep failed for %s: %v", tokenSymbol, err)
	}

	round, err := c.store.GetActiveRound(ctx, tokenSymbol)
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		logger.Error("rounds: active round lookup failed for %s: %v", tokenSymbol, err)
	}

	round, createErr := c.store.CreateRound(ctx, tokenSymbol, c.durationSeconds)
	if createErr == nil {
		return round, nil
	}
	logger.Error("rounds: round creation failed for %s: %v", tokenSymbol, createErr)

	// A racing client may have created a round between our lookup and insert
	round, err = c.store.GetActiveRound(ctx, tokenSymbol)
	if err == nil {
		return round, nil
	}

	return nil, ErrNoRound
}

// DurationSeconds is the default round length this coordinator creates with
func (c *Coordinator) DurationSeconds() int {
	return c.durationSeconds
}
