/**
 * @description
 * Round Store repository interface and error taxonomy.
 * The narrow contract the client core (coordinator, ledger, feed) relies on;
 * everything behind it (storage engine, query execution, the expiry sweep)
 * is an implementation detail of the backing store.
 *
 * @dependencies
 * - internal/models
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/pricepulse-project/backend/internal/models"
)

var (
	// ErrNotFound marks an absent round or vote; callers treat it as a value, not a failure
	ErrNotFound = errors.New("store: record not found")

	// ErrDuplicateVote is the store-side exactly-once guard firing: an account
	// already holds a vote for the round. The first vote is untouched.
	ErrDuplicateVote = errors.New("store: duplicate vote for round and account")
)

// Store is the durable record of rounds, votes, and activity. Implementations
// must publish the full changed record to the notification bus on every
// successful write.
type Store interface {
	// CreateRound opens a new active round for the symbol
	CreateRound(ctx context.Context, tokenSymbol string, durationSeconds int) (*models.Round, error)

	// GetActiveRound returns the most recently created active round for the
	// symbol, or ErrNotFound
	GetActiveRound(ctx context.Context, tokenSymbol string) (*models.Round, error)

	// CloseRound flips the round inactive. Idempotent.
	CloseRound(ctx context.Context, roundID uuid.UUID) error

	// CastVote records one account's prediction. Returns ErrDuplicateVote when
	// the uniqueness constraint rejects a second vote for the same (round, account).
	CastVote(ctx context.Context, roundID uuid.UUID, userAddress string, direction models.VoteDirection, tokenSymbol string) (*models.Vote, error)

	// GetVote returns the account's vote for the round, or ErrNotFound
	GetVote(ctx context.Context, roundID uuid.UUID, userAddress string) (*models.Vote, error)

	// ListVotes returns every vote for the round, oldest first
	ListVotes(ctx context.Context, roundID uuid.UUID) ([]models.Vote, error)

	// AddActivity appends one feed entry
	AddActivity(ctx context.Context, entry *models.Activity) error

	// ListRecentActivity returns up to limit entries, newest first
	ListRecentActivity(ctx context.Context, limit int) ([]models.Activity, error)

	// SweepExpiredRounds deactivates every round whose end time has elapsed.
	// Idempotent and safe to call redundantly from many clients.
	SweepExpiredRounds(ctx context.Context) error

	// PruneActivity deletes entries older than the retention window
	PruneActivity(ctx context.Context) error
}
