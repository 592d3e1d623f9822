/**
 * @description
 * Vote Ledger: admits one vote per (round, account) and derives tallies.
 *
 * Precondition violations are classified locally and rejected before any store
 * contact; the store's uniqueness constraint remains the authoritative
 * exactly-once guard for races the local checks cannot see. A duplicate race
 * surfaces as a plain failure with no retry; the repeat attempt re-hits the
 * already-voted precondition once state resynchronizes.
 *
 * @dependencies
 * - internal/store
 * - internal/models
 */

package votes

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pricepulse-project/backend/internal/logger"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/store"
)

// User-actionable rejections, detected before any network call
var (
	ErrNotConnected  = errors.New("votes: connect your wallet to vote")
	ErrAlreadyVoted  = errors.New("votes: you have already voted in this round")
	ErrRoundInactive = errors.New("votes: no active voting round available")
	ErrVoteInFlight  = errors.New("votes: a vote is already being submitted")
	ErrBadDirection  = errors.New("votes: direction must be up or down")
)

// Ledger routes vote casts through the store and recomputes aggregate tallies
type Ledger struct {
	store store.Store

	mu       sync.Mutex
	inFlight map[string]struct{} // accounts with a cast currently suspended
}

func NewLedger(st store.Store) *Ledger {
	return &Ledger{
		store:    st,
		inFlight: make(map[string]struct{}),
	}
}

// Cast records one account's prediction for the round.
// Preconditions, in order: direction valid, wallet connected, round active and
// not past its deadline by the local clock, no recorded vote, no cast in flight.
// On success it appends a vote_up/vote_down activity entry as a best-effort
// side effect; activity failure never rolls back the vote.
func (l *Ledger) Cast(ctx context.Context, round *models.Round, userAddress string, direction models.VoteDirection) (*models.Vote, error) {
	if !direction.Valid() {
		return nil, ErrBadDirection
	}
	if userAddress == "" {
		return nil, ErrNotConnected
	}
	if round == nil || !round.IsActive || round.Expired(time.Now()) {
		return nil, ErrRoundInactive
	}

	if existing, err := l.CurrentVote(ctx, round.ID, userAddress); err == nil && existing != nil {
		return nil, ErrAlreadyVoted
	}

	if !l.begin(userAddress) {
		return nil, ErrVoteInFlight
	}
	defer l.end(userAddress)

	vote, err := l.store.CastVote(ctx, round.ID, userAddress, direction, round.TokenSymbol)
	if errors.Is(err, store.ErrDuplicateVote) {
		// Lost the race to ourselves on another tab; the first vote stands
		return nil, ErrAlreadyVoted
	}
	if err != nil {
		return nil, err
	}

	kind := models.ActivityVoteUp
	if direction == models.VoteDown {
		kind = models.ActivityVoteDown
	}
	roundID := round.ID
	entry := &models.Activity{
		UserAddress: userAddress,
		Kind:        kind,
		TokenSymbol: round.TokenSymbol,
		RoundID:     &roundID,
	}
	if err := l.store.AddActivity(ctx, entry); err != nil {
		logger.Error("votes: failed to record vote activity for %s: %v", userAddress, err)
	}

	return vote, nil
}

// Tally recomputes the aggregate from the full vote set for the round.
// Recompute-over-increment: correctness under concurrent writes beats latency.
func (l *Ledger) Tally(ctx context.Context, roundID uuid.UUID) (models.Tally, error) {
	allVotes, err := l.store.ListVotes(ctx, roundID)
	if err != nil {
		return models.Tally{}, err
	}
	return models.TallyOf(allVotes), nil
}

// CurrentVote is the idempotent own-vote lookup; absent is (nil, nil)
func (l *Ledger) CurrentVote(ctx context.Context, roundID uuid.UUID, userAddress string) (*models.Vote, error) {
	vote, err := l.store.GetVote(ctx, roundID, userAddress)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return vote, nil
}

func (l *Ledger) begin(userAddress string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inFlight[userAddress]; busy {
		return false
	}
	l.inFlight[userAddress] = struct{}{}
	return true
}

func (l *Ledger) end(userAddress string) {
	l.mu.Lock()
	delete(l.inFlight, userAddress)
	l.mu.Unlock()
}
