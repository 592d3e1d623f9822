package votes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/store"
)

const (
	addrA = "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA1111"
	addrB = "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB2222"
)

func activeRound(t *testing.T, st store.Store) *models.Round {
	t.Helper()
	round, err := st.CreateRound(context.Background(), "BTC", 300)
	if err != nil {
		t.Fatalf("failed to create round: %v", err)
	}
	return round
}

func TestCastRejectsWithoutWallet(t *testing.T) {
	st := store.NewMemory(nil)
	ledger := NewLedger(st)
	round := activeRound(t, st)

	if _, err := ledger.Cast(context.Background(), round, "", models.VoteUp); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err=%v want ErrNotConnected", err)
	}
}

func TestCastRejectsInactiveAndExpiredRounds(t *testing.T) {
	st := store.NewMemory(nil)
	ledger := NewLedger(st)

	if _, err := ledger.Cast(context.Background(), nil, addrA, models.VoteUp); !errors.Is(err, ErrRoundInactive) {
		t.Fatalf("nil round: err=%v want ErrRoundInactive", err)
	}

	closed := &models.Round{ID: uuid.New(), TokenSymbol: "BTC", IsActive: false, EndTime: time.Now().Add(time.Minute)}
	if _, err := ledger.Cast(context.Background(), closed, addrA, models.VoteUp); !errors.Is(err, ErrRoundInactive) {
		t.Fatalf("closed round: err=%v want ErrRoundInactive", err)
	}

	// Countdown at zero disables voting even while the store still reports the
	// round active; the sweep may simply not have run yet.
	stale := &models.Round{ID: uuid.New(), TokenSymbol: "BTC", IsActive: true, EndTime: time.Now().Add(-time.Second)}
	if _, err := ledger.Cast(context.Background(), stale, addrA, models.VoteUp); !errors.Is(err, ErrRoundInactive) {
		t.Fatalf("expired round: err=%v want ErrRoundInactive", err)
	}
}

func TestCastRejectsBadDirection(t *testing.T) {
	st := store.NewMemory(nil)
	ledger := NewLedger(st)
	round := activeRound(t, st)

	if _, err := ledger.Cast(context.Background(), round, addrA, models.VoteDirection("sideways")); !errors.Is(err, ErrBadDirection) {
		t.Fatalf("err=%v want ErrBadDirection", err)
	}
}

func TestCastAdmitsOncePerRoundAndAccount(t *testing.T) {
	st := store.NewMemory(nil)
	ledger := NewLedger(st)
	round := activeRound(t, st)
	ctx := context.Background()

	first, err := ledger.Cast(ctx, round, addrA, models.VoteUp)
	if err != nil {
		t.Fatalf("first cast failed: %v", err)
	}

	if _, err := ledger.Cast(ctx, round, addrA, models.VoteDown); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("second cast err=%v want ErrAlreadyVoted", err)
	}

	// The first vote must be untouched by the rejected attempt
	kept, err := ledger.CurrentVote(ctx, round.ID, addrA)
	if err != nil || kept == nil {
		t.Fatalf("vote lookup failed: vote=%v err=%v", kept, err)
	}
	if kept.Direction != models.VoteUp || !kept.VotedAt.Equal(first.VotedAt) {
		t.Fatalf("first vote changed: %+v", kept)
	}
}

func TestCastSurfacesStoreDuplicateRace(t *testing.T) {
	st := store.NewMemory(nil)
	ledger := NewLedger(st)
	round := activeRound(t, st)
	ctx := context.Background()

	// Another client wins the race directly at the store; the ledger's local
	// precondition check never saw it.
	if _, err := st.CastVote(ctx, round.ID, addrA, models.VoteDown, "BTC"); err != nil {
		t.Fatalf("direct cast failed: %v", err)
	}

	// Bypass the already-voted precondition by racing through a second ledger
	racing := NewLedger(&blindStore{Store: st})
	if _, err := racing.Cast(ctx, round, addrA, models.VoteUp); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("err=%v want ErrAlreadyVoted from duplicate race", err)
	}

	tally, err := ledger.Tally(ctx, round.ID)
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if tally.Down != 1 || tally.Total != 1 {
		t.Fatalf("tally=%+v want the first vote only", tally)
	}
}

// blindStore hides existing votes from GetVote so the local precondition
// passes and the store-side uniqueness guard is what rejects the cast
type blindStore struct {
	store.Store
}

func (b *blindStore) GetVote(ctx context.Context, roundID uuid.UUID, userAddress string) (*models.Vote, error) {
	return nil, store.ErrNotFound
}

func TestCastRecordsVoteActivity(t *testing.T) {
	st := store.NewMemory(nil)
	ledger := NewLedger(st)
	round := activeRound(t, st)
	ctx := context.Background()

	if _, err := ledger.Cast(ctx, round, addrA, models.VoteDown); err != nil {
		t.Fatalf("cast failed: %v", err)
	}

	entries, err := st.ListRecentActivity(ctx, 20)
	if err != nil {
		t.Fatalf("activity lookup failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != models.ActivityVoteDown {
		t.Fatalf("entries=%+v want one vote_down entry", entries)
	}
	if entries[0].RoundID == nil || *entries[0].RoundID != round.ID {
		t.Fatalf("activity round ref=%v want %s", entries[0].RoundID, round.ID)
	}
}

func TestVoteScenario(t *testing.T) {
	st := store.NewMemory(nil)
	ledger := NewLedger(st)
	ctx := context.Background()

	round := activeRound(t, st)
	if round.DurationSeconds != 300 {
		t.Fatalf("duration=%d want 300", round.DurationSeconds)
	}

	if _, err := ledger.Cast(ctx, round, addrA, models.VoteUp); err != nil {
		t.Fatalf("first cast failed: %v", err)
	}
	tally, _ := ledger.Tally(ctx, round.ID)
	if tally.Up != 1 || tally.Down != 0 || tally.Total != 1 {
		t.Fatalf("tally=%+v want {1,0,1}", tally)
	}
	vote, _ := ledger.CurrentVote(ctx, round.ID, addrA)
	if vote == nil || vote.Direction != models.VoteUp {
		t.Fatalf("vote=%+v want up", vote)
	}

	if _, err := ledger.Cast(ctx, round, addrB, models.VoteDown); err != nil {
		t.Fatalf("second cast failed: %v", err)
	}
	tally, _ = ledger.Tally(ctx, round.ID)
	if tally.Up != 1 || tally.Down != 1 || tally.Total != 2 {
		t.Fatalf("tally=%+v want {1,1,2}", tally)
	}
	up, down := tally.Percentages()
	if up != 50 || down != 50 {
		t.Fatalf("split=(%d,%d) want (50,50)", up, down)
	}

	if _, err := ledger.Cast(ctx, round, addrA, models.VoteDown); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("repeat cast err=%v want ErrAlreadyVoted", err)
	}
	tally, _ = ledger.Tally(ctx, round.ID)
	if tally.Up != 1 || tally.Down != 1 || tally.Total != 2 {
		t.Fatalf("tally changed by rejected cast: %+v", tally)
	}
}
