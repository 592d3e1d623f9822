package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTallyOfCountsDirections(t *testing.T) {
	roundID := uuid.New()
	votes := []Vote{
		{RoundID: roundID, UserAddress: "0xA", Direction: VoteUp},
		{RoundID: roundID, UserAddress: "0xB", Direction: VoteDown},
		{RoundID: roundID, UserAddress: "0xC", Direction: VoteUp},
	}

	tally := TallyOf(votes)
	if tally.Up != 2 || tally.Down != 1 || tally.Total != 3 {
		t.Fatalf("tally=%+v want up=2 down=1 total=3", tally)
	}
	if tally.Total != tally.Up+tally.Down {
		t.Fatalf("total %d != up+down %d", tally.Total, tally.Up+tally.Down)
	}
}

func TestPercentagesSumToHundred(t *testing.T) {
	cases := []struct {
		up, down         int
		wantUp, wantDown int
	}{
		{0, 0, 50, 50},
		{1, 1, 50, 50},
		{1, 0, 100, 0},
		{0, 3, 0, 100},
		{1, 2, 33, 67},
		{2, 1, 67, 33},
	}

	for _, tc := range cases {
		up, down := (Tally{Up: tc.up, Down: tc.down, Total: tc.up + tc.down}).Percentages()
		if up != tc.wantUp || down != tc.wantDown {
			t.Fatalf("up=%d down=%d: got (%d,%d) want (%d,%d)", tc.up, tc.down, up, down, tc.wantUp, tc.wantDown)
		}
		if up+down != 100 {
			t.Fatalf("up=%d down=%d: percentages sum to %d", tc.up, tc.down, up+down)
		}
	}
}

func TestRoundRemainingClampsAtZero(t *testing.T) {
	now := time.Now()
	round := Round{EndTime: now.Add(90 * time.Second)}
	if got := round.Remaining(now); got != 90 {
		t.Fatalf("remaining=%d want 90", got)
	}

	expired := Round{EndTime: now.Add(-time.Second)}
	if got := expired.Remaining(now); got != 0 {
		t.Fatalf("remaining=%d want 0", got)
	}
	if !expired.Expired(now) {
		t.Fatal("round past its end time should report expired")
	}
}
