package realtime

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Pub/sub channel layout. Every store write publishes the full changed record
// to one of these channels; notifications never carry diffs so subscribers can
// treat them as cache-invalidation signals with full-re-read freshness.
const (
	// ActivityChannel receives every activity insert, globally.
	ActivityChannel = "activity"

	// PriceUpdateChannel receives live spot-price ticks from the worker.
	PriceUpdateChannel = "market:price_updates"
)

// RoundChannel is the per-symbol channel for round inserts and updates
func RoundChannel(tokenSymbol string) string {
	return fmt.Sprintf("rounds:%s", strings.ToUpper(tokenSymbol))
}

// VoteChannel is the per-round channel for vote inserts
func VoteChannel(roundID uuid.UUID) string {
	return fmt.Sprintf("votes:%s", roundID)
}
