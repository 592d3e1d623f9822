/**
 * @description
 * Typed subscription layer over the raw pub/sub hub.
 * Decodes full-record notification payloads into model structs and hands out
 * disposable subscription handles.
 *
 * The handles are the unit the synchronizer's registry manages: Close releases
 * the underlying hub subscription exactly once, and no deliveries reach the
 * channel after Close returns the handle to the pool of released handles.
 *
 * @dependencies
 * - internal/realtime (hub)
 * - internal/models
 */

package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pricepulse-project/backend/internal/logger"
	"github.com/pricepulse-project/backend/internal/models"
)

// Bus exposes the three change streams the client core consumes:
// round-level changes per symbol, vote inserts per round, activity inserts.
type Bus struct {
	hub *Hub
}

func NewBus(hub *Hub) *Bus {
	return &Bus{hub: hub}
}

// RoundSubscription delivers round inserts/updates for one token symbol
type RoundSubscription struct {
	C     <-chan models.Round
	close func()
}

func (s *RoundSubscription) Close() { s.close() }

// VoteSubscription delivers vote inserts for one round
type VoteSubscription struct {
	C     <-chan models.Vote
	close func()
}

func (s *VoteSubscription) Close() { s.close() }

// ActivitySubscription delivers every activity insert
type ActivitySubscription struct {
	C     <-chan models.Activity
	close func()
}

func (s *ActivitySubscription) Close() { s.close() }

// RoundChanges opens the per-symbol round stream. The handle is expected to
// live for the whole session; it is not torn down on rollover.
func (b *Bus) RoundChanges(tokenSymbol string) *RoundSubscription {
	raw, cancel := b.hub.Subscribe(RoundChannel(tokenSymbol))
	out := make(chan models.Round, 64)
	go func() {
		defer close(out)
		for payload := range raw {
			var round models.Round
			if err := json.Unmarshal(payload, &round); err != nil {
				logger.Error("realtime: dropping malformed round payload: %v", err)
				continue
			}
			select {
			case out <- round:
			default:
				// Consumer stalled with the buffer full; drop. Notifications
				// are invalidation signals, a later one triggers the same re-read.
			}
		}
	}()
	return &RoundSubscription{C: out, close: cancel}
}

// VoteInserts opens the vote stream scoped to one round identifier. Callers
// must Close it and open a fresh one whenever the active round changes identity.
func (b *Bus) VoteInserts(roundID uuid.UUID) *VoteSubscription {
	raw, cancel := b.hub.Subscribe(VoteChannel(roundID))
	out := make(chan models.Vote, 64)
	go func() {
		defer close(out)
		for payload := range raw {
			var vote models.Vote
			if err := json.Unmarshal(payload, &vote); err != nil {
				logger.Error("realtime: dropping malformed vote payload: %v", err)
				continue
			}
			select {
			case out <- vote:
			default:
			}
		}
	}()
	return &VoteSubscription{C: out, close: cancel}
}

// ActivityInserts opens the global activity stream
func (b *Bus) ActivityInserts() *ActivitySubscription {
	raw, cancel := b.hub.Subscribe(ActivityChannel)
	out := make(chan models.Activity, 64)
	go func() {
		defer close(out)
		for payload := range raw {
			var activity models.Activity
			if err := json.Unmarshal(payload, &activity); err != nil {
				logger.Error("realtime: dropping malformed activity payload: %v", err)
				continue
			}
			select {
			case out <- activity:
			default:
			}
		}
	}()
	return &ActivitySubscription{C: out, close: cancel}
}
