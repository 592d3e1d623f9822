/**
 * @description
 * Live activity feed: a bounded, newest-first, de-duplicated projection of the
 * append-only activity log, shared by every connected client.
 *
 * Seeded by one pull read (newest first, capped); thereafter each pushed
 * insert is prepended and the tail trimmed to the cap. Entries are
 * de-duplicated by identifier before prepending, so a replayed notification
 * after reconnect must not double an entry. The distinct-participants set
 * grows monotonically for the lifetime of the feed (never pruned).
 *
 * @dependencies
 * - internal/store: initial load
 * - internal/realtime: activity insert stream
 */

package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pricepulse-project/backend/internal/logger"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/realtime"
	"github.com/pricepulse-project/backend/internal/store"
)

// DefaultLimit is the visible feed capacity
const DefaultLimit = 20

// Feed is the client-visible activity log projection
type Feed struct {
	store store.Store
	bus   *realtime.Bus
	limit int

	mu           sync.RWMutex
	entries      []models.Activity
	seen         map[uuid.UUID]struct{}
	participants map[string]struct{}

	sub       *realtime.ActivitySubscription
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(st store.Store, bus *realtime.Bus, limit int) *Feed {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Feed{
		store:        st,
		bus:          bus,
		limit:        limit,
		seen:         make(map[uuid.UUID]struct{}),
		participants: make(map[string]struct{}),
		done:         make(chan struct{}),
	}
}

// Start seeds the feed with one pull read and begins consuming pushed inserts.
// A failed initial load leaves the feed empty but live; it fills from pushes.
func (f *Feed) Start(ctx context.Context) error {
	f.sub = f.bus.ActivityInserts()

	initial, err := f.store.ListRecentActivity(ctx, f.limit)
	if err != nil {
		logger.Error("feed: initial activity load failed: %v", err)
	} else {
		f.mu.Lock()
		for _, entry := range initial {
			if _, dup := f.seen[entry.ID]; dup {
				continue
			}
			f.seen[entry.ID] = struct{}{}
			f.entries = append(f.entries, entry)
			f.participants[entry.UserAddress] = struct{}{}
		}
		f.mu.Unlock()
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case <-f.done:
				return
			case entry, ok := <-f.sub.C:
				if !ok {
					return
				}
				f.prepend(entry)
			}
		}
	}()
	return nil
}

// prepend installs a pushed entry at the head and trims the tail to the cap
func (f *Feed) prepend(entry models.Activity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, dup := f.seen[entry.ID]; dup {
		return
	}
	f.seen[entry.ID] = struct{}{}
	f.participants[entry.UserAddress] = struct{}{}

	head := make([]models.Activity, 0, f.limit)
	head = append(head, entry)
	if len(f.entries) > f.limit-1 {
		head = append(head, f.entries[:f.limit-1]...)
	} else {
		head = append(head, f.entries...)
	}
	f.entries = head
}

// Entries returns the visible feed, newest first
func (f *Feed) Entries() []models.Activity {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Activity, len(f.entries))
	copy(out, f.entries)
	return out
}

// Participants returns the count of distinct addresses seen by this feed
func (f *Feed) Participants() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.participants)
}

// Close releases the activity subscription. Required on teardown.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
		if f.sub != nil {
			f.sub.Close()
		}
		f.wg.Wait()
	})
}
