/**
 * @description
 * Market-data poller. Refreshes the spot price on a short interval and the
 * full market snapshot on a longer one, retaining the last successful result
 * when a refresh fails (availability over freshness). This is the one path
 * that deliberately swallows errors; the vote path fails loudly instead.
 *
 * The snapshot is also cached in Redis so the API tier can serve it without
 * touching the provider.
 *
 * @dependencies
 * - internal/marketdata (client)
 * - github.com/redis/go-redis/v9: snapshot cache
 */

package marketdata

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricepulse-project/backend/internal/logger"
)

const (
	// SnapshotCacheKey holds the serialized last-good snapshot in Redis
	SnapshotCacheKey = "market:snapshot"
	snapshotCacheTTL = 5 * time.Minute
)

// Poller keeps a last-known-good view of the market fresh in the background
type Poller struct {
	client  *Client
	redis   *redis.Client
	coinIDs []string

	spotEvery     time.Duration
	snapshotEvery time.Duration

	mu        sync.RWMutex
	snapshot  []Snapshot
	spot      map[string]float64
	updatedAt time.Time
}

func NewPoller(client *Client, rdb *redis.Client, coinIDs []string, spotEvery, snapshotEvery time.Duration) *Poller {
	if spotEvery <= 0 {
		spotEvery = 30 * time.Second
	}
	if snapshotEvery <= 0 {
		snapshotEvery = time.Minute
	}
	return &Poller{
		client:        client,
		redis:         rdb,
		coinIDs:       coinIDs,
		spotEvery:     spotEvery,
		snapshotEvery: snapshotEvery,
		spot:          make(map[string]float64),
	}
}

// Run polls until the context is cancelled. An initial snapshot fetch happens
// immediately so the API has data as soon as the worker is up.
func (p *Poller) Run(ctx context.Context) {
	p.refreshSnapshot(ctx)

	spotTicker := time.NewTicker(p.spotEvery)
	defer spotTicker.Stop()
	snapshotTicker := time.NewTicker(p.snapshotEvery)
	defer snapshotTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-spotTicker.C:
			p.refreshSpot(ctx)
		case <-snapshotTicker.C:
			p.refreshSnapshot(ctx)
		}
	}
}

func (p *Poller) refreshSnapshot(ctx context.Context) {
	snapshots, err := p.client.GetMarketSnapshot(ctx, p.coinIDs)
	if err != nil {
		// Keep serving the stale snapshot rather than erroring the UI
		logger.Error("marketdata: snapshot refresh failed: %v", err)
		return
	}

	p.mu.Lock()
	p.snapshot = snapshots
	for _, s := range snapshots {
		p.spot[s.CoinID] = s.Price
	}
	p.updatedAt = time.Now()
	p.mu.Unlock()

	if p.redis != nil {
		if payload, err := json.Marshal(snapshots); err == nil {
			if err := p.redis.Set(ctx, SnapshotCacheKey, payload, snapshotCacheTTL).Err(); err != nil {
				logger.Error("marketdata: failed to cache snapshot: %v", err)
			}
		}
	}
}

func (p *Poller) refreshSpot(ctx context.Context) {
	for _, coinID := range p.coinIDs {
		price, err := p.client.GetSpotPrice(ctx, coinID)
		if err != nil {
			logger.Error("marketdata: spot refresh failed for %s: %v", coinID, err)
			continue
		}
		p.mu.Lock()
		p.spot[coinID] = price
		p.updatedAt = time.Now()
		p.mu.Unlock()
	}
}

// Snapshot returns the last successfully fetched market snapshot and its age
func (p *Poller) Snapshot() ([]Snapshot, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Snapshot, len(p.snapshot))
	copy(out, p.snapshot)
	return out, p.updatedAt
}

// Spot returns the last known price for a coin, or false when never fetched
func (p *Poller) Spot(coinID string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	price, ok := p.spot[coinID]
	return price, ok
}
