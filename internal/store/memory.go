/**
 * @description
 * In-memory Round Store. Backs local development and the client-core tests;
 * honors the same contract as the Postgres store, including the
 * (round, account) uniqueness guard and full-record publication on writes.
 *
 * @dependencies
 * - internal/models
 * - internal/realtime: channel layout
 */

package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/realtime"
)

// PublishFunc delivers a full-record payload to a bus channel. Nil disables
// notifications (pure-logic tests).
type PublishFunc func(ctx context.Context, channel string, payload []byte)

// Memory is a mutex-guarded Store living entirely in process
type Memory struct {
	publish PublishFunc

	mu       sync.Mutex
	rounds   map[uuid.UUID]*models.Round
	votes    map[uuid.UUID][]models.Vote // by round
	activity []models.Activity
	roundSeq int64
}

func NewMemory(publish PublishFunc) *Memory {
	return &Memory{
		publish: publish,
		rounds:  make(map[uuid.UUID]*models.Round),
		votes:   make(map[uuid.UUID][]models.Vote),
	}
}

func (m *Memory) CreateRound(ctx context.Context, tokenSymbol string, durationSeconds int) (*models.Round, error) {
	if durationSeconds <= 0 {
		durationSeconds = models.DefaultRoundDuration
	}
	now := time.Now().UTC()

	m.mu.Lock()
	m.roundSeq++
	round := &models.Round{
		ID:              uuid.New(),
		RoundNumber:     m.roundSeq,
		TokenSymbol:     tokenSymbol,
		StartTime:       now,
		EndTime:         now.Add(time.Duration(durationSeconds) * time.Second),
		DurationSeconds: durationSeconds,
		IsActive:        true,
		CreatedAt:       now,
	}
	m.rounds[round.ID] = round
	snapshot := *round
	m.mu.Unlock()

	m.emit(ctx, realtime.RoundChannel(tokenSymbol), snapshot)
	return &snapshot, nil
}

func (m *Memory) GetActiveRound(ctx context.Context, tokenSymbol string) (*models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.Round
	for _, r := range m.rounds {
		if r.TokenSymbol != tokenSymbol || !r.IsActive {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) ||
			(r.CreatedAt.Equal(latest.CreatedAt) && r.RoundNumber > latest.RoundNumber) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	snapshot := *latest
	return &snapshot, nil
}

func (m *Memory) CloseRound(ctx context.Context, roundID uuid.UUID) error {
	m.mu.Lock()
	round, ok := m.rounds[roundID]
	if !ok || !round.IsActive {
		m.mu.Unlock()
		return nil
	}
	round.IsActive = false
	snapshot := *round
	m.mu.Unlock()

	m.emit(ctx, realtime.RoundChannel(snapshot.TokenSymbol), snapshot)
	return nil
}

func (m *Memory) CastVote(ctx context.Context, roundID uuid.UUID, userAddress string, direction models.VoteDirection, tokenSymbol string) (*models.Vote, error) {
	m.mu.Lock()
	for _, v := range m.votes[roundID] {
		if v.UserAddress == userAddress {
			m.mu.Unlock()
			return nil, ErrDuplicateVote
		}
	}
	vote := models.Vote{
		ID:          uuid.New(),
		RoundID:     roundID,
		UserAddress: userAddress,
		Direction:   direction,
		TokenSymbol: tokenSymbol,
		VotedAt:     time.Now().UTC(),
	}
	m.votes[roundID] = append(m.votes[roundID], vote)
	m.mu.Unlock()

	m.emit(ctx, realtime.VoteChannel(roundID), vote)
	return &vote, nil
}

func (m *Memory) GetVote(ctx context.Context, roundID uuid.UUID, userAddress string) (*models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.votes[roundID] {
		if v.UserAddress == userAddress {
			snapshot := v
			return &snapshot, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListVotes(ctx context.Context, roundID uuid.UUID) ([]models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Vote, len(m.votes[roundID]))
	copy(out, m.votes[roundID])
	return out, nil
}

func (m *Memory) AddActivity(ctx context.Context, entry *models.Activity) error {
	m.mu.Lock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.activity = append(m.activity, *entry)
	snapshot := *entry
	m.mu.Unlock()

	m.emit(ctx, realtime.ActivityChannel, snapshot)
	return nil
}

func (m *Memory) ListRecentActivity(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Activity, len(m.activity))
	copy(out, m.activity)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SweepExpiredRounds(ctx context.Context) error {
	now := time.Now().UTC()

	m.mu.Lock()
	var closed []models.Round
	for _, r := range m.rounds {
		if r.IsActive && !r.EndTime.After(now) {
			r.IsActive = false
			closed = append(closed, *r)
		}
	}
	m.mu.Unlock()

	for _, r := range closed {
		m.emit(ctx, realtime.RoundChannel(r.TokenSymbol), r)
	}
	return nil
}

func (m *Memory) PruneActivity(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-activityRetention)

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.activity[:0]
	for _, a := range m.activity {
		if a.CreatedAt.After(cutoff) {
			kept = append(kept, a)
		}
	}
	m.activity = kept
	return nil
}

func (m *Memory) emit(ctx context.Context, channel string, record interface{}) {
	if m.publish == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return
	}
	m.publish(ctx, channel, payload)
}
