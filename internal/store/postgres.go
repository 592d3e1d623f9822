/**
 * @description
 * PostgreSQL implementation of the Round Store over GORM, with Redis pub/sub
 * as the change-notification bus. Every successful write publishes the full
 * changed record, never a diff, so a notification gives subscribers the same
 * freshness as a direct re-read.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/redis/go-redis/v9
 * - github.com/jackc/pgconn: classification of unique violations on vote insert
 * - internal/realtime: channel layout
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pricepulse-project/backend/internal/logger"
	"github.com/pricepulse-project/backend/internal/models"
	"github.com/pricepulse-project/backend/internal/realtime"
)

const (
	// uniqueViolation is the Postgres error code raised by the
	// (round_id, user_address) unique index on user_votes
	uniqueViolation = "23505"

	// activityRetention mirrors the backend's cleanup_old_activity job
	activityRetention = 24 * time.Hour
)

// PostgresStore is the production Store backed by GORM + Redis
type PostgresStore struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewPostgresStore(db *gorm.DB, rdb *redis.Client) *PostgresStore {
	return &PostgresStore{db: db, redis: rdb}
}

// Migrate creates or updates the three backing tables
func (s *PostgresStore) Migrate() error {
	return s.db.AutoMigrate(&models.Round{}, &models.Vote{}, &models.Activity{})
}

// CreateRound opens a new active round for the symbol.
// Creation is deliberately not guarded by mutual exclusion: racing creators are
// tolerated, and the sweep plus next lookup resolve any brief ambiguity.
func (s *PostgresStore) CreateRound(ctx context.Context, tokenSymbol string, durationSeconds int) (*models.Round, error) {
	if durationSeconds <= 0 {
		durationSeconds = models.DefaultRoundDuration
	}

	now := time.Now().UTC()
	round := &models.Round{
		TokenSymbol:     tokenSymbol,
		StartTime:       now,
		EndTime:         now.Add(time.Duration(durationSeconds) * time.Second),
		DurationSeconds: durationSeconds,
		IsActive:        true,
	}

	if err := s.db.WithContext(ctx).Create(round).Error; err != nil {
		return nil, err
	}

	s.publish(ctx, realtime.RoundChannel(tokenSymbol), round)
	return round, nil
}

// GetActiveRound returns the most recently created active round for the symbol
func (s *PostgresStore) GetActiveRound(ctx context.Context, tokenSymbol string) (*models.Round, error) {
	var round models.Round
	err := s.db.WithContext(ctx).
		Where("token_symbol = ? AND is_active = ?", tokenSymbol, true).
		Order("created_at DESC").
		First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// CloseRound flips the round inactive and publishes the updated record
func (s *PostgresStore) CloseRound(ctx context.Context, roundID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Model(&models.Round{}).
		Where("id = ? AND is_active = ?", roundID, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Already closed; nothing to announce
		return nil
	}

	var round models.Round
	if err := s.db.WithContext(ctx).First(&round, "id = ?", roundID).Error; err == nil {
		s.publish(ctx, realtime.RoundChannel(round.TokenSymbol), &round)
	}
	return nil
}

// CastVote records one account's prediction. The unique index on
// (round_id, user_address) is the authoritative exactly-once guard.
func (s *PostgresStore) CastVote(ctx context.Context, roundID uuid.UUID, userAddress string, direction models.VoteDirection, tokenSymbol string) (*models.Vote, error) {
	vote := &models.Vote{
		RoundID:     roundID,
		UserAddress: userAddress,
		Direction:   direction,
		TokenSymbol: tokenSymbol,
	}

	if err := s.db.WithContext(ctx).Create(vote).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateVote
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateVote
		}
		return nil, err
	}

	s.publish(ctx, realtime.VoteChannel(roundID), vote)
	return vote, nil
}

// GetVote returns the account's vote for the round, or ErrNotFound
func (s *PostgresStore) GetVote(ctx context.Context, roundID uuid.UUID, userAddress string) (*models.Vote, error) {
	var vote models.Vote
	err := s.db.WithContext(ctx).
		Where("round_id = ? AND user_address = ?", roundID, userAddress).
		First(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &vote, nil
}

// ListVotes returns every vote for the round, oldest first
func (s *PostgresStore) ListVotes(ctx context.Context, roundID uuid.UUID) ([]models.Vote, error) {
	var votes []models.Vote
	if err := s.db.WithContext(ctx).
		Where("round_id = ?", roundID).
		Order("voted_at ASC").
		Find(&votes).Error; err != nil {
		return nil, err
	}
	return votes, nil
}

// AddActivity appends one feed entry and publishes it
func (s *PostgresStore) AddActivity(ctx context.Context, entry *models.Activity) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}
	s.publish(ctx, realtime.ActivityChannel, entry)
	return nil
}

// ListRecentActivity returns up to limit entries, newest first
func (s *PostgresStore) ListRecentActivity(ctx context.Context, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []models.Activity
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// SweepExpiredRounds deactivates every round whose end time has elapsed,
// announcing each closure on its symbol's round channel. Idempotent.
func (s *PostgresStore) SweepExpiredRounds(ctx context.Context) error {
	now := time.Now().UTC()

	var expired []models.Round
	if err := s.db.WithContext(ctx).
		Where("is_active = ? AND end_time <= ?", true, now).
		Find(&expired).Error; err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).
		Model(&models.Round{}).
		Where("is_active = ? AND end_time <= ?", true, now).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}

	for i := range expired {
		expired[i].IsActive = false
		s.publish(ctx, realtime.RoundChannel(expired[i].TokenSymbol), &expired[i])
	}
	return nil
}

// PruneActivity deletes entries older than the retention window
func (s *PostgresStore) PruneActivity(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-activityRetention)
	return s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.Activity{}).Error
}

// publish sends the full record to a bus channel. Notification delivery is
// best-effort: a failed publish never rolls back the write it announces.
func (s *PostgresStore) publish(ctx context.Context, channel string, record interface{}) {
	payload, err := json.Marshal(record)
	if err != nil {
		logger.Error("store: failed to marshal %s payload: %v", channel, err)
		return
	}
	if err := s.redis.Publish(ctx, channel, payload).Err(); err != nil {
		logger.Error("store: failed to publish to %s: %v", channel, err)
	}
}
