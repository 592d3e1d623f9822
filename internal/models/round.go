/**
 * @description
 * Voting round database model.
 * Maps to the 'voting_rounds' table in PostgreSQL.
 * A round is a fixed-duration window during which predictions for one token may be cast.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 *
 * @notes
 * - At most one active round per token symbol at any instant (eventual; the
 *   expiry sweep closes stale rounds and clients tolerate a brief overlap).
 * - Rounds are never deleted or reactivated; only IsActive ever changes.
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultRoundDuration is the round length used when the caller does not specify one.
const DefaultRoundDuration = 300

// Round represents one voting period for one token symbol
type Round struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	RoundNumber     int64     `gorm:"column:round_number;autoIncrement" json:"round_number"`
	TokenSymbol     string    `gorm:"column:token_symbol;type:varchar(16);not null;index:idx_rounds_symbol_active" json:"token_symbol"`
	StartTime       time.Time `gorm:"column:start_time;not null" json:"start_time"`
	EndTime         time.Time `gorm:"column:end_time;not null" json:"end_time"`
	DurationSeconds int       `gorm:"column:duration_seconds;not null;default:300" json:"duration_seconds"`
	IsActive        bool      `gorm:"column:is_active;not null;default:true;index:idx_rounds_symbol_active" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName overrides the table name used by Round to `voting_rounds`
func (Round) TableName() string {
	return "voting_rounds"
}

// BeforeCreate ensures UUID is generated if not present
func (r *Round) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// Remaining returns the seconds left in the round as observed at `now`,
// clamped at zero. Clients derive the countdown from their local clock; they
// never trust a server-pushed countdown.
func (r *Round) Remaining(now time.Time) int {
	remaining := int(r.EndTime.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the round's deadline has passed at `now`,
// independent of whether the store-side sweep has flipped IsActive yet.
func (r *Round) Expired(now time.Time) bool {
	return !r.EndTime.After(now)
}
