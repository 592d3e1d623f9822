/**
 * @description
 * Activity database model.
 * Maps to the 'user_activity' table in PostgreSQL.
 * Append-only log of user-visible events (join/vote/buy) shared by all clients.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityKind classifies a feed entry
type ActivityKind string

const (
	ActivityJoin     ActivityKind = "join"
	ActivityVoteUp   ActivityKind = "vote_up"
	ActivityVoteDown ActivityKind = "vote_down"
	ActivityBuy      ActivityKind = "buy"
)

// Activity represents one user-visible event for the live feed
type Activity struct {
	ID          uuid.UUID    `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	UserAddress string       `gorm:"column:user_address;type:varchar(64);not null" json:"user_address"`
	Kind        ActivityKind `gorm:"column:activity_type;type:varchar(16);not null" json:"activity_type"`
	TokenSymbol string       `gorm:"column:token_symbol;type:varchar(16)" json:"token_symbol,omitempty"`
	Amount      *float64     `gorm:"column:amount;type:decimal" json:"amount,omitempty"`
	RoundID     *uuid.UUID   `gorm:"type:uuid;column:round_id" json:"round_id,omitempty"`
	CreatedAt   time.Time    `gorm:"autoCreateTime;index:idx_activity_created" json:"created_at"`
}

// TableName overrides the table name used by Activity to `user_activity`
func (Activity) TableName() string {
	return "user_activity"
}

// BeforeCreate ensures UUID is generated if not present
func (a *Activity) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
