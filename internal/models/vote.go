/**
 * @description
 * Vote database model and derived tally.
 * Maps to the 'user_votes' table in PostgreSQL.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/google/uuid
 *
 * @notes
 * - The (round_id, user_address) unique index is the authoritative exactly-once
 *   guard for vote casting; a duplicate insert must fail without touching the
 *   first vote.
 * - Tally is never persisted or incrementally cached: it is recomputed from the
 *   full vote set on every triggering event so clients that joined late or
 *   missed notifications cannot drift.
 */

package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoteDirection is a user's prediction of the next price move
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Valid reports whether the direction is one of the two admitted values
func (d VoteDirection) Valid() bool {
	return d == VoteUp || d == VoteDown
}

// Vote represents one account's prediction within one round
type Vote struct {
	ID          uuid.UUID     `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	RoundID     uuid.UUID     `gorm:"type:uuid;column:round_id;not null;uniqueIndex:idx_votes_round_user" json:"round_id"`
	UserAddress string        `gorm:"column:user_address;type:varchar(64);not null;uniqueIndex:idx_votes_round_user" json:"user_address"`
	Direction   VoteDirection `gorm:"column:vote_direction;type:varchar(8);not null" json:"vote_direction"`
	TokenSymbol string        `gorm:"column:token_symbol;type:varchar(16);not null" json:"token_symbol"`
	VotedAt     time.Time     `gorm:"column:voted_at;autoCreateTime" json:"voted_at"`
}

// TableName overrides the table name used by Vote to `user_votes`
func (Vote) TableName() string {
	return "user_votes"
}

// BeforeCreate ensures UUID is generated if not present
func (v *Vote) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return
}

// Tally is the aggregate up/down/total vote count for a round. Derived, never stored.
type Tally struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Total int `json:"total"`
}

// TallyOf recomputes the tally from a full vote set
func TallyOf(votes []Vote) Tally {
	t := Tally{}
	for _, v := range votes {
		switch v.Direction {
		case VoteUp:
			t.Up++
		case VoteDown:
			t.Down++
		}
	}
	t.Total = t.Up + t.Down
	return t
}

// Percentages returns the UP/DOWN split. UP is round(up/(up+down)*100) and
// DOWN is the remainder so the two always sum to 100; an empty tally splits 50/50.
func (t Tally) Percentages() (up int, down int) {
	if t.Up+t.Down == 0 {
		return 50, 50
	}
	up = int(math.Round(float64(t.Up) / float64(t.Up+t.Down) * 100))
	return up, 100 - up
}
