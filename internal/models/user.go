package models

import (
	"time"

	"github.com/google/uuid"
)

// Ban types
const (
	BanTypePermanent = "permanent"
	BanTypeTemporary = "temporary"
)

type User struct {
	ID             uuid.UUID `json:"id"`
	TelegramUserID int64     `json:"telegram_user_id"`
	Username       *string   `json:"username,omitempty"`
	FirstName      *string   `json:"first_name,omitempty"`
	LastName       *string   `json:"last_name,omitempty"`

	// Verified accounts get the higher per-trade limit.
	Verified bool `json:"verified"`

	// Ban state. A temporary ban whose expiry has passed is inactive and is
	// cleared on next access by the ban guard.
	IsBanned     bool       `json:"is_banned"`
	BanType      *string    `json:"ban_type,omitempty"`
	BanExpiresAt *time.Time `json:"ban_expires_at,omitempty"`
	BanReason    *string    `json:"ban_reason,omitempty"`

	// Reputation counters, maintained by the review ledger.
	Upvotes         int `json:"upvotes"`
	Downvotes       int `json:"downvotes"`
	CompletedTrades int `json:"completed_trades"`

	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Reputation tiers, best first.
const (
	TierTopTrader   = "Top Trader"
	TierExperienced = "Experienced"
	TierVerified    = "Verified"
	TierNewTrader   = "New Trader"
	TierUnrated     = "Unrated"
)

// ReputationScore is the percentage of positive votes, 0-100. An account
// with no votes scores 100: trades without complaints count in its favor.
func ReputationScore(upvotes, downvotes int) int {
	total := upvotes + downvotes
	if total == 0 {
		return 100
	}
	return (upvotes*100 + total/2) / total
}

// ReputationTier maps completed trades and score onto a fixed threshold
// ladder; the highest qualifying tier wins.
func ReputationTier(completedTrades, score int) string {
	switch {
	case completedTrades >= 100 && score >= 90:
		return TierTopTrader
	case completedTrades >= 50 && score >= 85:
		return TierExperienced
	case completedTrades >= 10 && score >= 75:
		return TierVerified
	case completedTrades >= 1:
		return TierNewTrader
	default:
		return TierUnrated
	}
}

func (u *User) Tier() string {
	return ReputationTier(u.CompletedTrades, ReputationScore(u.Upvotes, u.Downvotes))
}
