package models

import (
	"time"

	"github.com/google/uuid"
)

// Review votes
const (
	VoteUp   = "up"
	VoteDown = "down"
)

// MaxReviewCommentLen caps the optional free-text comment.
const MaxReviewCommentLen = 280

func IsValidVote(vote string) bool {
	return vote == VoteUp || vote == VoteDown
}

// Review is one reputation vote tied to a completed trade. At most one per
// (trade, reviewer); the reviewee is always the counterparty.
type Review struct {
	ID             uuid.UUID `json:"id"`
	TradeID        uuid.UUID `json:"trade_id"`
	ReviewerUserID uuid.UUID `json:"reviewer_user_id"`
	RevieweeUserID uuid.UUID `json:"reviewee_user_id"`
	Vote           string    `json:"vote"`
	Comment        *string   `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
