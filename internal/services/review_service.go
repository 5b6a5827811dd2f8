package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/events"
	"github.com/peerdesk/backend/internal/models"
	"go.uber.org/zap"
)

// ReviewStore is the slice of ReviewRepo the service needs. Create must
// insert the review and bump the reviewee's counter atomically, rejecting a
// second review for the same (trade, reviewer) with ErrDuplicateReview and no
// counter change.
type ReviewStore interface {
	Create(ctx context.Context, rev *models.Review) error
	ListByReviewee(ctx context.Context, revieweeID uuid.UUID, limit, offset int) ([]models.Review, error)
}

// TradeGetter resolves trade ids.
type TradeGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Trade, error)
}

// UserGetter resolves user ids.
type UserGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ReviewService struct {
	reviewRepo ReviewStore
	tradeRepo  TradeGetter
	userRepo   UserGetter
	publisher  events.Publisher
	log        *zap.Logger
}

func NewReviewService(
	reviewRepo ReviewStore,
	tradeRepo TradeGetter,
	userRepo UserGetter,
	publisher events.Publisher,
	log *zap.Logger,
) *ReviewService {
	return &ReviewService{
		reviewRepo: reviewRepo,
		tradeRepo:  tradeRepo,
		userRepo:   userRepo,
		publisher:  publisher,
		log:        log,
	}
}

// SubmitReview records one reputation vote for the counterparty of a
// finished trade. The reviewee is derived, never client-supplied.
func (s *ReviewService) SubmitReview(ctx context.Context, tradeID, reviewerID uuid.UUID, vote string, comment *string) (*models.Review, error) {
	if !models.IsValidVote(vote) {
		return nil, fmt.Errorf("vote must be up or down")
	}
	if comment != nil && utf8.RuneCountInString(*comment) > models.MaxReviewCommentLen {
		return nil, fmt.Errorf("comment exceeds %d characters", models.MaxReviewCommentLen)
	}

	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !models.IsReviewableStatus(trade.Status) {
		return nil, fmt.Errorf("trade is not finished, reviews not yet open")
	}
	reviewee, ok := trade.Counterparty(reviewerID)
	if !ok {
		return nil, fmt.Errorf("not a participant of this trade")
	}

	review := &models.Review{
		TradeID:        tradeID,
		ReviewerUserID: reviewerID,
		RevieweeUserID: reviewee,
		Vote:           vote,
		Comment:        comment,
	}
	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, events.StreamTrades, events.Event{
		Type: events.EventReviewSubmitted,
		Payload: map[string]any{
			"trade_id":    tradeID.String(),
			"reviewee_id": reviewee.String(),
			"vote":        vote,
		},
	})
	return review, nil
}

func (s *ReviewService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Review, error) {
	return s.reviewRepo.ListByReviewee(ctx, userID, limit, offset)
}

// ReputationSummary is the public reputation card for a user.
type ReputationSummary struct {
	UserID          uuid.UUID `json:"user_id"`
	Upvotes         int       `json:"upvotes"`
	Downvotes       int       `json:"downvotes"`
	Score           int       `json:"score"`
	CompletedTrades int       `json:"completed_trades"`
	Tier            string    `json:"tier"`
}

func (s *ReviewService) GetReputation(ctx context.Context, userID uuid.UUID) (*ReputationSummary, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ReputationSummary{
		UserID:          u.ID,
		Upvotes:         u.Upvotes,
		Downvotes:       u.Downvotes,
		Score:           models.ReputationScore(u.Upvotes, u.Downvotes),
		CompletedTrades: u.CompletedTrades,
		Tier:            u.Tier(),
	}, nil
}
