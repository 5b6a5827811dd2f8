package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/events"
	"github.com/peerdesk/backend/internal/models"
	"github.com/peerdesk/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeReviewStore mirrors the repo contract: the insert and the counter bump
// are atomic, and a repeat (trade, reviewer) pair fails with no counter
// change.
type fakeReviewStore struct {
	reviews   map[string]*models.Review
	upvotes   map[uuid.UUID]int
	downvotes map[uuid.UUID]int
}

func newFakeReviewStore() *fakeReviewStore {
	return &fakeReviewStore{
		reviews:   map[string]*models.Review{},
		upvotes:   map[uuid.UUID]int{},
		downvotes: map[uuid.UUID]int{},
	}
}

func (f *fakeReviewStore) Create(_ context.Context, rev *models.Review) error {
	key := rev.TradeID.String() + "|" + rev.ReviewerUserID.String()
	if _, ok := f.reviews[key]; ok {
		return repositories.ErrDuplicateReview
	}
	rev.ID = uuid.New()
	f.reviews[key] = rev
	if rev.Vote == models.VoteDown {
		f.downvotes[rev.RevieweeUserID]++
	} else {
		f.upvotes[rev.RevieweeUserID]++
	}
	return nil
}

func (f *fakeReviewStore) ListByReviewee(_ context.Context, revieweeID uuid.UUID, _, _ int) ([]models.Review, error) {
	var out []models.Review
	for _, r := range f.reviews {
		if r.RevieweeUserID == revieweeID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeTradeGetter struct{ trade *models.Trade }

func (f *fakeTradeGetter) GetByID(_ context.Context, _ uuid.UUID) (*models.Trade, error) {
	return f.trade, nil
}

type fakeUserGetter struct{ users map[uuid.UUID]*models.User }

func (f *fakeUserGetter) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return f.users[id], nil
}

type fakePublisher struct{ published []events.Event }

func (f *fakePublisher) Publish(_ context.Context, _ string, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}

func completedTrade(buyer, seller uuid.UUID) *models.Trade {
	return &models.Trade{
		ID:           uuid.New(),
		BuyerUserID:  buyer,
		SellerUserID: seller,
		Status:       models.TradeStatusCompleted,
	}
}

func newTestReviewService(trade *models.Trade) (*ReviewService, *fakeReviewStore, *fakePublisher) {
	store := newFakeReviewStore()
	pub := &fakePublisher{}
	svc := NewReviewService(store, &fakeTradeGetter{trade: trade}, &fakeUserGetter{}, pub, zap.NewNop())
	return svc, store, pub
}

func TestSubmitReviewDerivesCounterparty(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	trade := completedTrade(buyer, seller)
	svc, store, pub := newTestReviewService(trade)

	rev, err := svc.SubmitReview(context.Background(), trade.ID, buyer, models.VoteUp, nil)
	require.NoError(t, err)
	assert.Equal(t, seller, rev.RevieweeUserID)
	assert.Equal(t, 1, store.upvotes[seller])
	assert.Len(t, pub.published, 1)
}

// A second attempt for the same trade is rejected and the counters stay
// exactly where the first vote left them, even if the vote flipped.
func TestSubmitReviewDuplicateRejected(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	trade := completedTrade(buyer, seller)
	svc, store, pub := newTestReviewService(trade)

	_, err := svc.SubmitReview(context.Background(), trade.ID, buyer, models.VoteUp, nil)
	require.NoError(t, err)

	_, err = svc.SubmitReview(context.Background(), trade.ID, buyer, models.VoteDown, nil)
	assert.ErrorIs(t, err, repositories.ErrDuplicateReview)
	assert.Equal(t, 1, store.upvotes[seller])
	assert.Equal(t, 0, store.downvotes[seller])
	assert.Len(t, pub.published, 1)

	// The counterparty's own review is a different pair and still goes in.
	rev, err := svc.SubmitReview(context.Background(), trade.ID, seller, models.VoteUp, nil)
	require.NoError(t, err)
	assert.Equal(t, buyer, rev.RevieweeUserID)
	assert.Equal(t, 1, store.upvotes[buyer])
}

func TestSubmitReviewPreconditions(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	trade := completedTrade(buyer, seller)
	svc, store, _ := newTestReviewService(trade)

	_, err := svc.SubmitReview(context.Background(), trade.ID, buyer, "sideways", nil)
	assert.Error(t, err)

	_, err = svc.SubmitReview(context.Background(), trade.ID, uuid.New(), models.VoteUp, nil)
	assert.Error(t, err)

	trade.Status = models.TradeStatusActive
	_, err = svc.SubmitReview(context.Background(), trade.ID, buyer, models.VoteUp, nil)
	assert.Error(t, err)

	assert.Empty(t, store.reviews)
}

// The comment cap counts characters, not bytes: a 280-rune non-ASCII comment
// passes, one more rune does not.
func TestSubmitReviewCommentLength(t *testing.T) {
	buyer, seller := uuid.New(), uuid.New()
	trade := completedTrade(buyer, seller)
	svc, _, _ := newTestReviewService(trade)

	atLimit := strings.Repeat("ж", models.MaxReviewCommentLen)
	_, err := svc.SubmitReview(context.Background(), trade.ID, buyer, models.VoteUp, &atLimit)
	assert.NoError(t, err)

	overLimit := strings.Repeat("ж", models.MaxReviewCommentLen+1)
	_, err = svc.SubmitReview(context.Background(), trade.ID, seller, models.VoteUp, &overLimit)
	assert.Error(t, err)
}
