package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peerdesk/backend/internal/models"
)

type ReviewRepo struct {
	pool *pgxpool.Pool
}

func NewReviewRepo(pool *pgxpool.Pool) *ReviewRepo {
	return &ReviewRepo{pool: pool}
}

// Create inserts the review and bumps the reviewee's vote counter in one
// transaction, so the counters never drift from the review rows. The unique
// (trade_id, reviewer_user_id) index enforces one review per side per trade.
func (r *ReviewRepo) Create(ctx context.Context, rev *models.Review) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO reviews (trade_id, reviewer_user_id, reviewee_user_id, vote, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, rev.TradeID, rev.ReviewerUserID, rev.RevieweeUserID, rev.Vote, rev.Comment,
	).Scan(&rev.ID, &rev.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateReview
		}
		return err
	}

	column := "upvotes"
	if rev.Vote == models.VoteDown {
		column = "downvotes"
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET `+column+` = `+column+` + 1 WHERE id = $1`,
		rev.RevieweeUserID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ReviewRepo) ListByReviewee(ctx context.Context, revieweeID uuid.UUID, limit, offset int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, trade_id, reviewer_user_id, reviewee_user_id, vote, comment, created_at
		FROM reviews WHERE reviewee_user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, revieweeID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var rev models.Review
		if err := rows.Scan(&rev.ID, &rev.TradeID, &rev.ReviewerUserID, &rev.RevieweeUserID,
			&rev.Vote, &rev.Comment, &rev.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, rev)
	}
	return reviews, nil
}
