package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peerdesk/backend/internal/models"
)

const userColumns = `
	id, telegram_user_id, username, first_name, last_name, verified,
	is_banned, ban_type, ban_expires_at, ban_reason,
	upvotes, downvotes, completed_trades, created_at, last_active_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// UpsertByTelegramID creates the account on first login and refreshes the
// profile fields Telegram gave us on every subsequent one.
func (r *UserRepo) UpsertByTelegramID(ctx context.Context, telegramUserID int64, username, firstName, lastName *string) (*models.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		INSERT INTO users (telegram_user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    last_active_at = now()
		RETURNING `+userColumns,
		telegramUserID, username, firstName, lastName))
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByTelegramID(ctx context.Context, telegramUserID int64) (*models.User, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_user_id = $1`, telegramUserID))
}

func (r *UserRepo) UpdateLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = now() WHERE id = $1`, id)
	return err
}

func (r *UserRepo) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET verified = $1 WHERE id = $2`, verified, id)
	return err
}

// SetBan records a ban. expiresAt is nil for permanent bans.
func (r *UserRepo) SetBan(ctx context.Context, id uuid.UUID, banType string, expiresAt *time.Time, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET is_banned = TRUE, ban_type = $1, ban_expires_at = $2, ban_reason = $3
		WHERE id = $4
	`, banType, expiresAt, reason, id)
	return err
}

func (r *UserRepo) ClearBan(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users
		SET is_banned = FALSE, ban_type = NULL, ban_expires_at = NULL, ban_reason = NULL
		WHERE id = $1
	`, id)
	return err
}

func (r *UserRepo) scanOne(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.TelegramUserID, &u.Username, &u.FirstName, &u.LastName, &u.Verified,
		&u.IsBanned, &u.BanType, &u.BanExpiresAt, &u.BanReason,
		&u.Upvotes, &u.Downvotes, &u.CompletedTrades, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
