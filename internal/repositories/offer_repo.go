package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peerdesk/backend/internal/models"
)

const offerColumns = `
	id, user_id, side, amount_units, fiat_currency, fiat_price, terms, status, created_at, updated_at`

type OfferRepo struct {
	pool *pgxpool.Pool
}

func NewOfferRepo(pool *pgxpool.Pool) *OfferRepo {
	return &OfferRepo{pool: pool}
}

func (r *OfferRepo) Create(ctx context.Context, o *models.Offer) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO offers (user_id, side, amount_units, fiat_currency, fiat_price, terms, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, o.UserID, o.Side, o.AmountUnits, o.FiatCurrency, o.FiatPrice, o.Terms, o.Status,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *OfferRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
}

type OfferFilter struct {
	Side         *string
	FiatCurrency *string
	UserID       *uuid.UUID
	Status       *string
	Limit        int
	Offset       int
}

func (r *OfferRepo) List(ctx context.Context, f OfferFilter) ([]models.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers`
	args := []any{}
	argIdx := 1
	sep := " WHERE "

	add := func(cond string, val any) {
		query += sep + fmt.Sprintf(cond, argIdx)
		args = append(args, val)
		argIdx++
		sep = " AND "
	}

	if f.Side != nil {
		add("side = $%d", *f.Side)
	}
	if f.FiatCurrency != nil {
		add("fiat_currency = $%d", *f.FiatCurrency)
	}
	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Status != nil {
		add("status = $%d", *f.Status)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []models.Offer
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.UserID, &o.Side, &o.AmountUnits, &o.FiatCurrency,
			&o.FiatPrice, &o.Terms, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, nil
}

// UpdateStatus moves an offer between active, paused and closed. Only the
// owner's id matches, so a forged request updates nothing.
func (r *OfferRepo) UpdateStatus(ctx context.Context, id, ownerID uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE offers SET status = $1, updated_at = now()
		WHERE id = $2 AND user_id = $3 AND status != 'closed'
	`, status, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *OfferRepo) scanOne(row pgx.Row) (*models.Offer, error) {
	var o models.Offer
	err := row.Scan(&o.ID, &o.UserID, &o.Side, &o.AmountUnits, &o.FiatCurrency,
		&o.FiatPrice, &o.Terms, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
