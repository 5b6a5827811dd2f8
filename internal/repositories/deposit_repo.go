package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peerdesk/backend/internal/models"
)

// DepositRepo reads the deposit event log. Writes happen only through
// TradeRepo.ApplyDeposit so the dedup insert and the balance update always
// share one transaction.
type DepositRepo struct {
	pool *pgxpool.Pool
}

func NewDepositRepo(pool *pgxpool.Pool) *DepositRepo {
	return &DepositRepo{pool: pool}
}

// Exists is the cheap pre-check before taking the per-trade lock; the
// authoritative dedup is still the tx_hash primary key.
func (r *DepositRepo) Exists(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM deposit_events WHERE tx_hash = $1)`, txHash,
	).Scan(&exists)
	return exists, err
}

func (r *DepositRepo) GetByTrade(ctx context.Context, tradeID uuid.UUID) ([]models.DepositEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tx_hash, trade_id, source, sender_address, amount_units, memo, observed_at, created_at
		FROM deposit_events WHERE trade_id = $1 ORDER BY created_at
	`, tradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.DepositEvent
	for rows.Next() {
		var e models.DepositEvent
		if err := rows.Scan(&e.ID, &e.TxHash, &e.TradeID, &e.Source, &e.SenderAddress,
			&e.AmountUnits, &e.Memo, &e.ObservedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
