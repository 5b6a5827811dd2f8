package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peerdesk/backend/internal/models"
)

const tradeColumns = `
	id, offer_id, buyer_user_id, seller_user_id, status,
	amount_units, funded_units, fiat_currency, fiat_price, escrow_id,
	fee_bps, fee_units, net_units,
	funding_deadline, trade_deadline, completed_at, created_at, updated_at`

// TradeRepo owns the trades, deposit_events and trade_transitions tables.
// Status and funded_units are only ever written through the conditional
// updates below, so a stale writer matches zero rows instead of clobbering.
type TradeRepo struct {
	pool *pgxpool.Pool
}

func NewTradeRepo(pool *pgxpool.Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

// Create inserts a trade in pending_funding and assigns its escrow id from
// the escrow_id_seq sequence, guaranteeing no two trades share a memo key.
func (r *TradeRepo) Create(ctx context.Context, t *models.Trade) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO trades (offer_id, buyer_user_id, seller_user_id, status,
		                    amount_units, fiat_currency, fiat_price, escrow_id,
		                    funding_deadline, trade_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, nextval('escrow_id_seq'), $8, $9)
		RETURNING id, escrow_id, created_at, updated_at
	`, t.OfferID, t.BuyerUserID, t.SellerUserID, t.Status,
		t.AmountUnits, t.FiatCurrency, t.FiatPrice,
		t.FundingDeadline, t.TradeDeadline,
	).Scan(&t.ID, &t.EscrowID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *TradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id))
}

func (r *TradeRepo) GetByEscrowID(ctx context.Context, escrowID int64) (*models.Trade, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE escrow_id = $1`, escrowID))
}

type TradeFilter struct {
	UserID *uuid.UUID // matches either side
	Status *string
	Limit  int
	Offset int
}

func (r *TradeRepo) List(ctx context.Context, f TradeFilter) ([]models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.UserID != nil {
		where = append(where, fmt.Sprintf("(buyer_user_id = $%d OR seller_user_id = $%d)", argIdx, argIdx))
		args = append(args, *f.UserID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
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
	return r.scanMany(rows)
}

// DepositApplyResult reports what a single deposit application did.
type DepositApplyResult struct {
	FundedUnits  int64
	AmountUnits  int64
	Status       string
	BecameFunded bool
	OverageUnits int64
}

// ApplyDeposit records a deposit event and accumulates it onto the trade in
// one transaction. The tx_hash primary key makes re-observation from any
// source a no-op (ErrDuplicateDeposit); the conditional UPDATE takes the row
// lock that serializes concurrent deposits for the same trade. The funding
// threshold is re-checked against the accumulated total inside the same
// transaction, so observation order never matters.
func (r *TradeRepo) ApplyDeposit(ctx context.Context, tradeID uuid.UUID, ev *models.DepositEvent) (*DepositApplyResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO deposit_events (tx_hash, trade_id, source, sender_address, amount_units, memo, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tx_hash) DO NOTHING
	`, ev.TxHash, tradeID, ev.Source, ev.SenderAddress, ev.AmountUnits, ev.Memo, ev.ObservedAt)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrDuplicateDeposit
	}

	var res DepositApplyResult
	err = tx.QueryRow(ctx, `
		UPDATE trades
		SET funded_units = funded_units + $1, updated_at = now()
		WHERE id = $2 AND status IN ('pending_funding', 'funded', 'active')
		RETURNING funded_units, amount_units, status
	`, ev.AmountUnits, tradeID).Scan(&res.FundedUnits, &res.AmountUnits, &res.Status)
	if err == pgx.ErrNoRows {
		// Trade is terminal or disputed: keep the event row for the audit
		// trail and the manual-refund queue, but don't touch the balance.
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return nil, ErrTradeClosed
	}
	if err != nil {
		return nil, err
	}

	if res.FundedUnits > res.AmountUnits {
		res.OverageUnits = res.FundedUnits - res.AmountUnits
	}

	if res.Status == models.TradeStatusPendingFunding && res.FundedUnits >= res.AmountUnits {
		tag, err := tx.Exec(ctx, `
			UPDATE trades SET status = $1, updated_at = now()
			WHERE id = $2 AND status = $3
		`, models.TradeStatusFunded, tradeID, models.TradeStatusPendingFunding)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 1 {
			res.BecameFunded = true
			res.Status = models.TradeStatusFunded
			if _, err := r.insertTransition(ctx, tx, tradeID,
				models.TradeStatusPendingFunding, models.TradeStatusFunded,
				models.TradeEventDepositMatched, nil); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &res, nil
}

// TransitionStatus performs a guarded status move and appends the transition
// log row with the next per-trade sequence number. ErrStatusConflict means
// the precondition status no longer holds.
func (r *TradeRepo) TransitionStatus(ctx context.Context, tradeID uuid.UUID, from, to, event string, actorID *uuid.UUID) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE trades SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, to, tradeID, from)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrStatusConflict
	}

	seq, err := r.insertTransition(ctx, tx, tradeID, from, to, event, actorID)
	if err != nil {
		return 0, err
	}
	return seq, tx.Commit(ctx)
}

// Complete settles a trade: active -> completed with the fee recorded and
// both participants' completed-trade counters bumped, atomically.
func (r *TradeRepo) Complete(ctx context.Context, t *models.Trade, feeBPS int, feeUnits, netUnits int64, actorID *uuid.UUID) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE trades
		SET status = $1, fee_bps = $2, fee_units = $3, net_units = $4,
		    completed_at = now(), updated_at = now()
		WHERE id = $5 AND status = $6
	`, models.TradeStatusCompleted, feeBPS, feeUnits, netUnits, t.ID, models.TradeStatusActive)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrStatusConflict
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users SET completed_trades = completed_trades + 1
		WHERE id = $1 OR id = $2
	`, t.BuyerUserID, t.SellerUserID); err != nil {
		return 0, err
	}

	seq, err := r.insertTransition(ctx, tx, t.ID,
		models.TradeStatusActive, models.TradeStatusCompleted,
		models.TradeEventFiatConfirmed, actorID)
	if err != nil {
		return 0, err
	}
	return seq, tx.Commit(ctx)
}

// ResolveDispute settles a disputed trade to resolved_release or
// resolved_refund. Fee fields are nil for refunds: no settlement happened,
// so no fee applies.
func (r *TradeRepo) ResolveDispute(ctx context.Context, tradeID uuid.UUID, to, event string, feeBPS *int, feeUnits, netUnits *int64, actorID *uuid.UUID) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE trades
		SET status = $1, fee_bps = $2, fee_units = $3, net_units = $4,
		    completed_at = now(), updated_at = now()
		WHERE id = $5 AND status = $6
	`, to, feeBPS, feeUnits, netUnits, tradeID, models.TradeStatusDisputed)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrStatusConflict
	}

	seq, err := r.insertTransition(ctx, tx, tradeID, models.TradeStatusDisputed, to, event, actorID)
	if err != nil {
		return 0, err
	}
	return seq, tx.Commit(ctx)
}

func (r *TradeRepo) insertTransition(ctx context.Context, tx pgx.Tx, tradeID uuid.UUID, from, to, event string, actorID *uuid.UUID) (int, error) {
	var seq int
	err := tx.QueryRow(ctx, `
		INSERT INTO trade_transitions (trade_id, seq, from_status, to_status, event, actor_user_id)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4, $5
		FROM trade_transitions WHERE trade_id = $1
		RETURNING seq
	`, tradeID, from, to, event, actorID).Scan(&seq)
	return seq, err
}

func (r *TradeRepo) GetTransitions(ctx context.Context, tradeID uuid.UUID) ([]models.TradeTransition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, trade_id, seq, from_status, to_status, event, actor_user_id, created_at
		FROM trade_transitions WHERE trade_id = $1 ORDER BY seq
	`, tradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ts []models.TradeTransition
	for rows.Next() {
		var tr models.TradeTransition
		if err := rows.Scan(&tr.ID, &tr.TradeID, &tr.Seq, &tr.FromStatus, &tr.ToStatus, &tr.Event, &tr.ActorUserID, &tr.CreatedAt); err != nil {
			return nil, err
		}
		ts = append(ts, tr)
	}
	return ts, nil
}

// GetOverdueFunding lists unfunded trades past their funding deadline.
func (r *TradeRepo) GetOverdueFunding(ctx context.Context, limit int) ([]models.Trade, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE status = 'pending_funding' AND funding_deadline < now()
		ORDER BY funding_deadline LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// GetOverdueSettlement lists money-holding trades past the trade deadline;
// these escalate to dispute rather than expire.
func (r *TradeRepo) GetOverdueSettlement(ctx context.Context, limit int) ([]models.Trade, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE status IN ('funded', 'active') AND trade_deadline < now()
		ORDER BY trade_deadline LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// MonthlyVolumeUnits sums the seller-side principal of trades settled in the
// trailing 30 days; feeds the volume-discount tier lookup.
func (r *TradeRepo) MonthlyVolumeUnits(ctx context.Context, userID uuid.UUID) (int64, error) {
	var vol int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_units), 0) FROM trades
		WHERE seller_user_id = $1
		  AND status IN ('completed', 'resolved_release')
		  AND completed_at > now() - interval '30 days'
	`, userID).Scan(&vol)
	return vol, err
}

func (r *TradeRepo) scanOne(row pgx.Row) (*models.Trade, error) {
	var t models.Trade
	err := row.Scan(&t.ID, &t.OfferID, &t.BuyerUserID, &t.SellerUserID, &t.Status,
		&t.AmountUnits, &t.FundedUnits, &t.FiatCurrency, &t.FiatPrice, &t.EscrowID,
		&t.FeeBPS, &t.FeeUnits, &t.NetUnits,
		&t.FundingDeadline, &t.TradeDeadline, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TradeRepo) scanMany(rows pgx.Rows) ([]models.Trade, error) {
	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		if err := rows.Scan(&t.ID, &t.OfferID, &t.BuyerUserID, &t.SellerUserID, &t.Status,
			&t.AmountUnits, &t.FundedUnits, &t.FiatCurrency, &t.FiatPrice, &t.EscrowID,
			&t.FeeBPS, &t.FeeUnits, &t.NetUnits,
			&t.FundingDeadline, &t.TradeDeadline, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, nil
}
