package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/events"
	"github.com/peerdesk/backend/internal/locks"
	"github.com/peerdesk/backend/internal/models"
	"github.com/peerdesk/backend/internal/repositories"
	"go.uber.org/zap"
)

const (
	lockTTL      = 15 * time.Second
	lockAttempts = 3
	lockBackoff  = 200 * time.Millisecond
)

// Outcome classifies what a single observed transfer did.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"       // accumulated onto the trade
	OutcomeDuplicate    Outcome = "duplicate"     // tx hash seen before, no-op
	OutcomeTradeClosed  Outcome = "trade_closed"  // recorded for audit only
	OutcomeUnmatched    Outcome = "unmatched"     // memo bad or escrow unknown
	OutcomeBecameFunded Outcome = "became_funded" // applied and crossed the threshold
)

// DepositStore is the slice of TradeRepo the coordinator needs.
type DepositStore interface {
	ApplyDeposit(ctx context.Context, tradeID uuid.UUID, ev *models.DepositEvent) (*repositories.DepositApplyResult, error)
}

// DedupChecker pre-screens tx hashes before any lock is taken.
type DedupChecker interface {
	Exists(ctx context.Context, txHash string) (bool, error)
}

// Locker serializes per-trade work across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Auditor records reconciliation outcomes that need operator eyes.
type Auditor interface {
	Log(ctx context.Context, entry models.AuditLog) error
}

// Coordinator is the single funnel for deposits from both the webhook and
// the poll sweep. Every transfer, whatever its source, ends up in
// ApplyDeposit where the tx_hash primary key and the row-locked balance
// update make application exactly-once. The redis lock above it only narrows
// the window for wasted conflicting transactions.
type Coordinator struct {
	correlator *Correlator
	store      DepositStore
	dedup      DedupChecker
	locker     Locker
	audit      Auditor
	publisher  events.Publisher
	log        *zap.Logger
}

func NewCoordinator(correlator *Correlator, store DepositStore, dedup DedupChecker, locker Locker, audit Auditor, publisher events.Publisher, log *zap.Logger) *Coordinator {
	return &Coordinator{
		correlator: correlator,
		store:      store,
		dedup:      dedup,
		locker:     locker,
		audit:      audit,
		publisher:  publisher,
		log:        log,
	}
}

// Process reconciles one observed transfer. It never returns an error for
// expected conditions (duplicates, bad memos, closed trades); those are
// outcomes, and the caller acks the event either way. An error means the
// store or lock layer failed and the source should redeliver.
func (c *Coordinator) Process(ctx context.Context, ev *models.DepositEvent) (Outcome, error) {
	if seen, err := c.dedup.Exists(ctx, ev.TxHash); err == nil && seen {
		return OutcomeDuplicate, nil
	}

	trade, err := c.correlator.Resolve(ctx, ev.Memo)
	if err != nil {
		if errors.Is(err, ErrUnparsableMemo) || errors.Is(err, ErrNoSuchEscrow) {
			c.log.Warn("unmatched deposit",
				zap.String("tx_hash", ev.TxHash),
				zap.String("memo", ev.Memo),
				zap.Int64("amount_units", ev.AmountUnits),
				zap.Error(err),
			)
			_ = c.audit.Log(ctx, models.AuditLog{
				ActorType:  "system",
				Action:     "deposit_unmatched",
				EntityType: "deposit",
				Meta: map[string]any{
					"tx_hash":      ev.TxHash,
					"memo":         ev.Memo,
					"amount_units": ev.AmountUnits,
					"sender":       ev.SenderAddress,
				},
			})
			c.publish(ctx, events.EventDepositUnmatched, map[string]any{
				"tx_hash":      ev.TxHash,
				"memo":         ev.Memo,
				"amount_units": ev.AmountUnits,
			})
			return OutcomeUnmatched, nil
		}
		return "", err
	}

	release, err := c.acquireTradeLock(ctx, trade.ID)
	if err != nil {
		return "", err
	}
	defer release()

	res, err := c.store.ApplyDeposit(ctx, trade.ID, ev)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicateDeposit):
			return OutcomeDuplicate, nil
		case errors.Is(err, repositories.ErrTradeClosed):
			c.log.Warn("deposit to closed trade recorded",
				zap.String("trade_id", trade.ID.String()),
				zap.String("tx_hash", ev.TxHash),
			)
			_ = c.audit.Log(ctx, models.AuditLog{
				ActorType:  "system",
				Action:     "deposit_after_close",
				EntityType: "trade",
				EntityID:   &trade.ID,
				Meta:       map[string]any{"tx_hash": ev.TxHash, "amount_units": ev.AmountUnits},
			})
			return OutcomeTradeClosed, nil
		default:
			return "", err
		}
	}

	c.log.Info("deposit applied",
		zap.String("trade_id", trade.ID.String()),
		zap.String("tx_hash", ev.TxHash),
		zap.String("source", ev.Source),
		zap.Int64("amount_units", ev.AmountUnits),
		zap.Int64("funded_units", res.FundedUnits),
	)

	c.publish(ctx, events.EventDepositApplied, map[string]any{
		"trade_id":     trade.ID.String(),
		"tx_hash":      ev.TxHash,
		"amount_units": ev.AmountUnits,
		"funded_units": res.FundedUnits,
		"status":       res.Status,
	})

	if res.OverageUnits > 0 {
		// Kept in funded_units; the overage goes to a manual refund queue.
		_ = c.audit.Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "deposit_overage",
			EntityType: "trade",
			EntityID:   &trade.ID,
			Meta: map[string]any{
				"tx_hash":       ev.TxHash,
				"overage_units": res.OverageUnits,
				"sender":        ev.SenderAddress,
			},
		})
		c.publish(ctx, events.EventDepositOverage, map[string]any{
			"trade_id":      trade.ID.String(),
			"overage_units": res.OverageUnits,
		})
	}

	if res.BecameFunded {
		c.publish(ctx, events.EventTradeStatusChanged, map[string]any{
			"trade_id": trade.ID.String(),
			"from":     models.TradeStatusPendingFunding,
			"to":       models.TradeStatusFunded,
		})
		return OutcomeBecameFunded, nil
	}
	return OutcomeApplied, nil
}

// acquireTradeLock retries briefly: deposit bursts to one trade are rare and
// short, so a couple of backoffs usually clears the contention. If the lock
// stays held the source redelivers and dedup absorbs the repeat.
func (c *Coordinator) acquireTradeLock(ctx context.Context, tradeID uuid.UUID) (func(), error) {
	var lastErr error
	for i := 0; i < lockAttempts; i++ {
		release, err := c.locker.Acquire(ctx, locks.TradeKey(tradeID), lockTTL)
		if err == nil {
			return release, nil
		}
		lastErr = err
		if !errors.Is(err, locks.ErrHeld) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	return nil, lastErr
}

func (c *Coordinator) publish(ctx context.Context, eventType string, payload map[string]any) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, events.StreamTrades, events.Event{Type: eventType, Payload: payload}); err != nil {
		c.log.Warn("event publish failed", zap.String("type", eventType), zap.Error(err))
	}
}
