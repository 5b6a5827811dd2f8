package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/peerdesk/backend/internal/models"
	"github.com/peerdesk/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLookup struct {
	trades map[int64]*models.Trade
}

func (f *fakeLookup) GetByEscrowID(_ context.Context, escrowID int64) (*models.Trade, error) {
	t, ok := f.trades[escrowID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

// fakeStore mimics the single-transaction apply: dedup by tx hash, then
// accumulate and check the funding threshold.
type fakeStore struct {
	trade   *models.Trade
	applied map[string]bool
	closed  bool
}

func (f *fakeStore) ApplyDeposit(_ context.Context, tradeID uuid.UUID, ev *models.DepositEvent) (*repositories.DepositApplyResult, error) {
	if f.applied[ev.TxHash] {
		return nil, repositories.ErrDuplicateDeposit
	}
	f.applied[ev.TxHash] = true
	if f.closed {
		return nil, repositories.ErrTradeClosed
	}
	f.trade.FundedUnits += ev.AmountUnits
	res := &repositories.DepositApplyResult{
		FundedUnits: f.trade.FundedUnits,
		AmountUnits: f.trade.AmountUnits,
		Status:      f.trade.Status,
	}
	if f.trade.FundedUnits > f.trade.AmountUnits {
		res.OverageUnits = f.trade.FundedUnits - f.trade.AmountUnits
	}
	if f.trade.Status == models.TradeStatusPendingFunding && f.trade.FundedUnits >= f.trade.AmountUnits {
		f.trade.Status = models.TradeStatusFunded
		res.Status = models.TradeStatusFunded
		res.BecameFunded = true
	}
	return res, nil
}

func (f *fakeStore) Exists(_ context.Context, txHash string) (bool, error) {
	return f.applied[txHash], nil
}

type fakeLocker struct{ acquired int }

func (f *fakeLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	f.acquired++
	return func() {}, nil
}

type fakeAuditor struct{ entries []models.AuditLog }

func (f *fakeAuditor) Log(_ context.Context, entry models.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditor) actions() []string {
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

func newTestCoordinator(trade *models.Trade) (*Coordinator, *fakeStore, *fakeAuditor) {
	store := &fakeStore{trade: trade, applied: map[string]bool{}}
	audit := &fakeAuditor{}
	lookup := &fakeLookup{trades: map[int64]*models.Trade{}}
	if trade != nil {
		lookup.trades[trade.EscrowID] = trade
	}
	c := NewCoordinator(NewCorrelator(lookup), store, store, &fakeLocker{}, audit, nil, zap.NewNop())
	return c, store, audit
}

func testTrade() *models.Trade {
	return &models.Trade{
		ID:          uuid.New(),
		EscrowID:    42,
		Status:      models.TradeStatusPendingFunding,
		AmountUnits: 1000,
	}
}

func deposit(txHash, memo string, amount int64, source string) *models.DepositEvent {
	return &models.DepositEvent{
		TxHash:      txHash,
		Source:      source,
		AmountUnits: amount,
		Memo:        memo,
		ObservedAt:  time.Now(),
	}
}

func TestProcessPartialThenFull(t *testing.T) {
	trade := testTrade()
	c, _, _ := newTestCoordinator(trade)

	out, err := c.Process(context.Background(), deposit("tx1", "42", 400, models.DepositSourceWebhook))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, out)
	assert.Equal(t, int64(400), trade.FundedUnits)
	assert.Equal(t, models.TradeStatusPendingFunding, trade.Status)

	out, err = c.Process(context.Background(), deposit("tx2", "42", 600, models.DepositSourcePoll))
	require.NoError(t, err)
	assert.Equal(t, OutcomeBecameFunded, out)
	assert.Equal(t, models.TradeStatusFunded, trade.Status)
}

// The same transfer seen from both sources applies exactly once.
func TestProcessWebhookThenPollDuplicate(t *testing.T) {
	trade := testTrade()
	c, _, _ := newTestCoordinator(trade)

	out, err := c.Process(context.Background(), deposit("tx1", "42", 1000, models.DepositSourceWebhook))
	require.NoError(t, err)
	assert.Equal(t, OutcomeBecameFunded, out)

	out, err = c.Process(context.Background(), deposit("tx1", "42", 1000, models.DepositSourcePoll))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, out)
	assert.Equal(t, int64(1000), trade.FundedUnits)
}

func TestProcessUnparsableMemo(t *testing.T) {
	c, store, audit := newTestCoordinator(testTrade())

	out, err := c.Process(context.Background(), deposit("tx1", "not-a-memo", 500, models.DepositSourceWebhook))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, out)
	assert.Empty(t, store.applied)
	assert.Contains(t, audit.actions(), "deposit_unmatched")
}

func TestProcessUnknownEscrow(t *testing.T) {
	c, _, audit := newTestCoordinator(testTrade())

	out, err := c.Process(context.Background(), deposit("tx1", "999", 500, models.DepositSourceWebhook))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnmatched, out)
	assert.Contains(t, audit.actions(), "deposit_unmatched")
}

func TestProcessClosedTrade(t *testing.T) {
	trade := testTrade()
	trade.Status = models.TradeStatusCompleted
	c, store, audit := newTestCoordinator(trade)
	store.closed = true

	out, err := c.Process(context.Background(), deposit("tx1", "42", 500, models.DepositSourcePoll))
	require.NoError(t, err)
	assert.Equal(t, OutcomeTradeClosed, out)
	assert.Equal(t, int64(0), trade.FundedUnits)
	assert.Contains(t, audit.actions(), "deposit_after_close")
}

// Overfunding still counts toward the threshold and flags the overage.
func TestProcessOverage(t *testing.T) {
	trade := testTrade()
	c, _, audit := newTestCoordinator(trade)

	out, err := c.Process(context.Background(), deposit("tx1", "42", 1500, models.DepositSourceWebhook))
	require.NoError(t, err)
	assert.Equal(t, OutcomeBecameFunded, out)
	assert.Equal(t, int64(1500), trade.FundedUnits)
	assert.Contains(t, audit.actions(), "deposit_overage")
}
