package models

import (
	"time"

	"github.com/google/uuid"
)

// Trade statuses
const (
	TradeStatusPendingFunding  = "pending_funding"
	TradeStatusFunded          = "funded"
	TradeStatusActive          = "active"
	TradeStatusDisputed        = "disputed"
	TradeStatusCompleted       = "completed"
	TradeStatusResolvedRelease = "resolved_release"
	TradeStatusResolvedRefund  = "resolved_refund"
	TradeStatusExpired         = "expired"
	TradeStatusCancelled       = "cancelled"
)

// Lifecycle events, recorded in the per-trade transition log.
const (
	TradeEventDepositMatched   = "deposit_matched"
	TradeEventFiatSent         = "fiat_sent"
	TradeEventFiatConfirmed    = "fiat_confirmed"
	TradeEventDisputeRaised    = "dispute_raised"
	TradeEventAdminRelease     = "admin_release"
	TradeEventAdminRefund      = "admin_refund"
	TradeEventFundingExpired   = "funding_expired"
	TradeEventDeadlineEscalate = "deadline_escalated"
	TradeEventCancelled        = "cancelled"
)

// Valid state transitions: from -> []to.
// Cancellation is only permitted before the escrow is funded; once money is
// held, overdue trades escalate to disputed instead of expiring.
var ValidTradeTransitions = map[string][]string{
	TradeStatusPendingFunding:  {TradeStatusFunded, TradeStatusExpired, TradeStatusCancelled},
	TradeStatusFunded:          {TradeStatusActive, TradeStatusDisputed},
	TradeStatusActive:          {TradeStatusCompleted, TradeStatusDisputed},
	TradeStatusDisputed:        {TradeStatusResolvedRelease, TradeStatusResolvedRefund},
	TradeStatusCompleted:       {},
	TradeStatusResolvedRelease: {},
	TradeStatusResolvedRefund:  {},
	TradeStatusExpired:         {},
	TradeStatusCancelled:       {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidTradeTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminalStatus(status string) bool {
	allowed, ok := ValidTradeTransitions[status]
	return ok && len(allowed) == 0
}

// IsReviewableStatus reports whether a trade in this status accepts
// post-trade reputation votes.
func IsReviewableStatus(status string) bool {
	switch status {
	case TradeStatusCompleted, TradeStatusResolvedRelease, TradeStatusResolvedRefund:
		return true
	}
	return false
}

type Trade struct {
	ID           uuid.UUID `json:"id"`
	OfferID      uuid.UUID `json:"offer_id"`
	BuyerUserID  uuid.UUID `json:"buyer_user_id"`
	SellerUserID uuid.UUID `json:"seller_user_id"`
	Status       string    `json:"status"`

	// AmountUnits is the escrow principal in stablecoin minor units.
	// FundedUnits accumulates matched deposits and never decreases.
	AmountUnits  int64  `json:"amount_units"`
	FundedUnits  int64  `json:"funded_units"`
	FiatCurrency string `json:"fiat_currency"`
	FiatPrice    int64  `json:"fiat_price"` // fiat minor units per whole coin

	// EscrowID is the deposit correlation key, carried as the transfer memo.
	// Unique across trades, immutable once assigned.
	EscrowID int64 `json:"escrow_id"`

	// Settlement fee, recorded exactly once at completion.
	FeeBPS   *int   `json:"fee_bps,omitempty"`
	FeeUnits *int64 `json:"fee_units,omitempty"`
	NetUnits *int64 `json:"net_units,omitempty"`

	FundingDeadline time.Time  `json:"funding_deadline"`
	TradeDeadline   time.Time  `json:"trade_deadline"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (t *Trade) IsParticipant(userID uuid.UUID) bool {
	return t.BuyerUserID == userID || t.SellerUserID == userID
}

// Counterparty returns the other participant. ok is false when userID is not
// a participant at all.
func (t *Trade) Counterparty(userID uuid.UUID) (uuid.UUID, bool) {
	switch userID {
	case t.BuyerUserID:
		return t.SellerUserID, true
	case t.SellerUserID:
		return t.BuyerUserID, true
	}
	return uuid.Nil, false
}

// OutstandingUnits is the amount still required before the escrow is funded.
func (t *Trade) OutstandingUnits() int64 {
	if t.FundedUnits >= t.AmountUnits {
		return 0
	}
	return t.AmountUnits - t.FundedUnits
}

// OverdueTransition evaluates deadlines lazily: an unfunded trade past its
// funding deadline expires; a funded or in-settlement trade past the trade
// deadline escalates to dispute. Returns the target status and the lifecycle
// event, or ok=false when no deadline has passed.
func (t *Trade) OverdueTransition(now time.Time) (target, event string, ok bool) {
	switch t.Status {
	case TradeStatusPendingFunding:
		if now.After(t.FundingDeadline) {
			return TradeStatusExpired, TradeEventFundingExpired, true
		}
	case TradeStatusFunded, TradeStatusActive:
		if now.After(t.TradeDeadline) {
			return TradeStatusDisputed, TradeEventDeadlineEscalate, true
		}
	}
	return "", "", false
}

// TradeTransition is one row of the per-trade audit trail. Seq increases
// monotonically within a trade.
type TradeTransition struct {
	ID          uuid.UUID  `json:"id"`
	TradeID     uuid.UUID  `json:"trade_id"`
	Seq         int        `json:"seq"`
	FromStatus  string     `json:"from_status"`
	ToStatus    string     `json:"to_status"`
	Event       string     `json:"event"`
	ActorUserID *uuid.UUID `json:"actor_user_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
