package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/config"
	"github.com/peerdesk/backend/internal/events"
	"github.com/peerdesk/backend/internal/models"
	"github.com/peerdesk/backend/internal/repositories"
	"go.uber.org/zap"
)

// transitionRetries bounds the optimistic retry loop after a concurrent
// status move.
const transitionRetries = 2

// TradeService owns every trade status transition. Handlers, the worker and
// the admin surface all go through here, so the validity check, audit row,
// transition log entry and event publish can never be skipped.
type TradeService struct {
	tradeRepo   *repositories.TradeRepo
	depositRepo *repositories.DepositRepo
	auditRepo   *repositories.AuditRepo
	publisher   events.Publisher
	cfg         *config.Config
	log         *zap.Logger
}

func NewTradeService(
	tradeRepo *repositories.TradeRepo,
	depositRepo *repositories.DepositRepo,
	auditRepo *repositories.AuditRepo,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *TradeService {
	return &TradeService{
		tradeRepo:   tradeRepo,
		depositRepo: depositRepo,
		auditRepo:   auditRepo,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

// transition validates and performs a guarded status move with the audit row
// and event publish. When the trade already sits in the target status the
// call is an idempotent no-op: retried requests succeed quietly.
func (s *TradeService) transition(ctx context.Context, trade *models.Trade, to, event string, actorID *uuid.UUID, actorType string) error {
	for attempt := 0; ; attempt++ {
		if trade.Status == to {
			return nil
		}
		if !models.IsValidTransition(trade.Status, to) {
			return fmt.Errorf("invalid transition from %s to %s", trade.Status, to)
		}

		from := trade.Status
		_, err := s.tradeRepo.TransitionStatus(ctx, trade.ID, from, to, event, actorID)
		if err == nil {
			trade.Status = to
			s.recordTransition(ctx, trade.ID, from, to, event, actorID, actorType)
			return nil
		}
		if !errors.Is(err, repositories.ErrStatusConflict) || attempt >= transitionRetries {
			return err
		}

		// Someone moved the trade first; re-read and re-validate.
		fresh, err := s.tradeRepo.GetByID(ctx, trade.ID)
		if err != nil {
			return err
		}
		*trade = *fresh
	}
}

func (s *TradeService) recordTransition(ctx context.Context, tradeID uuid.UUID, from, to, event string, actorID *uuid.UUID, actorType string) {
	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: actorID,
		ActorType:   actorType,
		Action:      fmt.Sprintf("trade_%s", event),
		EntityType:  "trade",
		EntityID:    &tradeID,
		Meta:        map[string]any{"from": from, "to": to},
	})
	_ = s.publisher.Publish(ctx, events.StreamTrades, events.Event{
		Type: events.EventTradeStatusChanged,
		Payload: map[string]any{
			"trade_id": tradeID.String(),
			"from":     from,
			"to":       to,
			"event":    event,
		},
	})
}

// GetTrade returns the trade after applying any lapsed deadline, so readers
// never see a stale pending_funding past its funding window even between
// worker sweeps.
func (s *TradeService) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	trade, err := s.tradeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.applyOverdue(ctx, trade)
	return trade, nil
}

func (s *TradeService) ListTrades(ctx context.Context, f repositories.TradeFilter) ([]models.Trade, error) {
	return s.tradeRepo.List(ctx, f)
}

func (s *TradeService) GetTransitions(ctx context.Context, tradeID uuid.UUID) ([]models.TradeTransition, error) {
	return s.tradeRepo.GetTransitions(ctx, tradeID)
}

func (s *TradeService) GetDeposits(ctx context.Context, tradeID uuid.UUID) ([]models.DepositEvent, error) {
	return s.depositRepo.GetByTrade(ctx, tradeID)
}

// PaymentInfo is what the depositor needs to fund the escrow.
type PaymentInfo struct {
	DepositAddress   string `json:"deposit_address"`
	Memo             string `json:"memo"`
	OutstandingUnits int64  `json:"outstanding_units"`
	FundingDeadline  string `json:"funding_deadline"`
}

func (s *TradeService) GetPaymentInfo(ctx context.Context, tradeID uuid.UUID, actorID uuid.UUID) (*PaymentInfo, error) {
	trade, err := s.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !trade.IsParticipant(actorID) {
		return nil, fmt.Errorf("not a participant of this trade")
	}
	return &PaymentInfo{
		DepositAddress:   s.cfg.TONHotWalletAddress,
		Memo:             fmt.Sprintf("%d", trade.EscrowID),
		OutstandingUnits: trade.OutstandingUnits(),
		FundingDeadline:  trade.FundingDeadline.UTC().Format(time.RFC3339),
	}, nil
}

// MarkFiatSent is the buyer declaring the fiat leg paid: funded -> active.
func (s *TradeService) MarkFiatSent(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.BuyerUserID != actorID {
		return nil, fmt.Errorf("only the buyer can mark fiat as sent")
	}
	if err := s.transition(ctx, trade, models.TradeStatusActive, models.TradeEventFiatSent, &actorID, "user"); err != nil {
		return nil, err
	}
	return trade, nil
}

// ConfirmFiatReceived settles the trade: active -> completed with the fee
// computed exactly once, at this moment, from the current fee schedule and
// the seller's trailing settled volume.
func (s *TradeService) ConfirmFiatReceived(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.SellerUserID != actorID {
		return nil, fmt.Errorf("only the seller can confirm fiat receipt")
	}
	if trade.Status != models.TradeStatusActive {
		if trade.Status == models.TradeStatusCompleted {
			return trade, nil
		}
		return nil, fmt.Errorf("trade is not awaiting fiat confirmation: %s", trade.Status)
	}

	volume, err := s.tradeRepo.MonthlyVolumeUnits(ctx, trade.SellerUserID)
	if err != nil {
		// Unknown volume falls back to the base schedule rather than
		// blocking settlement.
		s.log.Warn("monthly volume lookup failed, using base fee",
			zap.String("trade_id", trade.ID.String()), zap.Error(err))
		volume = -1
	}
	quote := s.cfg.Fees.Compute(trade.AmountUnits, volume)

	if _, err := s.tradeRepo.Complete(ctx, trade, quote.FeeBPS, quote.FeeUnits, quote.NetUnits, &actorID); err != nil {
		return nil, err
	}
	trade.Status = models.TradeStatusCompleted
	trade.FeeBPS = &quote.FeeBPS
	trade.FeeUnits = &quote.FeeUnits
	trade.NetUnits = &quote.NetUnits

	s.recordTransition(ctx, trade.ID, models.TradeStatusActive, models.TradeStatusCompleted,
		models.TradeEventFiatConfirmed, &actorID, "user")
	s.log.Info("trade settled",
		zap.String("trade_id", trade.ID.String()),
		zap.Int("fee_bps", quote.FeeBPS),
		zap.Int64("fee_units", quote.FeeUnits),
		zap.Int64("net_units", quote.NetUnits),
	)
	return trade, nil
}

// OpenDispute freezes settlement. Either participant may raise it once money
// is in escrow.
func (s *TradeService) OpenDispute(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !trade.IsParticipant(actorID) {
		return nil, fmt.Errorf("not a participant of this trade")
	}
	if err := s.transition(ctx, trade, models.TradeStatusDisputed, models.TradeEventDisputeRaised, &actorID, "user"); err != nil {
		return nil, err
	}
	return trade, nil
}

// ResolveRelease is the admin verdict in the buyer's favor: the escrow is
// released to the buyer with the standard fee applied.
func (s *TradeService) ResolveRelease(ctx context.Context, tradeID, adminID uuid.UUID) (*models.Trade, error) {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.Status == models.TradeStatusResolvedRelease {
		return trade, nil
	}

	volume, err := s.tradeRepo.MonthlyVolumeUnits(ctx, trade.SellerUserID)
	if err != nil {
		volume = -1
	}
	quote := s.cfg.Fees.Compute(trade.AmountUnits, volume)

	if _, err := s.tradeRepo.ResolveDispute(ctx, trade.ID, models.TradeStatusResolvedRelease,
		models.TradeEventAdminRelease, &quote.FeeBPS, &quote.FeeUnits, &quote.NetUnits, &adminID); err != nil {
		return nil, err
	}
	trade.Status = models.TradeStatusResolvedRelease
	trade.FeeBPS = &quote.FeeBPS
	trade.FeeUnits = &quote.FeeUnits
	trade.NetUnits = &quote.NetUnits

	s.recordTransition(ctx, trade.ID, models.TradeStatusDisputed, models.TradeStatusResolvedRelease,
		models.TradeEventAdminRelease, &adminID, "admin")
	return trade, nil
}

// ResolveRefund is the admin verdict in the seller's favor: the escrow goes
// back and no fee applies, since no settlement happened.
func (s *TradeService) ResolveRefund(ctx context.Context, tradeID, adminID uuid.UUID) (*models.Trade, error) {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade.Status == models.TradeStatusResolvedRefund {
		return trade, nil
	}

	if _, err := s.tradeRepo.ResolveDispute(ctx, trade.ID, models.TradeStatusResolvedRefund,
		models.TradeEventAdminRefund, nil, nil, nil, &adminID); err != nil {
		return nil, err
	}
	trade.Status = models.TradeStatusResolvedRefund

	s.recordTransition(ctx, trade.ID, models.TradeStatusDisputed, models.TradeStatusResolvedRefund,
		models.TradeEventAdminRefund, &adminID, "admin")
	return trade, nil
}

// Cancel withdraws an unfunded trade. Once any deposit has landed the money
// path takes over and cancellation is closed.
func (s *TradeService) Cancel(ctx context.Context, tradeID, actorID uuid.UUID) (*models.Trade, error) {
	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if !trade.IsParticipant(actorID) {
		return nil, fmt.Errorf("not a participant of this trade")
	}
	if trade.FundedUnits > 0 {
		return nil, fmt.Errorf("trade has received deposits and can no longer be cancelled")
	}
	if err := s.transition(ctx, trade, models.TradeStatusCancelled, models.TradeEventCancelled, &actorID, "user"); err != nil {
		return nil, err
	}
	return trade, nil
}

// SweepOverdueFunding expires unfunded trades past their funding deadline.
// Called by the worker; returns how many trades it moved.
func (s *TradeService) SweepOverdueFunding(ctx context.Context, limit int) (int, error) {
	trades, err := s.tradeRepo.GetOverdueFunding(ctx, limit)
	if err != nil {
		return 0, err
	}
	moved := 0
	for i := range trades {
		if s.applyOverdue(ctx, &trades[i]) {
			moved++
		}
	}
	return moved, nil
}

// SweepOverdueSettlement escalates funded and active trades past the trade
// deadline to disputed. Money is never auto-expired.
func (s *TradeService) SweepOverdueSettlement(ctx context.Context, limit int) (int, error) {
	trades, err := s.tradeRepo.GetOverdueSettlement(ctx, limit)
	if err != nil {
		return 0, err
	}
	moved := 0
	for i := range trades {
		if s.applyOverdue(ctx, &trades[i]) {
			moved++
		}
	}
	return moved, nil
}

// applyOverdue performs the lazy deadline transition if one is due. Losing
// the conditional update race just means another instance got there first.
func (s *TradeService) applyOverdue(ctx context.Context, trade *models.Trade) bool {
	target, event, ok := trade.OverdueTransition(time.Now())
	if !ok {
		return false
	}

	if target == models.TradeStatusExpired && trade.FundedUnits > 0 {
		// Partial funding at expiry: the escrow closes but the money needs
		// a manual refund.
		_ = s.auditRepo.Log(ctx, models.AuditLog{
			ActorType:  "system",
			Action:     "expired_with_partial_funding",
			EntityType: "trade",
			EntityID:   &trade.ID,
			Meta:       map[string]any{"funded_units": trade.FundedUnits},
		})
	}

	if err := s.transition(ctx, trade, target, event, nil, "system"); err != nil {
		s.log.Warn("overdue transition failed",
			zap.String("trade_id", trade.ID.String()),
			zap.String("target", target),
			zap.Error(err))
		return false
	}
	return true
}
