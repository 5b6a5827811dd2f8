package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/config"
	"github.com/peerdesk/backend/internal/models"
	"github.com/peerdesk/backend/internal/repositories"
	"go.uber.org/zap"
)

// stablecoinMinorUnits is the scale of one whole coin (6-decimal stablecoin).
const stablecoinMinorUnits = 1_000_000

type OfferService struct {
	offerRepo *repositories.OfferRepo
	tradeRepo *repositories.TradeRepo
	userRepo  *repositories.UserRepo
	auditRepo *repositories.AuditRepo
	cfg       *config.Config
	log       *zap.Logger
}

func NewOfferService(
	offerRepo *repositories.OfferRepo,
	tradeRepo *repositories.TradeRepo,
	userRepo *repositories.UserRepo,
	auditRepo *repositories.AuditRepo,
	cfg *config.Config,
	log *zap.Logger,
) *OfferService {
	return &OfferService{
		offerRepo: offerRepo,
		tradeRepo: tradeRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		cfg:       cfg,
		log:       log,
	}
}

type CreateOfferInput struct {
	Side         string
	AmountUnits  int64
	FiatCurrency string
	FiatPrice    int64
	Terms        *string
}

func (s *OfferService) CreateOffer(ctx context.Context, makerID uuid.UUID, input CreateOfferInput) (*models.Offer, error) {
	if !models.IsValidOfferSide(input.Side) {
		return nil, fmt.Errorf("invalid offer side %q, must be buy or sell", input.Side)
	}
	maker, err := s.userRepo.GetByID(ctx, makerID)
	if err != nil {
		return nil, err
	}
	if err := s.validateTradeSize(input.AmountUnits, input.FiatCurrency, input.FiatPrice, maker.Verified); err != nil {
		return nil, err
	}

	offer := &models.Offer{
		UserID:       makerID,
		Side:         input.Side,
		AmountUnits:  input.AmountUnits,
		FiatCurrency: strings.ToUpper(input.FiatCurrency),
		FiatPrice:    input.FiatPrice,
		Terms:        input.Terms,
		Status:       models.OfferStatusActive,
	}
	if err := s.offerRepo.Create(ctx, offer); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &makerID,
		ActorType:   "user",
		Action:      "offer_created",
		EntityType:  "offer",
		EntityID:    &offer.ID,
		Meta:        map[string]any{"side": offer.Side, "amount_units": offer.AmountUnits, "fiat_currency": offer.FiatCurrency},
	})
	return offer, nil
}

func (s *OfferService) GetOffer(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	return s.offerRepo.GetByID(ctx, id)
}

func (s *OfferService) ListOffers(ctx context.Context, f repositories.OfferFilter) ([]models.Offer, error) {
	return s.offerRepo.List(ctx, f)
}

func (s *OfferService) SetOfferStatus(ctx context.Context, offerID, ownerID uuid.UUID, status string) error {
	if status != models.OfferStatusActive && status != models.OfferStatusPaused && status != models.OfferStatusClosed {
		return fmt.Errorf("invalid offer status %q", status)
	}
	return s.offerRepo.UpdateStatus(ctx, offerID, ownerID, status)
}

// TakeOffer turns an active offer into a trade. The escrow depositor is
// always the stablecoin seller: the maker on a sell offer, the taker on a
// buy offer.
func (s *OfferService) TakeOffer(ctx context.Context, offerID, takerID uuid.UUID) (*models.Trade, error) {
	offer, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != models.OfferStatusActive {
		return nil, fmt.Errorf("offer is not active")
	}
	if offer.UserID == takerID {
		return nil, fmt.Errorf("cannot take your own offer")
	}

	taker, err := s.userRepo.GetByID(ctx, takerID)
	if err != nil {
		return nil, err
	}
	if err := s.validateTradeSize(offer.AmountUnits, offer.FiatCurrency, offer.FiatPrice, taker.Verified); err != nil {
		return nil, err
	}

	var buyerID, sellerID uuid.UUID
	if offer.Side == models.OfferSideSell {
		sellerID, buyerID = offer.UserID, takerID
	} else {
		sellerID, buyerID = takerID, offer.UserID
	}

	now := time.Now()
	trade := &models.Trade{
		OfferID:         offer.ID,
		BuyerUserID:     buyerID,
		SellerUserID:    sellerID,
		Status:          models.TradeStatusPendingFunding,
		AmountUnits:     offer.AmountUnits,
		FiatCurrency:    offer.FiatCurrency,
		FiatPrice:       offer.FiatPrice,
		FundingDeadline: now.Add(s.cfg.FundingTimeout),
		TradeDeadline:   now.Add(s.cfg.TradeTimeout),
	}
	if err := s.tradeRepo.Create(ctx, trade); err != nil {
		return nil, err
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &takerID,
		ActorType:   "user",
		Action:      "trade_created",
		EntityType:  "trade",
		EntityID:    &trade.ID,
		Meta: map[string]any{
			"offer_id":     offer.ID.String(),
			"escrow_id":    trade.EscrowID,
			"amount_units": trade.AmountUnits,
		},
	})
	s.log.Info("trade created",
		zap.String("trade_id", trade.ID.String()),
		zap.Int64("escrow_id", trade.EscrowID),
		zap.Int64("amount_units", trade.AmountUnits),
	)
	return trade, nil
}

// validateTradeSize enforces the platform limits: the stablecoin side within
// the account's per-trade band, the fiat side above the per-currency floor.
func (s *OfferService) validateTradeSize(amountUnits int64, fiatCurrency string, fiatPrice int64, verified bool) error {
	if amountUnits < s.cfg.MinTradeUnits {
		return fmt.Errorf("amount below platform minimum")
	}
	maxUnits := s.cfg.MaxTradeUnits
	if verified {
		maxUnits = s.cfg.MaxTradeUnitsVerified
	}
	if amountUnits > maxUnits {
		return fmt.Errorf("amount above per-trade limit")
	}
	if min := s.cfg.MinFiatFor(fiatCurrency); min > 0 {
		if fiatTotalMinorUnits(amountUnits, fiatPrice) < min {
			return fmt.Errorf("fiat amount below minimum for %s", strings.ToUpper(fiatCurrency))
		}
	}
	return nil
}

// fiatTotalMinorUnits converts a stablecoin amount to its fiat value at the
// given per-coin price. The whole and fractional coin parts are priced
// separately so sub-coin amounts are not truncated to zero and the
// intermediate products stay within int64 for any configured limit.
func fiatTotalMinorUnits(amountUnits, fiatPrice int64) int64 {
	whole := amountUnits / stablecoinMinorUnits
	frac := amountUnits % stablecoinMinorUnits
	return whole*fiatPrice + frac*fiatPrice/stablecoinMinorUnits
}
