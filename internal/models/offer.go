package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer sides, from the maker's perspective: a "sell" offer escrows the
// maker's stablecoin, a "buy" offer escrows the taker's.
const (
	OfferSideBuy  = "buy"
	OfferSideSell = "sell"
)

// Offer statuses
const (
	OfferStatusActive = "active"
	OfferStatusPaused = "paused"
	OfferStatusClosed = "closed"
)

func IsValidOfferSide(side string) bool {
	return side == OfferSideBuy || side == OfferSideSell
}

type Offer struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Side         string    `json:"side"`
	AmountUnits  int64     `json:"amount_units"` // stablecoin minor units per trade
	FiatCurrency string    `json:"fiat_currency"`
	FiatPrice    int64     `json:"fiat_price"` // fiat minor units per whole coin
	Terms        *string   `json:"terms,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
