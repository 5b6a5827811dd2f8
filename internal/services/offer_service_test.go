package services

import (
	"testing"

	"github.com/peerdesk/backend/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestFiatTotalMinorUnits(t *testing.T) {
	tests := []struct {
		name        string
		amountUnits int64
		fiatPrice   int64
		want        int64
	}{
		{"one whole coin", 1_000_000, 500, 500},
		{"ten coins", 10_000_000, 500, 5000},
		{"half a coin counts", 500_000, 1000, 500},
		{"coin and a half", 1_500_000, 300, 450},
		{"sub-minor remainder truncates", 1_500_000, 301, 451}, // 451.5
		{"large position", 10_000_000_000, 1_000_000, 10_000_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fiatTotalMinorUnits(tt.amountUnits, tt.fiatPrice))
		})
	}
}

func TestValidateTradeSize(t *testing.T) {
	cfg := &config.Config{
		MinTradeUnits:         1_000_000,
		MaxTradeUnits:         1_000_000_000,
		MaxTradeUnitsVerified: 10_000_000_000,
		FiatMinimums:          map[string]int64{"USD": 500},
	}
	s := &OfferService{cfg: cfg}

	assert.NoError(t, s.validateTradeSize(1_000_000, "USD", 500, false))
	assert.NoError(t, s.validateTradeSize(1_000_000, "usd", 500, false))

	// Platform band.
	assert.Error(t, s.validateTradeSize(999_999, "USD", 500, false))
	assert.Error(t, s.validateTradeSize(2_000_000_000, "USD", 500, false))
	assert.NoError(t, s.validateTradeSize(2_000_000_000, "USD", 500, true))
	assert.Error(t, s.validateTradeSize(20_000_000_000, "USD", 500, true))

	// Fiat floor.
	assert.Error(t, s.validateTradeSize(1_000_000, "USD", 499, false))
	assert.NoError(t, s.validateTradeSize(1_000_000, "EUR", 1, false)) // no floor configured

	// The fractional coin part counts toward the floor.
	assert.NoError(t, s.validateTradeSize(2_500_000, "USD", 200, false)) // 2.5 coins -> 500
	assert.Error(t, s.validateTradeSize(2_400_000, "USD", 200, false))  // 2.4 coins -> 480
}
