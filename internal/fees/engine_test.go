package fees

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func baseConfig() Config {
	return Config{
		BaseFeeBPS:  50, // 0.50%
		MinFeeUnits: 1,
		Tiers: []Tier{
			{MinVolumeUnits: 1000, FeeBPS: 40},
			{MinVolumeUnits: 10000, FeeBPS: 30},
			{MinVolumeUnits: 50000, FeeBPS: 10},
		},
	}
}

func TestComputeBaseFee(t *testing.T) {
	q := baseConfig().Compute(100000, -1)
	assert.Equal(t, 50, q.FeeBPS)
	assert.Equal(t, int64(500), q.FeeUnits)
	assert.Equal(t, int64(99500), q.NetUnits)
}

func TestComputeVolumeTierSelection(t *testing.T) {
	cfg := baseConfig()

	tests := []struct {
		name    string
		volume  int64
		wantBPS int
	}{
		{"below all tiers", 500, 50},
		{"first tier", 1000, 40},
		{"between tiers picks lower threshold", 12000, 30},
		{"top tier", 120000, 10},
		{"exactly on threshold", 50000, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := cfg.Compute(100000, tt.volume)
			assert.Equal(t, tt.wantBPS, q.FeeBPS)
		})
	}
}

// Tiers must be scanned descending by threshold regardless of config order.
func TestComputeTierOrderIndependent(t *testing.T) {
	cfg := baseConfig()
	cfg.Tiers = []Tier{
		{MinVolumeUnits: 50000, FeeBPS: 10},
		{MinVolumeUnits: 1000, FeeBPS: 40},
		{MinVolumeUnits: 10000, FeeBPS: 30},
	}
	q := cfg.Compute(1000, 12000)
	assert.Equal(t, 30, q.FeeBPS)
	assert.Equal(t, int64(3), q.FeeUnits)
}

func TestComputePromoOverride(t *testing.T) {
	cfg := baseConfig()
	cfg.PromoFeeBPS = 25

	q := cfg.computeAt(100000, -1, time.Now())
	assert.Equal(t, 25, q.FeeBPS)

	// Expired promo falls back to base.
	cfg.PromoUntil = time.Now().Add(-time.Hour)
	q = cfg.computeAt(100000, -1, time.Now())
	assert.Equal(t, 50, q.FeeBPS)

	// Volume tier still beats an active promo.
	cfg.PromoUntil = time.Time{}
	q = cfg.computeAt(100000, 50000, time.Now())
	assert.Equal(t, 10, q.FeeBPS)
}

func TestComputeMinimumFee(t *testing.T) {
	cfg := baseConfig()
	cfg.MinFeeUnits = 100

	q := cfg.Compute(1000, -1) // 0.5% of 1000 = 5, below minimum
	assert.Equal(t, int64(100), q.FeeUnits)
	assert.Equal(t, int64(900), q.NetUnits)
}

// Net may go to zero or negative; the engine reports it rather than clamping.
func TestComputeNetNotClamped(t *testing.T) {
	cfg := baseConfig()
	cfg.MinFeeUnits = 100

	q := cfg.Compute(60, -1)
	assert.Equal(t, int64(100), q.FeeUnits)
	assert.Equal(t, int64(-40), q.NetUnits)
}

func TestComputeRoundingHalfUp(t *testing.T) {
	cfg := Config{BaseFeeBPS: 30} // 0.30%

	tests := []struct {
		amount  int64
		wantFee int64
	}{
		{1000, 3},  // 3.0
		{1166, 3},  // 3.498 -> 3
		{1167, 4},  // 3.501 -> 4
		{500, 2},   // 1.5 -> 2 (half rounds up)
		{166, 0},   // 0.498 -> 0
		{167, 1},   // 0.501 -> 1
	}
	for _, tt := range tests {
		q := cfg.Compute(tt.amount, -1)
		assert.Equal(t, tt.wantFee, q.FeeUnits, "amount %d", tt.amount)
	}
}

// feeUnits + netUnits must reconstruct the principal for every input.
func TestComputeConservation(t *testing.T) {
	cfg := baseConfig()
	for _, amount := range []int64{1, 7, 99, 1000, 123457, 999999999} {
		for _, vol := range []int64{-1, 0, 1500, 99999999} {
			q := cfg.Compute(amount, vol)
			assert.Equal(t, amount, q.FeeUnits+q.NetUnits,
				"amount %d vol %d", amount, vol)
			assert.GreaterOrEqual(t, q.FeeUnits, cfg.MinFeeUnits)
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	cfg := baseConfig()
	a := cfg.Compute(123456, 12000)
	b := cfg.Compute(123456, 12000)
	assert.Equal(t, a, b)
}
