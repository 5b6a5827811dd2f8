package fees

import (
	"sort"
	"time"
)

// Tier is a volume-discount entry: trades by a user whose trailing monthly
// volume reaches MinVolumeUnits are charged FeeBPS instead of the base fee.
type Tier struct {
	MinVolumeUnits int64
	FeeBPS         int
}

// Config is an immutable fee configuration snapshot. It is built once at
// startup from env and injected into every component that charges fees.
type Config struct {
	BaseFeeBPS  int
	PromoFeeBPS int       // 0 = no promo configured
	PromoUntil  time.Time // zero = promo never expires
	MinFeeUnits int64
	Tiers       []Tier
}

// Quote is the result of a fee computation. NetUnits may be zero or negative
// when the trade amount is below the minimum fee; callers must treat that as
// a configuration error rather than clamp it.
type Quote struct {
	FeeBPS   int   `json:"fee_bps"`
	FeeUnits int64 `json:"fee_units"`
	NetUnits int64 `json:"net_units"`
}

// Compute returns the platform fee for a settlement of amountUnits minor
// units. monthlyVolumeUnits is the seller's trailing 30-day completed volume;
// pass a negative value when no volume is known.
//
// Percent selection: base fee, overridden by an unexpired promo, overridden by
// the highest-threshold volume tier the volume qualifies for. The scan over
// tiers is strictly descending by threshold, independent of config order.
func (c Config) Compute(amountUnits, monthlyVolumeUnits int64) Quote {
	return c.computeAt(amountUnits, monthlyVolumeUnits, time.Now())
}

func (c Config) computeAt(amountUnits, monthlyVolumeUnits int64, now time.Time) Quote {
	bps := c.BaseFeeBPS
	if c.PromoFeeBPS > 0 && (c.PromoUntil.IsZero() || now.Before(c.PromoUntil)) {
		bps = c.PromoFeeBPS
	}

	if monthlyVolumeUnits >= 0 && len(c.Tiers) > 0 {
		tiers := make([]Tier, len(c.Tiers))
		copy(tiers, c.Tiers)
		sort.Slice(tiers, func(i, j int) bool {
			return tiers[i].MinVolumeUnits > tiers[j].MinVolumeUnits
		})
		for _, t := range tiers {
			if monthlyVolumeUnits >= t.MinVolumeUnits {
				bps = t.FeeBPS
				break
			}
		}
	}

	fee := roundHalfUpBPS(amountUnits, bps)
	if fee < c.MinFeeUnits {
		fee = c.MinFeeUnits
	}

	return Quote{
		FeeBPS:   bps,
		FeeUnits: fee,
		NetUnits: amountUnits - fee,
	}
}

// roundHalfUpBPS computes amount*bps/10000 rounded half-up in integer minor
// units, so feeUnits + netUnits always reconstructs the principal exactly.
func roundHalfUpBPS(amount int64, bps int) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*int64(bps) + 5000) / 10000
}
