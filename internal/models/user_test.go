package models

import "testing"

func TestReputationScore(t *testing.T) {
	tests := []struct {
		up, down, want int
	}{
		{0, 0, 100},
		{10, 0, 100},
		{0, 10, 0},
		{9, 1, 90},
		{1, 1, 50},
		{2, 1, 67}, // 66.7 rounds up
		{1, 2, 33},
	}
	for _, tt := range tests {
		if got := ReputationScore(tt.up, tt.down); got != tt.want {
			t.Errorf("ReputationScore(%d, %d) = %d, want %d", tt.up, tt.down, got, tt.want)
		}
	}
}

func TestReputationTier(t *testing.T) {
	tests := []struct {
		trades, score int
		want          string
	}{
		{0, 100, TierUnrated},
		{1, 0, TierNewTrader},
		{9, 100, TierNewTrader},
		{10, 75, TierVerified},
		{10, 74, TierNewTrader},
		{50, 85, TierExperienced},
		{99, 95, TierExperienced},
		{100, 90, TierTopTrader},
		{100, 89, TierExperienced},
		{500, 50, TierNewTrader}, // many trades but bad score
	}
	for _, tt := range tests {
		if got := ReputationTier(tt.trades, tt.score); got != tt.want {
			t.Errorf("ReputationTier(%d, %d) = %q, want %q", tt.trades, tt.score, got, tt.want)
		}
	}
}
