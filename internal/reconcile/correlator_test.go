package reconcile

import (
	"context"
	"testing"

	"github.com/peerdesk/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestParseMemo(t *testing.T) {
	tests := []struct {
		memo    string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"  42  ", 42, false},
		{"1000001", 1000001, false},
		{"", 0, true},
		{"   ", 0, true},
		{"0", 0, false},
		{"-42", 0, true},
		{"+42", 0, true},
		{"42x", 0, true},
		{"escrow-42", 0, true},
		{"4 2", 0, true},
		{"9223372036854775808", 0, true}, // int64 overflow
	}
	for _, tt := range tests {
		got, err := ParseMemo(tt.memo)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnparsableMemo, "memo %q", tt.memo)
			continue
		}
		assert.NoError(t, err, "memo %q", tt.memo)
		assert.Equal(t, tt.want, got, "memo %q", tt.memo)
	}
}

// Zero is grammatically valid but matches no trade, so it resolves to a miss
// rather than a parse failure.
func TestResolveZeroMemo(t *testing.T) {
	c := NewCorrelator(&fakeLookup{trades: map[int64]*models.Trade{}})
	_, err := c.Resolve(context.Background(), "0")
	assert.ErrorIs(t, err, ErrNoSuchEscrow)
}
