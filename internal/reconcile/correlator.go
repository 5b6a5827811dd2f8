package reconcile

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/peerdesk/backend/internal/models"
)

var (
	// ErrUnparsableMemo — the transfer comment is not a bare escrow id.
	// Such transfers are logged and parked for manual handling, never guessed.
	ErrUnparsableMemo = errors.New("memo is not a valid escrow id")

	// ErrNoSuchEscrow — the memo parsed but no trade carries that escrow id.
	ErrNoSuchEscrow = errors.New("no trade with this escrow id")
)

// ParseMemo extracts the escrow id from a transfer comment. The grammar is
// deliberately narrow: optional surrounding whitespace, then decimal digits
// only. No prefixes, no signs, nothing that could make two memos collide.
// Zero parses fine; no trade ever carries it, so it misses on lookup.
func ParseMemo(memo string) (int64, error) {
	s := strings.TrimSpace(memo)
	if s == "" {
		return 0, ErrUnparsableMemo
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrUnparsableMemo
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrUnparsableMemo
	}
	return id, nil
}

// TradeLookup resolves escrow ids to trades.
type TradeLookup interface {
	GetByEscrowID(ctx context.Context, escrowID int64) (*models.Trade, error)
}

// Correlator maps observed transfers onto trades by memo alone. The sender
// address is never used for matching because users deposit from arbitrary
// wallets.
type Correlator struct {
	trades TradeLookup
}

func NewCorrelator(trades TradeLookup) *Correlator {
	return &Correlator{trades: trades}
}

func (c *Correlator) Resolve(ctx context.Context, memo string) (*models.Trade, error) {
	escrowID, err := ParseMemo(memo)
	if err != nil {
		return nil, err
	}
	t, err := c.trades.GetByEscrowID(ctx, escrowID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSuchEscrow
		}
		return nil, err
	}
	return t, nil
}
