package models

import (
	"time"

	"github.com/google/uuid"
)

// Deposit event sources. Webhook pushes and the poll sweep feed the same
// reconciliation path; the transaction hash is the dedup key across both.
const (
	DepositSourceWebhook = "webhook"
	DepositSourcePoll    = "poll"
)

// DepositEvent is the normalized form of an observed on-chain transfer.
// SenderAddress is recorded for audit only; the memo is the sole correlation
// key (user wallets vary per deposit).
type DepositEvent struct {
	ID            uuid.UUID  `json:"id"`
	TxHash        string     `json:"tx_hash"`
	TradeID       *uuid.UUID `json:"trade_id,omitempty"` // set once applied
	Source        string     `json:"source"`
	SenderAddress string     `json:"sender_address"`
	AmountUnits   int64      `json:"amount_units"`
	Memo          string     `json:"memo"`
	ObservedAt    time.Time  `json:"observed_at"`
	CreatedAt     time.Time  `json:"created_at"`
}
