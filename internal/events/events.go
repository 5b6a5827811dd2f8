package events

import "context"

// Event types
const (
	EventTradeStatusChanged = "trade_status_changed"
	EventDepositApplied     = "deposit_applied"
	EventDepositOverage     = "deposit_overage"
	EventDepositUnmatched   = "deposit_unmatched"
	EventReviewSubmitted    = "review_submitted"
	EventBanDenied          = "ban_denied"
)

// StreamTrades carries every trade-related event; the websocket relay fans
// it out to connected participants.
const StreamTrades = "events:trades"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
