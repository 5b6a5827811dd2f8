package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// MeResponse is the authenticated profile with the derived reputation card.
type MeResponse struct {
	User            any    `json:"user"`
	ReputationScore int    `json:"reputation_score"`
	Tier            string `json:"tier"`
}

// WebhookAckResponse tells the watcher whether to redeliver. Accepted false
// with OK true means the event was understood and must not be retried
// (duplicate, unmatched memo, closed trade).
type WebhookAckResponse struct {
	OK       bool   `json:"ok"`
	Accepted bool   `json:"accepted"`
	Outcome  string `json:"outcome"`
}
