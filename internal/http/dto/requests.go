package dto

type AuthTelegramRequest struct {
	InitData string `json:"init_data"`
}

type CreateOfferRequest struct {
	Side         string  `json:"side"` // buy / sell
	AmountUnits  int64   `json:"amount_units"`
	FiatCurrency string  `json:"fiat_currency"`
	FiatPrice    int64   `json:"fiat_price"` // fiat minor units per whole coin
	Terms        *string `json:"terms,omitempty"`
}

type SetOfferStatusRequest struct {
	Status string `json:"status"` // active / paused / closed
}

type SubmitReviewRequest struct {
	TradeID string  `json:"trade_id"`
	Vote    string  `json:"vote"` // up / down
	Comment *string `json:"comment,omitempty"`
}

type BanUserRequest struct {
	BanType string `json:"ban_type"` // permanent / temporary
	Hours   int    `json:"hours,omitempty"`
	Reason  string `json:"reason"`
}

// DepositWebhookRequest is the payload the deposit watcher pushes for every
// observed transfer to the hot wallet.
type DepositWebhookRequest struct {
	TxHash        string `json:"tx_hash"`
	SenderAddress string `json:"sender_address"`
	AmountUnits   int64  `json:"amount_units"`
	Memo          string `json:"memo"`
	ObservedAt    int64  `json:"observed_at"` // unix seconds
}
