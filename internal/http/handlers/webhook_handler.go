package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/peerdesk/backend/internal/config"
	"github.com/peerdesk/backend/internal/http/dto"
	"github.com/peerdesk/backend/internal/models"
	"github.com/peerdesk/backend/internal/reconcile"
	"go.uber.org/zap"
)

// WebhookHandler receives deposit notifications from the chain watcher.
// The signature covers the raw body; a bad signature is rejected before
// anything is parsed or stored.
type WebhookHandler struct {
	coordinator *reconcile.Coordinator
	cfg         *config.Config
	log         *zap.Logger
}

func NewWebhookHandler(coordinator *reconcile.Coordinator, cfg *config.Config, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{coordinator: coordinator, cfg: cfg, log: log}
}

func (h *WebhookHandler) HandleDeposit(c *fiber.Ctx) error {
	body := c.Body()

	if h.cfg.DepositWebhookSecret != "" {
		sig := c.Get("X-Signature")
		if !h.verifySignature(body, sig) {
			h.log.Warn("webhook signature verification failed",
				zap.String("ip", c.IP()),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid signature"})
		}
	}

	var req dto.DepositWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid payload"})
	}
	if req.TxHash == "" || req.AmountUnits <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "tx_hash and positive amount_units are required"})
	}

	observedAt := time.Now()
	if req.ObservedAt > 0 {
		observedAt = time.Unix(req.ObservedAt, 0)
	}

	ev := &models.DepositEvent{
		TxHash:        req.TxHash,
		Source:        models.DepositSourceWebhook,
		SenderAddress: req.SenderAddress,
		AmountUnits:   req.AmountUnits,
		Memo:          req.Memo,
		ObservedAt:    observedAt,
	}

	outcome, err := h.coordinator.Process(c.Context(), ev)
	if err != nil {
		// Store or lock failure: signal the watcher to redeliver.
		h.log.Error("deposit processing failed", zap.String("tx_hash", req.TxHash), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "processing failed, retry"})
	}

	// Every understood event acks 200 so the watcher never retry-storms over
	// duplicates, bad memos or closed trades.
	return c.JSON(dto.WebhookAckResponse{
		OK:       true,
		Accepted: outcome == reconcile.OutcomeApplied || outcome == reconcile.OutcomeBecameFunded,
		Outcome:  string(outcome),
	})
}

func (h *WebhookHandler) verifySignature(body []byte, sigHex string) bool {
	if sigHex == "" {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.cfg.DepositWebhookSecret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}
