package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/http/dto"
	"github.com/peerdesk/backend/internal/middleware"
	"github.com/peerdesk/backend/internal/repositories"
	"github.com/peerdesk/backend/internal/services"
	"go.uber.org/zap"
)

type TradeHandler struct {
	tradeService *services.TradeService
	log          *zap.Logger
}

func NewTradeHandler(tradeService *services.TradeService, log *zap.Logger) *TradeHandler {
	return &TradeHandler{tradeService: tradeService, log: log}
}

func (h *TradeHandler) GetTrade(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	trade, err := h.tradeService.GetTrade(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "trade not found"})
	}
	if !trade.IsParticipant(middleware.GetUserID(c)) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not a participant of this trade"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trade})
}

func (h *TradeHandler) ListTrades(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	filter := repositories.TradeFilter{UserID: &userID, Limit: 20}

	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	trades, err := h.tradeService.ListTrades(c.Context(), filter)
	if err != nil {
		h.log.Error("list trades failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trades})
}

// GetPaymentInfo returns the deposit address and memo for funding the escrow.
func (h *TradeHandler) GetPaymentInfo(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	info, err := h.tradeService.GetPaymentInfo(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: info})
}

func (h *TradeHandler) GetTransitions(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	trade, err := h.tradeService.GetTrade(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "trade not found"})
	}
	if !trade.IsParticipant(middleware.GetUserID(c)) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not a participant of this trade"})
	}

	transitions, err := h.tradeService.GetTransitions(c.Context(), id)
	if err != nil {
		h.log.Error("get transitions failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: transitions})
}

func (h *TradeHandler) GetDeposits(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	trade, err := h.tradeService.GetTrade(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "trade not found"})
	}
	if !trade.IsParticipant(middleware.GetUserID(c)) {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "not a participant of this trade"})
	}

	deposits, err := h.tradeService.GetDeposits(c.Context(), id)
	if err != nil {
		h.log.Error("get deposits failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: deposits})
}

func (h *TradeHandler) MarkPaid(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	trade, err := h.tradeService.MarkFiatSent(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trade})
}

func (h *TradeHandler) ConfirmPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	trade, err := h.tradeService.ConfirmFiatReceived(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trade})
}

func (h *TradeHandler) OpenDispute(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	trade, err := h.tradeService.OpenDispute(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trade})
}

func (h *TradeHandler) Cancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	trade, err := h.tradeService.Cancel(c.Context(), id, middleware.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trade})
}
