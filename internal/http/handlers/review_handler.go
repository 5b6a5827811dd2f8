package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/http/dto"
	"github.com/peerdesk/backend/internal/middleware"
	"github.com/peerdesk/backend/internal/repositories"
	"github.com/peerdesk/backend/internal/services"
	"go.uber.org/zap"
)

type ReviewHandler struct {
	reviewService *services.ReviewService
	log           *zap.Logger
}

func NewReviewHandler(reviewService *services.ReviewService, log *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService, log: log}
}

func (h *ReviewHandler) SubmitReview(c *fiber.Ctx) error {
	var req dto.SubmitReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	tradeID, err := uuid.Parse(req.TradeID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade_id"})
	}

	reviewerID := middleware.GetUserID(c)
	review, err := h.reviewService.SubmitReview(c.Context(), tradeID, reviewerID, req.Vote, req.Comment)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateReview) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: review})
}
