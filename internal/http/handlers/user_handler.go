package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/http/dto"
	"github.com/peerdesk/backend/internal/middleware"
	"github.com/peerdesk/backend/internal/models"
	"github.com/peerdesk/backend/internal/repositories"
	"github.com/peerdesk/backend/internal/services"
	"go.uber.org/zap"
)

type UserHandler struct {
	userRepo      *repositories.UserRepo
	reviewService *services.ReviewService
	log           *zap.Logger
}

func NewUserHandler(userRepo *repositories.UserRepo, reviewService *services.ReviewService, log *zap.Logger) *UserHandler {
	return &UserHandler{userRepo: userRepo, reviewService: reviewService, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	user, err := h.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}
	return c.JSON(dto.MeResponse{
		User:            user,
		ReputationScore: models.ReputationScore(user.Upvotes, user.Downvotes),
		Tier:            user.Tier(),
	})
}

func (h *UserHandler) Ping(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if err := h.userRepo.UpdateLastActive(c.Context(), userID); err != nil {
		h.log.Error("failed to update last_active", zap.Error(err))
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// GetReputation is the public reputation card for any user.
func (h *UserHandler) GetReputation(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user id"})
	}
	summary, err := h.reviewService.GetReputation(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: summary})
}

func (h *UserHandler) GetReviews(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user id"})
	}

	limit, offset := 20, 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	reviews, err := h.reviewService.ListForUser(c.Context(), userID, limit, offset)
	if err != nil {
		h.log.Error("list reviews failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: reviews})
}
