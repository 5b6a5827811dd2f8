package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/peerdesk/backend/internal/http/dto"
	"github.com/peerdesk/backend/internal/middleware"
	"github.com/peerdesk/backend/internal/models"
	"github.com/peerdesk/backend/internal/repositories"
	"github.com/peerdesk/backend/internal/services"
	"go.uber.org/zap"
)

// AdminHandler is the operator surface: bans and dispute resolution.
type AdminHandler struct {
	userRepo     *repositories.UserRepo
	auditRepo    *repositories.AuditRepo
	tradeService *services.TradeService
	log          *zap.Logger
}

func NewAdminHandler(userRepo *repositories.UserRepo, auditRepo *repositories.AuditRepo, tradeService *services.TradeService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{userRepo: userRepo, auditRepo: auditRepo, tradeService: tradeService, log: log}
}

func (h *AdminHandler) BanUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user id"})
	}

	var req dto.BanUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.BanType != models.BanTypePermanent && req.BanType != models.BanTypeTemporary {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "ban_type must be permanent or temporary"})
	}
	if req.Reason == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "reason is required"})
	}

	var expiresAt *time.Time
	if req.BanType == models.BanTypeTemporary {
		if req.Hours <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "hours is required for a temporary ban"})
		}
		t := time.Now().Add(time.Duration(req.Hours) * time.Hour)
		expiresAt = &t
	}

	if err := h.userRepo.SetBan(c.Context(), userID, req.BanType, expiresAt, req.Reason); err != nil {
		h.log.Error("ban failed", zap.String("user_id", userID.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	adminID := middleware.GetUserID(c)
	_ = h.auditRepo.Log(c.Context(), models.AuditLog{
		ActorUserID: &adminID,
		ActorType:   "admin",
		Action:      "user_banned",
		EntityType:  "user",
		EntityID:    &userID,
		Meta:        map[string]any{"ban_type": req.BanType, "reason": req.Reason},
	})
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) UnbanUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user id"})
	}

	if err := h.userRepo.ClearBan(c.Context(), userID); err != nil {
		h.log.Error("unban failed", zap.String("user_id", userID.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	adminID := middleware.GetUserID(c)
	_ = h.auditRepo.Log(c.Context(), models.AuditLog{
		ActorUserID: &adminID,
		ActorType:   "admin",
		Action:      "user_unbanned",
		EntityType:  "user",
		EntityID:    &userID,
	})
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) SetVerified(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user id"})
	}

	verified := c.Query("verified", "true") == "true"
	if err := h.userRepo.SetVerified(c.Context(), userID, verified); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// ResolveRelease settles a dispute in the buyer's favor.
func (h *AdminHandler) ResolveRelease(c *fiber.Ctx) error {
	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	trade, err := h.tradeService.ResolveRelease(c.Context(), tradeID, middleware.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trade})
}

// ResolveRefund settles a dispute in the seller's favor.
func (h *AdminHandler) ResolveRefund(c *fiber.Ctx) error {
	tradeID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid trade id"})
	}

	trade, err := h.tradeService.ResolveRefund(c.Context(), tradeID, middleware.GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: trade})
}

// GetAuditTrail exposes the audit log for one entity.
func (h *AdminHandler) GetAuditTrail(c *fiber.Ctx) error {
	entityID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid entity id"})
	}
	entityType := c.Query("type", "trade")

	logs, err := h.auditRepo.GetByEntity(c.Context(), entityType, entityID, 100, 0)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}
