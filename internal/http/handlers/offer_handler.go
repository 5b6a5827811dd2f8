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

type OfferHandler struct {
	offerService *services.OfferService
	log          *zap.Logger
}

func NewOfferHandler(offerService *services.OfferService, log *zap.Logger) *OfferHandler {
	return &OfferHandler{offerService: offerService, log: log}
}

func (h *OfferHandler) CreateOffer(c *fiber.Ctx) error {
	var req dto.CreateOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.Side == "" || req.AmountUnits <= 0 || req.FiatCurrency == "" || req.FiatPrice <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "side, amount_units, fiat_currency and fiat_price are required"})
	}

	makerID := middleware.GetUserID(c)
	offer, err := h.offerService.CreateOffer(c.Context(), makerID, services.CreateOfferInput{
		Side:         req.Side,
		AmountUnits:  req.AmountUnits,
		FiatCurrency: req.FiatCurrency,
		FiatPrice:    req.FiatPrice,
		Terms:        req.Terms,
	})
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: offer})
}

func (h *OfferHandler) GetOffer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}
	offer, err := h.offerService.GetOffer(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "offer not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: offer})
}

func (h *OfferHandler) ListOffers(c *fiber.Ctx) error {
	filter := repositories.OfferFilter{Limit: 20}

	if v := c.Query("side"); v != "" {
		filter.Side = &v
	}
	if v := c.Query("currency"); v != "" {
		filter.FiatCurrency = &v
	}
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
	if c.Query("mine") == "true" {
		userID := middleware.GetUserID(c)
		filter.UserID = &userID
	}

	offers, err := h.offerService.ListOffers(c.Context(), filter)
	if err != nil {
		h.log.Error("list offers failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: offers})
}

func (h *OfferHandler) SetStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}

	var req dto.SetOfferStatusRequest
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "status is required"})
	}

	ownerID := middleware.GetUserID(c)
	if err := h.offerService.SetOfferStatus(c.Context(), id, ownerID, req.Status); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// TakeOffer creates a trade from an active offer.
func (h *OfferHandler) TakeOffer(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid offer id"})
	}

	takerID := middleware.GetUserID(c)
	trade, err := h.offerService.TakeOffer(c.Context(), id, takerID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: trade})
}
