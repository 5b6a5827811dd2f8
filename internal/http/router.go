package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/peerdesk/backend/internal/banguard"
	"github.com/peerdesk/backend/internal/config"
	"github.com/peerdesk/backend/internal/http/handlers"
	"github.com/peerdesk/backend/internal/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	guard *banguard.Guard,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	offerHandler *handlers.OfferHandler,
	tradeHandler *handlers.TradeHandler,
	reviewHandler *handlers.ReviewHandler,
	webhookHandler *handlers.WebhookHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Signature",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/telegram", authHandler.TelegramAuth)

	// Deposit webhook (authenticated by HMAC signature, not JWT)
	api.Post("/webhooks/deposit", webhookHandler.HandleDeposit)

	// Rate-limited endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Post("/me/ping", userHandler.Ping)
	protected.Get("/users/:id/reputation", userHandler.GetReputation)
	protected.Get("/users/:id/reviews", userHandler.GetReviews)

	// Reads stay open to banned accounts; writes go through the ban guard.
	banned := protected.Group("", middleware.BanGuardMiddleware(guard))

	// Offers
	protected.Get("/offers", offerHandler.ListOffers)
	protected.Get("/offers/:id", offerHandler.GetOffer)
	banned.Post("/offers", offerHandler.CreateOffer)
	banned.Post("/offers/:id/status", offerHandler.SetStatus)
	banned.Post("/offers/:id/take", offerHandler.TakeOffer)

	// Trades
	protected.Get("/trades", tradeHandler.ListTrades)
	protected.Get("/trades/:id", tradeHandler.GetTrade)
	protected.Get("/trades/:id/payment", tradeHandler.GetPaymentInfo)
	protected.Get("/trades/:id/transitions", tradeHandler.GetTransitions)
	protected.Get("/trades/:id/deposits", tradeHandler.GetDeposits)
	banned.Post("/trades/:id/mark-paid", tradeHandler.MarkPaid)
	banned.Post("/trades/:id/confirm-payment", tradeHandler.ConfirmPayment)
	banned.Post("/trades/:id/dispute", tradeHandler.OpenDispute)
	banned.Post("/trades/:id/cancel", tradeHandler.Cancel)

	// Reviews
	banned.Post("/reviews", reviewHandler.SubmitReview)

	// Admin
	admin := protected.Group("/admin", middleware.AdminMiddleware(cfg))
	admin.Post("/users/:id/ban", adminHandler.BanUser)
	admin.Post("/users/:id/unban", adminHandler.UnbanUser)
	admin.Post("/users/:id/verify", adminHandler.SetVerified)
	admin.Post("/trades/:id/resolve-release", adminHandler.ResolveRelease)
	admin.Post("/trades/:id/resolve-refund", adminHandler.ResolveRefund)
	admin.Get("/audit/:id", adminHandler.GetAuditTrail)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
