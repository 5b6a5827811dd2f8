package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/peerdesk/backend/internal/banguard"
	"github.com/peerdesk/backend/internal/config"
	"github.com/peerdesk/backend/internal/db"
	"github.com/peerdesk/backend/internal/events"
	apphttp "github.com/peerdesk/backend/internal/http"
	"github.com/peerdesk/backend/internal/http/handlers"
	"github.com/peerdesk/backend/internal/locks"
	"github.com/peerdesk/backend/internal/reconcile"
	"github.com/peerdesk/backend/internal/repositories"
	"github.com/peerdesk/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	offerRepo := repositories.NewOfferRepo(pool)
	tradeRepo := repositories.NewTradeRepo(pool)
	depositRepo := repositories.NewDepositRepo(pool)
	reviewRepo := repositories.NewReviewRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	guard := banguard.NewGuard(userRepo, auditRepo, publisher, log)
	lockManager := locks.NewManager(rdb)
	tradeService := services.NewTradeService(tradeRepo, depositRepo, auditRepo, publisher, cfg, log)
	offerService := services.NewOfferService(offerRepo, tradeRepo, userRepo, auditRepo, cfg, log)
	reviewService := services.NewReviewService(reviewRepo, tradeRepo, userRepo, publisher, log)
	coordinator := reconcile.NewCoordinator(
		reconcile.NewCorrelator(tradeRepo),
		tradeRepo, depositRepo, lockManager, auditRepo, publisher, log,
	)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	userHandler := handlers.NewUserHandler(userRepo, reviewService, log)
	offerHandler := handlers.NewOfferHandler(offerService, log)
	tradeHandler := handlers.NewTradeHandler(tradeService, log)
	reviewHandler := handlers.NewReviewHandler(reviewService, log)
	webhookHandler := handlers.NewWebhookHandler(coordinator, cfg, log)
	adminHandler := handlers.NewAdminHandler(userRepo, auditRepo, tradeService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, guard,
		authHandler, userHandler, offerHandler, tradeHandler,
		reviewHandler, webhookHandler, adminHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
