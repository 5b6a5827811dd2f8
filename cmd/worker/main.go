package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peerdesk/backend/internal/config"
	"github.com/peerdesk/backend/internal/db"
	"github.com/peerdesk/backend/internal/events"
	"github.com/peerdesk/backend/internal/repositories"
	"github.com/peerdesk/backend/internal/services"
	"go.uber.org/zap"
)

const sweepBatchSize = 100

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	tradeRepo := repositories.NewTradeRepo(pool)
	depositRepo := repositories.NewDepositRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	publisher := events.NewRedisPublisher(rdb, log)
	tradeService := services.NewTradeService(tradeRepo, depositRepo, auditRepo, publisher, cfg, log)

	log.Info("worker started")

	// Funding expiry is cheap and user-visible, settle escalation less so.
	fundingTicker := time.NewTicker(1 * time.Minute)
	settlementTicker := time.NewTicker(2 * time.Minute)
	defer fundingTicker.Stop()
	defer settlementTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-fundingTicker.C:
			runFundingSweep(ctx, tradeService, log)
		case <-settlementTicker.C:
			runSettlementSweep(ctx, tradeService, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runFundingSweep(ctx context.Context, tradeService *services.TradeService, log *zap.Logger) {
	moved, err := tradeService.SweepOverdueFunding(ctx, sweepBatchSize)
	if err != nil {
		log.Error("funding sweep failed", zap.Error(err))
		return
	}
	if moved > 0 {
		log.Info("expired unfunded trades", zap.Int("count", moved))
	}
}

func runSettlementSweep(ctx context.Context, tradeService *services.TradeService, log *zap.Logger) {
	moved, err := tradeService.SweepOverdueSettlement(ctx, sweepBatchSize)
	if err != nil {
		log.Error("settlement sweep failed", zap.Error(err))
		return
	}
	if moved > 0 {
		log.Info("escalated overdue trades to dispute", zap.Int("count", moved))
	}
}
