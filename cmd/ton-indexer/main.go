package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/peerdesk/backend/internal/config"
	"github.com/peerdesk/backend/internal/db"
	"github.com/peerdesk/backend/internal/events"
	"github.com/peerdesk/backend/internal/locks"
	"github.com/peerdesk/backend/internal/models"
	"github.com/peerdesk/backend/internal/reconcile"
	"github.com/peerdesk/backend/internal/repositories"
	"github.com/redis/go-redis/v9"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	redisCursorLT   = "ton-indexer:cursor:lt"
	redisCursorHash = "ton-indexer:cursor:hash"
	redisSkipped    = "ton-indexer:skip:"
	skippedTTL      = 7 * 24 * time.Hour
	pollInterval    = 5 * time.Second
	txBatchSize     = 100
	applyWorkers    = 4
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TONHotWalletAddress == "" {
		log.Fatal("TON_HOT_WALLET_ADDRESS is required")
	}

	hotWallet, err := address.ParseAddr(cfg.TONHotWalletAddress)
	if err != nil {
		log.Fatal("invalid TON_HOT_WALLET_ADDRESS", zap.String("addr", cfg.TONHotWalletAddress), zap.Error(err))
	}

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
	coordinator := reconcile.NewCoordinator(
		reconcile.NewCorrelator(tradeRepo),
		tradeRepo, depositRepo, locks.NewManager(rdb), auditRepo, publisher, log,
	)

	tonAPI, err := connectToTON(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to TON network", zap.Error(err))
	}

	log.Info("TON indexer started",
		zap.String("hot_wallet", hotWallet.String()),
		zap.String("network", cfg.TONNetwork),
	)

	initCursor(ctx, tonAPI, hotWallet, rdb, log)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := pollAndProcess(ctx, tonAPI, hotWallet, coordinator, rdb, log); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down TON indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// connectToTON establishes a connection to the TON network.
// If LITE_SERVER_HOST + LITE_SERVER_KEY are set, connects to a specific lite server.
// Otherwise, auto-discovers lite servers from the global TON config based on TON_NETWORK.
func connectToTON(ctx context.Context, cfg *config.Config, log *zap.Logger) (ton.APIClientWrapped, error) {
	client := liteclient.NewConnectionPool()

	if cfg.LiteServerHost != "" && cfg.LiteServerKey != "" {
		addr := fmt.Sprintf("%s:%d", cfg.LiteServerHost, cfg.LiteServerPort)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, cfg.LiteServerKey); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		var configURL string
		switch strings.ToLower(cfg.TONNetwork) {
		case "mainnet":
			configURL = "https://ton.org/global.config.json"
		default:
			configURL = "https://ton.org/testnet-global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", cfg.TONNetwork))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	proofPolicy := ton.ProofCheckPolicyFast
	if strings.ToLower(cfg.TONNetwork) == "mainnet" {
		proofPolicy = ton.ProofCheckPolicySecure
	}

	api := ton.NewAPIClient(client, proofPolicy).WithRetry()
	return api, nil
}

// initCursor sets the initial cursor position on first run. It stores the
// current account LastTxLT so that only transactions arriving after startup
// are processed.
func initCursor(ctx context.Context, api ton.APIClientWrapped, addr *address.Address, rdb *redis.Client, log *zap.Logger) {
	existing, _ := rdb.Get(ctx, redisCursorLT).Result()
	if existing != "" {
		log.Info("resuming from saved cursor", zap.String("lt", existing))
		return
	}

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		log.Warn("failed to get master block for cursor init", zap.Error(err))
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	account, err := api.GetAccount(ctx, block, addr)
	if err != nil {
		log.Warn("failed to get account for cursor init", zap.Error(err))
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		log.Info("hot wallet not active yet, starting from LT=0")
		rdb.Set(ctx, redisCursorLT, "0", 0)
		return
	}

	saveCursor(ctx, rdb, account.LastTxLT, account.LastTxHash)
	log.Info("cursor initialized at current account state (skipping historical transactions)",
		zap.Uint64("lt", account.LastTxLT),
		zap.String("hash", hex.EncodeToString(account.LastTxHash)),
	)
}

func loadCursorLT(ctx context.Context, rdb *redis.Client) uint64 {
	val, err := rdb.Get(ctx, redisCursorLT).Result()
	if err != nil || val == "" {
		return 0
	}
	lt, _ := strconv.ParseUint(val, 10, 64)
	return lt
}

func saveCursor(ctx context.Context, rdb *redis.Client, lt uint64, hash []byte) {
	rdb.Set(ctx, redisCursorLT, strconv.FormatUint(lt, 10), 0)
	rdb.Set(ctx, redisCursorHash, hex.EncodeToString(hash), 0)
}

// pollAndProcess runs one poll cycle: fetch transactions newer than the
// cursor, normalize incoming transfers into deposit events, and push them
// through the reconciliation funnel. The cursor only advances after every
// event of the batch has been handled, so a crash replays the batch and the
// tx-hash dedup absorbs the repeats.
func pollAndProcess(
	ctx context.Context,
	api ton.APIClientWrapped,
	addr *address.Address,
	coordinator *reconcile.Coordinator,
	rdb *redis.Client,
	log *zap.Logger,
) error {
	cursorLT := loadCursorLT(ctx, rdb)

	block, err := api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return fmt.Errorf("get master block: %w", err)
	}

	account, err := api.GetAccount(ctx, block, addr)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		return nil
	}

	if account.LastTxLT <= cursorLT {
		return nil
	}

	newTxs, err := fetchNewTransactions(ctx, api, addr, account, cursorLT)
	if err != nil {
		return fmt.Errorf("fetch transactions: %w", err)
	}

	deposits := make([]*models.DepositEvent, 0, len(newTxs))
	for _, tx := range newTxs {
		if ev := normalizeTx(ctx, tx, rdb, log); ev != nil {
			deposits = append(deposits, ev)
		}
	}

	if len(deposits) > 0 {
		log.Info("applying observed deposits", zap.Int("count", len(deposits)))
		if err := applyDeposits(ctx, coordinator, deposits, log); err != nil {
			// Cursor stays put; the whole batch is retried next cycle.
			return err
		}
	}

	saveCursor(ctx, rdb, account.LastTxLT, account.LastTxHash)
	return nil
}

// applyDeposits processes a batch with bounded parallelism. Deposits for the
// same trade serialize on the per-trade lock; distinct trades proceed
// concurrently.
func applyDeposits(ctx context.Context, coordinator *reconcile.Coordinator, deposits []*models.DepositEvent, log *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(applyWorkers)

	for _, ev := range deposits {
		ev := ev
		g.Go(func() error {
			outcome, err := coordinator.Process(gctx, ev)
			if err != nil {
				return fmt.Errorf("apply deposit %s: %w", ev.TxHash, err)
			}
			log.Debug("deposit processed",
				zap.String("tx_hash", ev.TxHash),
				zap.String("outcome", string(outcome)),
			)
			return nil
		})
	}
	return g.Wait()
}

// normalizeTx turns an on-chain transaction into a deposit event, or nil for
// transfers that can never match (outgoing, bounced, zero value, no memo).
// Unmatchable transfers get a redis skip marker so they are not re-logged on
// batch replay; matchable ones rely on the database dedup instead.
func normalizeTx(ctx context.Context, tx *tlb.Transaction, rdb *redis.Client, log *zap.Logger) *models.DepositEvent {
	if tx.IO.In == nil {
		return nil
	}

	inMsg, ok := tx.IO.In.Msg.(*tlb.InternalMessage)
	if !ok || inMsg == nil {
		return nil
	}

	if inMsg.Bounced {
		return nil
	}

	amount := inMsg.Amount.Nano()
	if amount.Sign() <= 0 || !amount.IsInt64() {
		return nil
	}

	txHash := hex.EncodeToString(tx.Hash)
	skipKey := redisSkipped + txHash
	if rdb.Exists(ctx, skipKey).Val() > 0 {
		return nil
	}

	comment := extractComment(inMsg)
	if comment == "" {
		log.Debug("transfer without memo, skipping",
			zap.Uint64("lt", tx.LT),
			zap.String("from", inMsg.SrcAddr.String()),
			zap.String("amount", inMsg.Amount.String()),
		)
		rdb.Set(ctx, skipKey, "no_memo", skippedTTL)
		return nil
	}

	return &models.DepositEvent{
		TxHash:        txHash,
		Source:        models.DepositSourcePoll,
		SenderAddress: inMsg.SrcAddr.String(),
		AmountUnits:   amount.Int64(),
		Memo:          comment,
		ObservedAt:    time.Unix(int64(tx.Now), 0),
	}
}

// fetchNewTransactions retrieves all transactions with LT > cursorLT.
// ListTransactions returns results oldest-first; we paginate backwards
// until we reach the cursor, then return in chronological order.
func fetchNewTransactions(
	ctx context.Context,
	api ton.APIClientWrapped,
	addr *address.Address,
	account *tlb.Account,
	cursorLT uint64,
) ([]*tlb.Transaction, error) {
	var allTxs []*tlb.Transaction

	lt := account.LastTxLT
	hash := account.LastTxHash

	for {
		txs, err := api.ListTransactions(ctx, addr, uint32(txBatchSize), lt, hash)
		if err != nil {
			return nil, fmt.Errorf("list transactions (lt=%d): %w", lt, err)
		}
		if len(txs) == 0 {
			break
		}

		reachedCursor := false
		for _, tx := range txs {
			if tx.LT <= cursorLT {
				reachedCursor = true
				continue
			}
			allTxs = append(allTxs, tx)
		}

		if reachedCursor || len(txs) < txBatchSize {
			break
		}

		oldest := txs[0]
		if oldest.PrevTxLT == 0 {
			break
		}
		lt = oldest.PrevTxLT
		hash = oldest.PrevTxHash
	}

	sort.Slice(allTxs, func(i, j int) bool {
		return allTxs[i].LT < allTxs[j].LT
	})

	return allTxs, nil
}

// extractComment parses a text comment from an InternalMessage body.
// TON text comments have opcode 0x00000000 followed by UTF-8 text.
func extractComment(inMsg *tlb.InternalMessage) string {
	body := inMsg.Body
	if body == nil {
		return ""
	}

	slice := body.BeginParse()
	if slice.BitsLeft() < 32 {
		return ""
	}

	op, err := slice.LoadUInt(32)
	if err != nil || op != 0 {
		return ""
	}

	remaining := slice.BitsLeft()
	if remaining < 8 {
		return ""
	}

	data, err := slice.LoadSlice(remaining)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
