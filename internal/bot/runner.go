// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-copybot/internal/audit"
	"github.com/rovshanmuradov/solana-copybot/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-copybot/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-copybot/internal/classifier"
	"github.com/rovshanmuradov/solana-copybot/internal/config"
	"github.com/rovshanmuradov/solana-copybot/internal/executor"
	"github.com/rovshanmuradov/solana-copybot/internal/ledger"
	"github.com/rovshanmuradov/solana-copybot/internal/monitor"
	"github.com/rovshanmuradov/solana-copybot/internal/quote"
	"github.com/rovshanmuradov/solana-copybot/internal/stream"
	"github.com/rovshanmuradov/solana-copybot/internal/utils/metrics"
	"github.com/rovshanmuradov/solana-copybot/internal/wallet"
)

// eventBuffer: запас между читателем потока и обработчиком.
const eventBuffer = 256

type Runner struct {
	logger   *zap.Logger
	config   *config.Config
	metrics  *metrics.Collector
	shutdown *ShutdownHandler

	wallet     *wallet.Wallet
	ledger     *ledger.Ledger
	executor   *executor.Executor
	copyTrader *CopyTrader
	stopLoss   *monitor.StopLoss
	stream     *stream.Client
}

// NewRunner собирает все компоненты из конфигурации. Сетевые соединения,
// кроме проверки redis, открываются только в Run.
func NewRunner(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Runner, err error) {
	r := &Runner{
		logger:   logger,
		config:   cfg,
		metrics:  metrics.NewCollector(),
		shutdown: NewShutdownHandler(logger, 10*time.Second),
	}
	defer func() {
		if err != nil {
			_ = r.shutdown.Shutdown(context.Background())
		}
	}()

	r.wallet, err = wallet.NewWallet(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	logger.Info("🤖 Copy-trading wallet", zap.String("address", r.wallet.Address()))

	store, err := r.openStore(ctx)
	if err != nil {
		return nil, err
	}
	r.ledger = ledger.New(store, logger)
	held, err := r.ledger.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	r.metrics.SetOpenPositions(held)

	auditLog, err := audit.Open(cfg.AuditLogPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	r.shutdown.Add("audit_log", auditLog)
	logger.Info("Audit log opened", zap.String("path", auditLog.Path()))

	commitment := rpc.CommitmentType(cfg.Commitment)
	solClient := solbc.NewClient(solbc.Config{RPCURL: cfg.RPCURL, Commitment: commitment}, logger, r.metrics)
	r.shutdown.Add("solana_rpc", solClient)

	txManager := transaction.NewManager(solClient, logger, transaction.Config{
		PollInterval:     cfg.ConfirmPollInterval(),
		ConfirmationTime: cfg.ConfirmTimeout(),
		Commitment:       commitment,
	})

	quotes := quote.NewClient(quote.Config{
		Endpoint:         cfg.QuoteEndpoint,
		Timeout:          cfg.QuoteTimeout(),
		PriorityFeeLevel: cfg.PriorityFeeLevel,
		SlippageBps:      cfg.SlippageBps,
	}, logger)

	r.executor = executor.New(quotes, solClient, txManager, r.wallet,
		executor.Config{Simulation: cfg.TestMode}, logger, r.metrics)

	cls, err := classifier.New(classifier.Config{
		Tracked:          cfg.WatchList,
		Programs:         cfg.DEXPrograms,
		MinWhaleLamports: cfg.MinWhaleLamports(),
		BuyLamports:      cfg.BuyLamports(),
	}, r.ledger, logger, r.metrics)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}

	r.copyTrader = NewCopyTrader(cls, r.executor, r.ledger, auditLog, r.wallet.Address(), logger)

	r.stopLoss = monitor.NewStopLoss(r.ledger, quotes, r.executor, auditLog, monitor.Config{
		Interval: cfg.StopLossInterval(),
		Factor:   cfg.Factor(),
		Actor:    r.wallet.Address(),
	}, logger, r.metrics)

	streamCfg := stream.DefaultConfig()
	streamCfg.Endpoint = cfg.StreamEndpoint
	streamCfg.APIKey = cfg.StreamToken
	streamCfg.Accounts = cfg.WatchList
	streamCfg.Commitment = cfg.Commitment
	r.stream = stream.NewClient(streamCfg, logger, r.metrics)
	r.shutdown.Add("stream", r.stream)

	return r, nil
}

func (r *Runner) openStore(ctx context.Context) (ledger.Store, error) {
	switch r.config.LedgerBackend {
	case config.BackendRedis:
		store, err := ledger.NewRedisStore(ctx, r.config.RedisURL, r.config.RedisKey)
		if err != nil {
			return nil, fmt.Errorf("open redis ledger: %w", err)
		}
		r.shutdown.Add("redis", store)
		r.logger.Info("Using redis ledger", zap.String("key", r.config.RedisKey))
		return store, nil
	default:
		store := ledger.NewFileStore(r.config.LedgerPath)
		r.logger.Info("Using file ledger", zap.String("path", store.Path()))
		return store, nil
	}
}

// CopyTrader returns the event handler, used for manual simulation.
func (r *Runner) CopyTrader() *CopyTrader {
	return r.copyTrader
}

// Run запускает поток, обработчик событий, стоп-лосс и (опционально)
// сервер метрик. Возвращается после отмены ctx или SIGINT/SIGTERM.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := r.shutdown.NotifyContext(ctx)
	defer cancel()

	r.logger.Info("🚀 Copy-trading started",
		zap.Int("tracked", len(r.config.WatchList)),
		zap.Bool("test_mode", r.executor.Simulation()),
		zap.Uint64("buy_lamports", r.config.BuyLamports()),
		zap.Uint64("min_whale_lamports", r.config.MinWhaleLamports()))

	g, gCtx := errgroup.WithContext(ctx)
	events := make(chan stream.Event, eventBuffer)

	g.Go(func() error {
		return r.stream.Run(gCtx, events)
	})
	g.Go(func() error {
		return r.copyTrader.Consume(gCtx, events)
	})
	g.Go(func() error {
		return r.stopLoss.Run(gCtx)
	})

	if r.config.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              r.config.MetricsAddr,
			Handler:           r.metricsMux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			r.logger.Info("Serving metrics", zap.String("addr", r.config.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	if err != nil {
		r.logger.Error("Copy-trading stopped with error", zap.Error(err))
	}
	return errors.Join(err, r.Close())
}

func (r *Runner) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Close releases every resource; safe to call more than once.
func (r *Runner) Close() error {
	r.logger.Info("👋 Bot shutting down gracefully")
	return r.shutdown.Shutdown(context.Background())
}
