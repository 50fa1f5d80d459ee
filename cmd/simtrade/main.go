// ====================================
// File: cmd/simtrade/main.go
// ====================================
// simtrade прогоняет одну BUY и/или SELL сделку через тот же конвейер,
// что и бот, без подписки на поток.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-copybot/internal/bot"
	"github.com/rovshanmuradov/solana-copybot/internal/config"
	"github.com/rovshanmuradov/solana-copybot/internal/domain"
	"github.com/rovshanmuradov/solana-copybot/internal/utils/logger"
)

func main() {
	defaults := bot.DefaultSimulateOptions()

	configPath := flag.String("config", "", "optional config file (json or yaml)")
	envFile := flag.String("env", ".env", "optional dotenv file")
	mint := flag.String("mint", defaults.AssetID, "asset mint to trade")
	whale := flag.String("whale", defaults.Whale, "initiating account recorded in the audit log")
	whaleSOL := flag.Float64("whale-sol", 3, "whale trade size in SOL, recorded in the audit log")
	buySOL := flag.Float64("buy-sol", 0, "our buy size in SOL (default: BUY_SOL from config)")
	buy := flag.Bool("buy", true, "run the BUY leg")
	sell := flag.Bool("sell", true, "run the SELL leg")
	live := flag.Bool("live", false, "broadcast transactions instead of simulating")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	cfg.TestMode = !*live

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runner, err := bot.NewRunner(ctx, cfg, log.Logger)
	if err != nil {
		log.Error("Failed to initialize pipeline", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}

	opts := bot.SimulateOptions{
		Whale:         *whale,
		AssetID:       *mint,
		AmountIn:      cfg.BuyLamports(),
		WhaleLamports: uint64(*whaleSOL * domain.LamportsPerSOL),
		SourceTxID:    defaults.SourceTxID,
		Buy:           *buy,
		Sell:          *sell,
	}
	if *buySOL > 0 {
		opts.AmountIn = uint64(*buySOL * domain.LamportsPerSOL)
	}

	log.Info("🎯 Starting simulation",
		zap.String("mint", opts.AssetID),
		zap.Uint64("buy_lamports", opts.AmountIn),
		zap.Bool("live", *live))
	simErr := bot.Simulate(ctx, runner.CopyTrader(), opts, log.Logger)
	if err := runner.Close(); err != nil {
		log.Warn("Shutdown finished with errors", zap.Error(err))
	}
	if simErr != nil {
		log.Error("Simulation failed", zap.Error(simErr))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("✅ Simulation finished")
}
