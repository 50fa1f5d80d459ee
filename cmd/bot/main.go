// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-copybot/internal/bot"
	"github.com/rovshanmuradov/solana-copybot/internal/config"
	"github.com/rovshanmuradov/solana-copybot/internal/utils/logger"
)

func main() {
	configPath := flag.String("config", "", "optional config file (json or yaml)")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting copy-trading bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner, err := bot.NewRunner(ctx, cfg, log.Logger)
	if err != nil {
		log.Error("Failed to initialize bot", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}

	if err := runner.Run(ctx); err != nil {
		log.Error("Bot execution error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}
