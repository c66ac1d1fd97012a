package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"duit/internal/config"
	"duit/internal/ledger"
	"duit/internal/log"
	"duit/internal/storage"
)

func main() {
	repair := flag.Bool("repair", false, "overwrite drifted cached balances with the recomputed values")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentReconcile,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Reconciliation never publishes events; it is an operator tool.
	engine := ledger.NewEngine(repo, nil)
	ctx := context.Background()

	drifts, err := engine.Reconcile(ctx)
	if err != nil {
		logger.Error("Reconciliation failed", "error", err)
		os.Exit(1)
	}
	if len(drifts) == 0 {
		logger.Info("All cached balances match their recomputed values")
		return
	}

	for _, d := range drifts {
		logger.Warn("Balance drift",
			"account_id", d.AccountID,
			"user_id", d.UserID,
			"cached", d.Cached,
			"computed", d.Computed)
		if !*repair {
			continue
		}
		repaired, err := engine.RepairBalance(ctx, d.UserID, d.AccountID)
		if err != nil {
			logger.Error("Repair failed", "account_id", d.AccountID, "error", err)
			os.Exit(1)
		}
		logger.Info("Balance repaired", "account_id", d.AccountID, "balance", repaired)
	}

	if !*repair {
		logger.Info("Drift detected; rerun with -repair to fix", "accounts", len(drifts))
		os.Exit(1)
	}
}
