package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/smacross/config"
	"github.com/alejandrodnm/smacross/internal/adapters/notify"
	"github.com/alejandrodnm/smacross/internal/adapters/storage"
	"github.com/alejandrodnm/smacross/internal/application/runner"
	"github.com/alejandrodnm/smacross/internal/domain/strategy"
)

// runAll ejecuta el backtest sobre todos los instrumentos del almacén local.
func runAll(ctx context.Context, cfg *config.Config, strat strategy.Strategy, store *storage.SQLiteStorage, notifier *notify.Console) {
	instruments, err := store.Instruments(ctx)
	if err != nil {
		slog.Error("failed to list instruments", "err", err)
		os.Exit(1)
	}
	if len(instruments) == 0 {
		slog.Warn("no instruments stored, ingest a CSV first")
		return
	}

	slog.Info("=== SWEEP MODE ===", "instruments", len(instruments), "workers", cfg.Backtest.Workers)

	runs, err := runner.Sweep(ctx, runner.SweepConfig{
		Instruments: instruments,
		Backtest:    cfg.BacktestRules(),
		Workers:     cfg.Backtest.Workers,
	}, strat, store, store, notifier)
	if err != nil {
		slog.Error("sweep finished with errors", "err", err, "succeeded", len(runs))
		os.Exit(1)
	}
	slog.Info("backtester finished", "runs", len(runs))
}
