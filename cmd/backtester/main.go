package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/smacross/config"
	"github.com/alejandrodnm/smacross/internal/adapters/csvfeed"
	"github.com/alejandrodnm/smacross/internal/adapters/notify"
	"github.com/alejandrodnm/smacross/internal/adapters/storage"
	"github.com/alejandrodnm/smacross/internal/application/runner"
	"github.com/alejandrodnm/smacross/internal/domain/strategy"
	"github.com/alejandrodnm/smacross/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	ingestPath := flag.String("ingest", "", "CSV file with bars to load into storage before the run")
	instrument := flag.String("instrument", "", "instrument to backtest (overrides config)")
	source := flag.String("source", "", "bar source: sqlite|clickhouse (overrides config)")
	exportPath := flag.String("export", "", "write closed and open positions to this CSV file")
	all := flag.Bool("all", false, "backtest every instrument stored in sqlite, in parallel")
	table := flag.Bool("table", false, "print positions and P&L tables (default: compact 1-line)")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *instrument != "" {
		cfg.Backtest.Instrument = *instrument
	}
	if *source != "" {
		cfg.Source.Kind = *source
	}
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	slog.Info("backtester starting",
		"config", *configPath,
		"strategy", cfg.Strategy.Name,
		"fast", cfg.Strategy.FastPeriod,
		"slow", cfg.Strategy.SlowPeriod,
		"instrument", cfg.Backtest.Instrument,
		"source", cfg.Source.Kind,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	if *ingestPath != "" {
		if err := ingest(ctx, store, *ingestPath); err != nil {
			slog.Error("ingest failed", "err", err, "path", *ingestPath)
			os.Exit(1)
		}
	}

	if cfg.Backtest.Instrument == "" && !*all {
		if *ingestPath != "" {
			return
		}
		slog.Error("no instrument to backtest; set backtest.instrument or -instrument")
		os.Exit(1)
	}

	var bars ports.BarSource = store
	if cfg.Source.Kind == "clickhouse" && !*all {
		ch, err := storage.NewClickHouseSource(ctx, cfg.ClickHouse())
		if err != nil {
			slog.Error("failed to connect to clickhouse", "err", err, "addr", cfg.Source.ClickHouse.Addr)
			os.Exit(1)
		}
		defer ch.Close()
		bars = ch
	}

	registry := strategy.NewRegistry()
	sma, err := strategy.NewSMACrossover(cfg.Strategy.FastPeriod, cfg.Strategy.SlowPeriod)
	if err != nil {
		slog.Error("invalid strategy", "err", err)
		os.Exit(1)
	}
	registry.Register(sma)

	strat, ok := registry.Get(cfg.Strategy.Name)
	if !ok {
		slog.Error("unknown strategy", "name", cfg.Strategy.Name)
		os.Exit(1)
	}

	notifier := notify.NewConsole(*table)

	if *all {
		runAll(ctx, cfg, strat, store, notifier)
		return
	}

	r, err := runner.New(runner.Config{
		Instrument: cfg.Backtest.Instrument,
		Backtest:   cfg.BacktestRules(),
	}, strat, bars, store, notifier)
	if err != nil {
		slog.Error("failed to build runner", "err", err)
		os.Exit(1)
	}

	run, err := r.Run(ctx)
	if err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}

	if *exportPath != "" {
		if err := csvfeed.WritePositionsFile(*exportPath, run); err != nil {
			slog.Error("export failed", "err", err, "path", *exportPath)
			os.Exit(1)
		}
		slog.Info("positions exported", "path", *exportPath, "positions", len(run.Positions))
	}

	slog.Info("backtester finished", "run_id", run.ID)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
