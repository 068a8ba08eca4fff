package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/smacross/internal/application/engine"
	"github.com/alejandrodnm/smacross/internal/application/engine/backtest"
	"github.com/alejandrodnm/smacross/internal/domain"
	"github.com/alejandrodnm/smacross/internal/domain/strategy"
	"github.com/alejandrodnm/smacross/internal/ports"
)

// Config contiene la configuración de una ejecución.
type Config struct {
	Instrument string
	Backtest   backtest.Config
}

// periodic lo implementan las estrategias basadas en dos ventanas móviles.
type periodic interface {
	Periods() (int, int)
}

// Runner es el orquestador de una ejecución: load → annotate → simulate → notify → persist.
type Runner struct {
	cfg      Config
	strategy strategy.Strategy
	bars     ports.BarSource
	results  ports.ResultStorage
	notifier ports.Notifier
	now      func() time.Time
}

// New valida la configuración antes de tocar ninguna barra.
// results y notifier pueden ser nil.
func New(
	cfg Config,
	strat strategy.Strategy,
	bars ports.BarSource,
	results ports.ResultStorage,
	notifier ports.Notifier,
) (*Runner, error) {
	if cfg.Instrument == "" {
		return nil, fmt.Errorf("runner.New: %w", domain.InvalidConfig("instrument is required"))
	}
	if err := cfg.Backtest.Validate(); err != nil {
		return nil, fmt.Errorf("runner.New: %w", err)
	}
	return &Runner{
		cfg:      cfg,
		strategy: strat,
		bars:     bars,
		results:  results,
		notifier: notifier,
		now:      time.Now,
	}, nil
}

// Run ejecuta el backtest completo. Un error de carga, de barras mal formadas o
// de configuración aborta antes de producir resultado; los errores de
// notificación o persistencia solo se registran.
func (r *Runner) Run(ctx context.Context) (domain.RunResult, error) {
	start := r.now()

	run, err := r.simulate(ctx)
	if err != nil {
		return domain.RunResult{}, err
	}
	run.StartedAt = start.UTC()

	r.publish(ctx, run, start)
	return run, nil
}

// publish notifica y persiste un resultado ya simulado.
func (r *Runner) publish(ctx context.Context, run domain.RunResult, start time.Time) {
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, run); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}

	if r.results != nil {
		if err := r.results.SaveRun(ctx, run); err != nil {
			slog.Warn("storage error", "err", err, "run_id", run.ID)
		}
	}

	s := run.Summary()
	slog.Info("backtest complete",
		"run_id", run.ID,
		"instrument", run.Instrument,
		"bars", run.Bars,
		"signals", run.Signals,
		"positions", s.Total,
		"open", s.Open,
		"final_balance", s.FinalBalance.StringFixed(2),
		"duration", time.Since(start).Round(time.Millisecond),
	)
}

// simulate hace load → annotate → engine y construye el RunResult.
func (r *Runner) simulate(ctx context.Context) (domain.RunResult, error) {
	bars, err := r.bars.LoadBars(ctx, r.cfg.Instrument)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("runner.Run: load bars: %w", err)
	}

	annotated, err := r.strategy.Annotate(bars)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("runner.Run: annotate: %w", err)
	}
	slog.Debug("bars annotated",
		"instrument", r.cfg.Instrument,
		"bars", len(bars),
		"annotated", len(annotated),
		"signals", len(strategy.Signals(annotated)),
	)
	if len(annotated) == 0 {
		slog.Warn("not enough bars for the slow window", "instrument", r.cfg.Instrument, "bars", len(bars))
	}

	eng, err := backtest.New(r.cfg.Backtest)
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("runner.Run: %w", err)
	}
	if err := eng.Run(annotated); err != nil {
		return domain.RunResult{}, fmt.Errorf("runner.Run: %w", err)
	}

	run := eng.Result()
	run.ID = engine.NewRunID()
	run.Instrument = r.cfg.Instrument
	run.Strategy = r.strategy.Name()
	run.Bars = len(bars)
	if p, ok := r.strategy.(periodic); ok {
		run.FastPeriod, run.SlowPeriod = p.Periods()
	}
	return run, nil
}

// Ingest valida las barras por instrumento y las persiste en el store.
// Devuelve el número de barras escritas.
func Ingest(ctx context.Context, store ports.BarStore, bars []domain.Bar) (int, error) {
	groups, order := groupByInstrument(bars)
	total := 0
	for _, instrument := range order {
		group := groups[instrument]
		if err := domain.ValidateBars(group); err != nil {
			return total, fmt.Errorf("runner.Ingest %s: %w", instrument, err)
		}
		n, err := store.SaveBars(ctx, group)
		if err != nil {
			return total, fmt.Errorf("runner.Ingest %s: %w", instrument, err)
		}
		total += n
		slog.Info("bars ingested", "instrument", instrument, "bars", n)
	}
	return total, nil
}

// groupByInstrument agrupa conservando el orden de aparición.
func groupByInstrument(bars []domain.Bar) (map[string][]domain.Bar, []string) {
	groups := make(map[string][]domain.Bar)
	var order []string
	for _, b := range bars {
		if _, ok := groups[b.Instrument]; !ok {
			order = append(order, b.Instrument)
		}
		groups[b.Instrument] = append(groups[b.Instrument], b)
	}
	return groups, order
}
