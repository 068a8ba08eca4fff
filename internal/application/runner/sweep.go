package runner

// sweep.go: worker pool para ejecutar el mismo backtest sobre varios instrumentos.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/smacross/internal/application/engine/backtest"
	"github.com/alejandrodnm/smacross/internal/domain"
	"github.com/alejandrodnm/smacross/internal/domain/strategy"
	"github.com/alejandrodnm/smacross/internal/ports"
)

// SweepConfig contiene la configuración de un barrido multi-instrumento.
type SweepConfig struct {
	Instruments []string
	Backtest    backtest.Config
	Workers     int // goroutines para simulación paralela (0 = NumCPU*2)
}

// Sweep simula cada instrumento en paralelo y luego notifica y persiste los
// resultados en el orden de cfg.Instruments. Un instrumento que falla no
// detiene a los demás: sus errores se devuelven unidos junto a los runs válidos.
func Sweep(
	ctx context.Context,
	cfg SweepConfig,
	strat strategy.Strategy,
	bars ports.BarSource,
	results ports.ResultStorage,
	notifier ports.Notifier,
) ([]domain.RunResult, error) {
	if len(cfg.Instruments) == 0 {
		return nil, fmt.Errorf("runner.Sweep: %w", domain.InvalidConfig("no instruments to sweep"))
	}

	runners := make([]*Runner, len(cfg.Instruments))
	for i, instrument := range cfg.Instruments {
		r, err := New(Config{Instrument: instrument, Backtest: cfg.Backtest}, strat, bars, results, notifier)
		if err != nil {
			return nil, fmt.Errorf("runner.Sweep: %w", err)
		}
		runners[i] = r
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	type outcome struct {
		run domain.RunResult
		err error
	}
	outcomes := make([]outcome, len(runners))
	start := runners[0].now()

	workCh := make(chan int, len(runners))
	for i := range runners {
		workCh <- i
	}
	close(workCh)

	// Cada worker escribe solo en su índice de outcomes.
	var wg sync.WaitGroup
	for w := 0; w < min(workers, len(runners)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if err := ctx.Err(); err != nil {
					outcomes[i].err = err
					continue
				}
				run, err := runners[i].simulate(ctx)
				outcomes[i] = outcome{run: run, err: err}
			}
		}()
	}
	wg.Wait()

	runs := make([]domain.RunResult, 0, len(runners))
	var errs []error
	for i, o := range outcomes {
		if o.err != nil {
			slog.Warn("sweep instrument failed", "instrument", cfg.Instruments[i], "err", o.err)
			errs = append(errs, fmt.Errorf("%s: %w", cfg.Instruments[i], o.err))
			continue
		}
		o.run.StartedAt = start.UTC()
		runners[i].publish(ctx, o.run, start)
		runs = append(runs, o.run)
	}

	slog.Info("sweep complete",
		"instruments", len(cfg.Instruments),
		"succeeded", len(runs),
		"failed", len(errs),
		"workers", workers,
	)

	if len(errs) > 0 {
		return runs, fmt.Errorf("runner.Sweep: %w", errors.Join(errs...))
	}
	return runs, nil
}
