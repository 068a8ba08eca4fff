package backtest

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/smacross/internal/application/engine"
	"github.com/alejandrodnm/smacross/internal/domain"
)

// Config holds the position rules of a backtest run.
type Config struct {
	StartingBalance    decimal.Decimal
	StopLossFraction   decimal.Decimal
	TakeProfitFraction decimal.Decimal
	Volume             int64 // 0 = use the bar's volume
}

// Validate rejects the configuration before any bar is processed.
func (c Config) Validate() error {
	if !c.StartingBalance.IsPositive() {
		return domain.InvalidConfig("starting balance must be positive, got %s", c.StartingBalance)
	}
	if !inOpenUnit(c.StopLossFraction) {
		return domain.InvalidConfig("stop-loss fraction must be in (0,1), got %s", c.StopLossFraction)
	}
	if !inOpenUnit(c.TakeProfitFraction) {
		return domain.InvalidConfig("take-profit fraction must be in (0,1), got %s", c.TakeProfitFraction)
	}
	if c.Volume < 0 {
		return domain.InvalidConfig("volume must not be negative, got %d", c.Volume)
	}
	return nil
}

func inOpenUnit(f decimal.Decimal) bool {
	return f.IsPositive() && f.LessThan(decimal.NewFromInt(1))
}

// Engine simulates buy positions over an annotated bar series.
// An Engine owns its positions; each Run starts from an empty book.
type Engine struct {
	cfg        Config
	newID      engine.IDFunc
	positions  []*domain.Position
	instrument string
	bars       int
	signals    int
}

// New valida la configuración y crea el engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest.New: %w", err)
	}
	return &Engine{cfg: cfg, newID: engine.PositionID}, nil
}

// SetIDFunc reemplaza el generador de IDs de posición (usado en tests).
func (e *Engine) SetIDFunc(f engine.IDFunc) {
	e.newID = f
}

// Run replays the bars in order:
//   - bearish bar: every open position closes at the bar's close.
//   - bullish bar: a buy opens at the bar's close, then every open position
//     (the new one included) is checked for stop-loss, then take-profit,
//     and closes at the bar's close if either triggers.
//   - other bars: nothing.
//
// Positions left open at the end stay open.
func (e *Engine) Run(bars []domain.AnnotatedBar) error {
	if err := checkOrder(bars); err != nil {
		return fmt.Errorf("backtest.Run: %w", err)
	}

	e.positions = nil
	e.bars, e.signals, e.instrument = len(bars), 0, ""
	if len(bars) > 0 {
		e.instrument = bars[0].Instrument
	}
	for _, b := range bars {
		if b.Crossover != domain.CrossoverNone {
			e.signals++
		}
		switch b.Crossover {
		case domain.CrossoverBearish:
			if err := e.closeAll(b); err != nil {
				return fmt.Errorf("backtest.Run: %w", err)
			}
		case domain.CrossoverBullish:
			e.open(b)
			if err := e.checkExits(b); err != nil {
				return fmt.Errorf("backtest.Run: %w", err)
			}
		}
	}

	slog.Debug("backtest run complete",
		"bars", len(bars),
		"positions", len(e.positions),
		"final_balance", e.PnLSeries().Final().String(),
	)
	return nil
}

func (e *Engine) open(b domain.AnnotatedBar) {
	volume := e.cfg.Volume
	if volume == 0 {
		volume = b.Volume
	}
	id := e.newID(b.Instrument, b.Timestamp, len(e.positions))
	p := domain.NewPosition(id, b.Timestamp, b.Close, domain.OrderBuy, volume,
		e.cfg.StopLossFraction, e.cfg.TakeProfitFraction)
	e.positions = append(e.positions, p)

	slog.Debug("position opened",
		"id", id,
		"at", b.Timestamp,
		"price", b.Close.String(),
		"volume", volume,
	)
}

func (e *Engine) closeAll(b domain.AnnotatedBar) error {
	for _, p := range e.positions {
		if !p.IsOpen() {
			continue
		}
		if err := e.close(p, b, domain.ExitBearishCrossover); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkExits(b domain.AnnotatedBar) error {
	for _, p := range e.positions {
		if !p.IsOpen() {
			continue
		}
		reason := p.CheckExit(b.High, b.Low)
		if reason == domain.ExitNone {
			continue
		}
		if err := e.close(p, b, reason); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) close(p *domain.Position, b domain.AnnotatedBar, reason domain.ExitReason) error {
	if err := p.Close(b.Timestamp, b.Close, reason); err != nil {
		return err
	}
	slog.Debug("position closed",
		"id", p.ID,
		"at", b.Timestamp,
		"price", b.Close.String(),
		"reason", reason,
		"profit", p.Profit.String(),
	)
	return nil
}

// Positions devuelve una copia plana de las posiciones en orden de apertura.
func (e *Engine) Positions() []domain.PositionRecord {
	out := make([]domain.PositionRecord, len(e.positions))
	for i, p := range e.positions {
		out[i] = p.Record()
	}
	return out
}

// PnLSeries devuelve el balance acumulado tras cada posición cerrada,
// recorriendo las posiciones en orden de apertura.
func (e *Engine) PnLSeries() domain.PnLSeries {
	return domain.BuildPnLSeries(e.cfg.StartingBalance, e.Positions())
}

// Result devuelve el snapshot de la última ejecución. ID, estrategia y
// periodos los completa quien orquesta la ejecución.
func (e *Engine) Result() domain.RunResult {
	positions := e.Positions()
	return domain.RunResult{
		Instrument:      e.instrument,
		AnnotatedBars:   e.bars,
		Signals:         e.signals,
		StartingBalance: e.cfg.StartingBalance,
		Positions:       positions,
		PnL:             domain.BuildPnLSeries(e.cfg.StartingBalance, positions),
	}
}

// checkOrder exige timestamps no decrecientes: el engine puede recibir
// barras anotadas que no pasaron por el generador de señales.
func checkOrder(bars []domain.AnnotatedBar) error {
	for i := 1; i < len(bars); i++ {
		if bars[i].Timestamp.Before(bars[i-1].Timestamp) {
			return &domain.MalformedBarError{Index: i, Reason: "timestamp earlier than previous bar"}
		}
	}
	return nil
}
