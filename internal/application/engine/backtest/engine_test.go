package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/smacross/internal/domain"
	"github.com/alejandrodnm/smacross/internal/domain/strategy"
)

var (
	t0 = time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC)
	d  = decimal.RequireFromString
)

func defaultConfig() Config {
	return Config{
		StartingBalance:    d("10000"),
		StopLossFraction:   d("0.02"),
		TakeProfitFraction: d("0.05"),
	}
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

// annotated construye una barra ya clasificada; day es el offset en días desde t0.
func annotated(day int, cross domain.Crossover, closePx, high, low string, volume int64) domain.AnnotatedBar {
	return domain.AnnotatedBar{
		Bar: domain.Bar{
			Timestamp:  t0.Add(time.Duration(day) * 24 * time.Hour),
			Open:       d(closePx),
			High:       d(high),
			Low:        d(low),
			Close:      d(closePx),
			Volume:     volume,
			Instrument: "HINDALCO",
		},
		Crossover: cross,
	}
}

func barsFromCloses(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		px := decimal.NewFromFloat(c)
		bars[i] = domain.Bar{
			Timestamp:  t0.Add(time.Duration(i) * 24 * time.Hour),
			Open:       px,
			High:       px,
			Low:        px,
			Close:      px,
			Volume:     1000,
			Instrument: "HINDALCO",
		}
	}
	return bars
}

var crossingCloses = []float64{10, 10, 10, 10, 10, 10, 10, 10, 9, 9, 12, 13, 14, 13, 11, 9, 8, 8}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero balance", func(c *Config) { c.StartingBalance = decimal.Zero }},
		{"negative balance", func(c *Config) { c.StartingBalance = d("-1") }},
		{"zero stop-loss", func(c *Config) { c.StopLossFraction = decimal.Zero }},
		{"stop-loss one", func(c *Config) { c.StopLossFraction = d("1") }},
		{"take-profit above one", func(c *Config) { c.TakeProfitFraction = d("1.5") }},
		{"negative take-profit", func(c *Config) { c.TakeProfitFraction = d("-0.05") }},
		{"negative volume", func(c *Config) { c.Volume = -10 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			_, err := New(cfg)
			assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
		})
	}

	assert.NoError(t, defaultConfig().Validate())
}

func TestRun_EmptyInput(t *testing.T) {
	e := newEngine(t, defaultConfig())
	require.NoError(t, e.Run(nil))

	assert.Empty(t, e.Positions())
	pnl := e.PnLSeries()
	assert.Empty(t, pnl.Points)
	assert.Equal(t, "10000", pnl.StartingBalance.String())
	assert.Equal(t, "10000", pnl.Final().String())
}

func TestRun_ConstantCloseOpensNothing(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100
	}
	ann, err := strategy.Annotate(barsFromCloses(closes...), 10, 100)
	require.NoError(t, err)

	e := newEngine(t, defaultConfig())
	require.NoError(t, e.Run(ann))
	assert.Empty(t, e.Positions())
}

func TestRun_OpensAtBullishCrossoverClose(t *testing.T) {
	ann, err := strategy.Annotate(barsFromCloses(crossingCloses[:11]...), 2, 4)
	require.NoError(t, err)

	e := newEngine(t, defaultConfig())
	require.NoError(t, e.Run(ann))

	positions := e.Positions()
	require.Len(t, positions, 1)
	p := positions[0]
	assert.True(t, p.OpenTimestamp.Equal(t0.Add(10*24*time.Hour)))
	assert.Equal(t, "12", p.OpenPrice.String())
	assert.Equal(t, domain.OrderBuy, p.OrderType)
	assert.Equal(t, int64(1000), p.Volume)
	assert.Equal(t, domain.PositionOpen, p.Status)
	assert.Nil(t, p.CloseTimestamp)
	assert.Nil(t, p.ClosePrice)
	assert.Nil(t, p.Profit)
	assert.Empty(t, e.PnLSeries().Points)
}

func TestRun_FullSeries(t *testing.T) {
	ann, err := strategy.Annotate(barsFromCloses(crossingCloses...), 2, 4)
	require.NoError(t, err)

	e := newEngine(t, defaultConfig())
	require.NoError(t, e.Run(ann))

	positions := e.Positions()
	require.Len(t, positions, 2)

	// abierta en 10 a 12, cerrada por take-profit en 11 (high 13 >= 12.6)
	first := positions[0]
	assert.Equal(t, domain.ExitTakeProfit, first.ExitReason)
	assert.Equal(t, "13", first.ClosePrice.String())
	assert.Equal(t, "1000", first.Profit.String())

	// abierta en 11 a 13, cerrada por el cruce bajista de 14 a 11
	second := positions[1]
	assert.Equal(t, domain.ExitBearishCrossover, second.ExitReason)
	assert.True(t, second.CloseTimestamp.Equal(t0.Add(14*24*time.Hour)))
	assert.Equal(t, "-2000", second.Profit.String())

	pnl := e.PnLSeries()
	require.Len(t, pnl.Points, 2)
	assert.Equal(t, "11000", pnl.Points[0].Balance.String())
	assert.Equal(t, "9000", pnl.Points[1].Balance.String())
	assert.Equal(t, first.ID, pnl.Points[0].PositionID)
}

func TestRun_StopLossWinsOverTakeProfit(t *testing.T) {
	bars := []domain.AnnotatedBar{
		annotated(0, domain.CrossoverBullish, "100", "101", "99.5", 10),
		annotated(1, domain.CrossoverNone, "101", "110", "90", 10),
		// low 97 <= 98 y high 106 >= 105: gana el stop-loss
		annotated(2, domain.CrossoverBullish, "99", "106", "97", 10),
	}
	e := newEngine(t, defaultConfig())
	require.NoError(t, e.Run(bars))

	positions := e.Positions()
	require.Len(t, positions, 2)

	p := positions[0]
	assert.Equal(t, domain.PositionClosed, p.Status)
	assert.Equal(t, domain.ExitStopLoss, p.ExitReason)
	assert.Equal(t, "99", p.ClosePrice.String())
	require.NotNil(t, p.Profit)
	assert.Equal(t, "-10", p.Profit.String())

	// la posición recién abierta también se evalúa: 97 <= 99 × 0.98
	opened := positions[1]
	assert.Equal(t, domain.ExitStopLoss, opened.ExitReason)
	assert.True(t, opened.Profit.IsZero())
}

func TestRun_NoneBarsDoNotTriggerExits(t *testing.T) {
	bars := []domain.AnnotatedBar{
		annotated(0, domain.CrossoverBullish, "100", "100", "100", 10),
		annotated(1, domain.CrossoverNone, "50", "200", "40", 10),
	}
	e := newEngine(t, defaultConfig())
	require.NoError(t, e.Run(bars))

	positions := e.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, domain.PositionOpen, positions[0].Status)
}

func TestRun_BearishClosesAllOpen(t *testing.T) {
	bars := []domain.AnnotatedBar{
		annotated(0, domain.CrossoverBullish, "100", "100", "100", 5),
		annotated(1, domain.CrossoverBullish, "102", "102", "101", 7),
		annotated(2, domain.CrossoverBearish, "120", "125", "60", 3),
		annotated(3, domain.CrossoverBearish, "90", "90", "90", 3),
	}
	e := newEngine(t, defaultConfig())
	require.NoError(t, e.Run(bars))

	positions := e.Positions()
	require.Len(t, positions, 2)
	closeAt := t0.Add(2 * 24 * time.Hour)
	for _, p := range positions {
		assert.Equal(t, domain.PositionClosed, p.Status)
		assert.Equal(t, domain.ExitBearishCrossover, p.ExitReason)
		assert.Equal(t, "120", p.ClosePrice.String())
		assert.True(t, p.CloseTimestamp.Equal(closeAt))
	}
	assert.Equal(t, "100", positions[0].Profit.String())
	assert.Equal(t, "126", positions[1].Profit.String())

	pnl := e.PnLSeries()
	require.Len(t, pnl.Points, 2)
	assert.Equal(t, "10226", pnl.Final().String())
}

func TestRun_ClosedPositionsNeverReopenOrChange(t *testing.T) {
	bars := []domain.AnnotatedBar{
		annotated(0, domain.CrossoverBullish, "100", "100", "100", 1),
		annotated(1, domain.CrossoverBearish, "95", "95", "95", 1),
		annotated(2, domain.CrossoverBullish, "80", "80", "70", 1),
		annotated(3, domain.CrossoverBearish, "60", "60", "60", 1),
	}
	e := newEngine(t, defaultConfig())
	require.NoError(t, e.Run(bars))

	positions := e.Positions()
	require.Len(t, positions, 2)
	assert.Equal(t, "95", positions[0].ClosePrice.String())
	assert.Equal(t, "-5", positions[0].Profit.String())
	assert.Equal(t, domain.ExitBearishCrossover, positions[0].ExitReason)
	assert.Equal(t, domain.ExitStopLoss, positions[1].ExitReason)
	assert.Equal(t, "80", positions[1].ClosePrice.String())
}

func TestRun_ProfitIsExact(t *testing.T) {
	bars := []domain.AnnotatedBar{
		annotated(0, domain.CrossoverBullish, "482.35", "482.35", "482.35", 137),
		annotated(1, domain.CrossoverBullish, "483.10", "483.2", "482.9", 91),
		annotated(2, domain.CrossoverBearish, "479.95", "481", "479.5", 50),
	}
	e := newEngine(t, defaultConfig())
	require.NoError(t, e.Run(bars))

	for _, p := range e.Positions() {
		require.True(t, p.IsClosed())
		want := p.ClosePrice.Sub(p.OpenPrice).Mul(decimal.NewFromInt(p.Volume))
		assert.True(t, want.Equal(*p.Profit), "profit %s != %s", p.Profit, want)
	}
}

func TestRun_FixedVolume(t *testing.T) {
	cfg := defaultConfig()
	cfg.Volume = 25
	bars := []domain.AnnotatedBar{
		annotated(0, domain.CrossoverBullish, "100", "100", "100", 99999),
	}
	e := newEngine(t, cfg)
	require.NoError(t, e.Run(bars))
	assert.Equal(t, int64(25), e.Positions()[0].Volume)
}

func TestRun_Idempotent(t *testing.T) {
	ann, err := strategy.Annotate(barsFromCloses(crossingCloses...), 2, 4)
	require.NoError(t, err)

	e := newEngine(t, defaultConfig())
	require.NoError(t, e.Run(ann))
	firstPositions, firstPnL := e.Positions(), e.PnLSeries()

	require.NoError(t, e.Run(ann))
	assert.Equal(t, firstPositions, e.Positions())
	assert.Equal(t, firstPnL, e.PnLSeries())

	other := newEngine(t, defaultConfig())
	require.NoError(t, other.Run(ann))
	assert.Equal(t, firstPositions, other.Positions())
}

func TestRun_RejectsOutOfOrderBars(t *testing.T) {
	bars := []domain.AnnotatedBar{
		annotated(2, domain.CrossoverNone, "100", "100", "100", 1),
		annotated(1, domain.CrossoverBullish, "100", "100", "100", 1),
	}
	e := newEngine(t, defaultConfig())
	err := e.Run(bars)
	require.ErrorIs(t, err, domain.ErrMalformedBar)
	assert.Empty(t, e.Positions())
}

func TestSetIDFunc(t *testing.T) {
	e := newEngine(t, defaultConfig())
	e.SetIDFunc(func(_ string, _ time.Time, seq int) string {
		return "pos-" + string(rune('a'+seq))
	})
	require.NoError(t, e.Run([]domain.AnnotatedBar{
		annotated(0, domain.CrossoverBullish, "100", "100", "100", 1),
		annotated(1, domain.CrossoverBullish, "100", "100", "100", 1),
	}))
	positions := e.Positions()
	assert.Equal(t, "pos-a", positions[0].ID)
	assert.Equal(t, "pos-b", positions[1].ID)
}

func TestResult(t *testing.T) {
	ann, err := strategy.Annotate(barsFromCloses(crossingCloses...), 2, 4)
	require.NoError(t, err)

	e := newEngine(t, defaultConfig())
	require.NoError(t, e.Run(ann))

	run := e.Result()
	assert.Equal(t, "HINDALCO", run.Instrument)
	assert.Equal(t, 15, run.AnnotatedBars)
	assert.Equal(t, 5, run.Signals)
	assert.Equal(t, "10000", run.StartingBalance.String())
	require.Len(t, run.Positions, 2)
	assert.Equal(t, e.PnLSeries(), run.PnL)

	s := run.Summary()
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 0, s.Open)
	assert.Equal(t, 2, s.Closed)
	assert.Equal(t, 1, s.Winners)
	assert.Equal(t, 1, s.Losers)
	assert.Equal(t, "-1000", s.TotalProfit.String())
	assert.Equal(t, "9000", s.FinalBalance.String())
	assert.InDelta(t, 50.0, s.WinRate, 1e-9)
}

func TestResult_BeforeRun(t *testing.T) {
	run := newEngine(t, defaultConfig()).Result()
	assert.Empty(t, run.Positions)
	assert.Zero(t, run.Signals)
	assert.Equal(t, "10000", run.PnL.Final().String())
}
