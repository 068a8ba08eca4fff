package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/smacross/internal/domain"
)

// SMACrossoverName es el nombre con el que se registra la estrategia.
const SMACrossoverName = "sma_crossover"

// SMACrossover detecta cruces entre una SMA rápida y una lenta del precio de cierre.
type SMACrossover struct {
	fast int
	slow int
}

// NewSMACrossover valida los periodos y crea la estrategia.
func NewSMACrossover(fast, slow int) (*SMACrossover, error) {
	if err := ValidatePeriods(fast, slow); err != nil {
		return nil, fmt.Errorf("strategy.NewSMACrossover: %w", err)
	}
	return &SMACrossover{fast: fast, slow: slow}, nil
}

// ValidatePeriods exige 0 < fast < slow.
func ValidatePeriods(fast, slow int) error {
	if fast <= 0 || slow <= 0 {
		return domain.InvalidConfig("sma periods must be positive (fast=%d, slow=%d)", fast, slow)
	}
	if fast >= slow {
		return domain.InvalidConfig("fast period %d must be lower than slow period %d", fast, slow)
	}
	return nil
}

// Name implementa Strategy.
func (s *SMACrossover) Name() string { return SMACrossoverName }

// Periods devuelve (fast, slow).
func (s *SMACrossover) Periods() (int, int) { return s.fast, s.slow }

// Annotate implementa Strategy.
func (s *SMACrossover) Annotate(bars []domain.Bar) ([]domain.AnnotatedBar, error) {
	return Annotate(bars, s.fast, s.slow)
}

// Annotate calcula SMA rápida, SMA lenta, la SMA rápida de la barra anterior y
// el cruce de cada barra. Solo se emiten barras con las tres medias definidas,
// así que la salida tiene len(bars) - (slow-1) elementos cuando hay historia suficiente.
func Annotate(bars []domain.Bar, fast, slow int) ([]domain.AnnotatedBar, error) {
	if err := ValidatePeriods(fast, slow); err != nil {
		return nil, fmt.Errorf("strategy.Annotate: %w", err)
	}
	if err := domain.ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("strategy.Annotate: %w", err)
	}

	fastSMA := rollingMean(bars, fast)
	slowSMA := rollingMean(bars, slow)

	var out []domain.AnnotatedBar
	for i := range bars {
		if i == 0 || fastSMA[i] == nil || slowSMA[i] == nil || fastSMA[i-1] == nil {
			continue
		}
		ab := domain.AnnotatedBar{
			Bar:         bars[i],
			FastSMA:     *fastSMA[i],
			SlowSMA:     *slowSMA[i],
			PrevFastSMA: *fastSMA[i-1],
		}
		ab.Crossover = Classify(ab.FastSMA, ab.PrevFastSMA, ab.SlowSMA)
		out = append(out, ab)
	}
	return out, nil
}

// Classify aplica la regla de cruce. La SMA rápida anterior se compara contra
// la SMA lenta actual, no contra la anterior.
func Classify(fast, prevFast, slow decimal.Decimal) domain.Crossover {
	switch {
	case fast.GreaterThan(slow) && prevFast.LessThan(slow):
		return domain.CrossoverBullish
	case fast.LessThan(slow) && prevFast.GreaterThan(slow):
		return domain.CrossoverBearish
	default:
		return domain.CrossoverNone
	}
}

// Signals filtra las barras con cruce alcista o bajista.
func Signals(annotated []domain.AnnotatedBar) []domain.AnnotatedBar {
	var out []domain.AnnotatedBar
	for _, b := range annotated {
		if b.Crossover != domain.CrossoverNone {
			out = append(out, b)
		}
	}
	return out
}

// rollingMean devuelve la media del cierre en la ventana que termina en cada
// índice; nil mientras la ventana no está completa.
func rollingMean(bars []domain.Bar, period int) []*decimal.Decimal {
	out := make([]*decimal.Decimal, len(bars))
	n := decimal.NewFromInt(int64(period))
	sum := decimal.Zero
	for i, b := range bars {
		sum = sum.Add(b.Close)
		if i >= period {
			sum = sum.Sub(bars[i-period].Close)
		}
		if i < period-1 {
			continue
		}
		mean := sum.Div(n)
		out[i] = &mean
	}
	return out
}
