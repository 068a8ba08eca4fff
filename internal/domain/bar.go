package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar es una vela OHLCV de un instrumento en un instante dado.
type Bar struct {
	Timestamp  time.Time
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     int64
	Instrument string
}

// Crossover clasifica la relación entre la SMA rápida y la lenta en una barra.
type Crossover string

const (
	CrossoverNone    Crossover = "none"
	CrossoverBullish Crossover = "bullish"
	CrossoverBearish Crossover = "bearish"
)

// AnnotatedBar es una Bar con sus medias móviles y la clasificación de cruce.
// Solo existen barras anotadas con ventana completa: FastSMA, SlowSMA y
// PrevFastSMA siempre están definidas.
type AnnotatedBar struct {
	Bar
	FastSMA     decimal.Decimal
	SlowSMA     decimal.Decimal
	PrevFastSMA decimal.Decimal
	Crossover   Crossover
}

// IsBullish devuelve true si la barra marca un cruce alcista.
func (b AnnotatedBar) IsBullish() bool {
	return b.Crossover == CrossoverBullish
}

// IsBearish devuelve true si la barra marca un cruce bajista.
func (b AnnotatedBar) IsBearish() bool {
	return b.Crossover == CrossoverBearish
}

// ValidateBars comprueba que la serie sea utilizable por la ventana móvil:
// campos requeridos presentes, un único instrumento y timestamps no decrecientes.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		switch {
		case b.Timestamp.IsZero():
			return &MalformedBarError{Index: i, Reason: "missing timestamp"}
		case b.Instrument == "":
			return &MalformedBarError{Index: i, Reason: "missing instrument"}
		case b.Volume < 0:
			return &MalformedBarError{Index: i, Reason: "negative volume"}
		case b.High.LessThan(b.Low):
			return &MalformedBarError{Index: i, Reason: "high below low"}
		}
		if i == 0 {
			continue
		}
		prev := bars[i-1]
		if b.Instrument != prev.Instrument {
			return &MalformedBarError{Index: i, Reason: "instrument changed from " + prev.Instrument + " to " + b.Instrument}
		}
		if b.Timestamp.Before(prev.Timestamp) {
			return &MalformedBarError{Index: i, Reason: "timestamp earlier than previous bar"}
		}
	}
	return nil
}
