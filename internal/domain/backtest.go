package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PnLPoint es el balance acumulado tras cerrar una posición.
type PnLPoint struct {
	PositionID string
	Timestamp  time.Time
	Balance    decimal.Decimal
}

// PnLSeries is the cumulative balance curve of a run. With no closed
// positions it carries only the starting balance.
type PnLSeries struct {
	StartingBalance decimal.Decimal
	Points          []PnLPoint
}

// Final devuelve el último balance de la serie, o el inicial si está vacía.
func (s PnLSeries) Final() decimal.Decimal {
	if len(s.Points) == 0 {
		return s.StartingBalance
	}
	return s.Points[len(s.Points)-1].Balance
}

// BuildPnLSeries acumula el profit de las posiciones cerradas sobre el balance
// inicial, recorriéndolas en orden de apertura.
func BuildPnLSeries(starting decimal.Decimal, positions []PositionRecord) PnLSeries {
	series := PnLSeries{StartingBalance: starting}
	balance := starting
	for _, p := range positions {
		if !p.IsClosed() {
			continue
		}
		balance = balance.Add(*p.Profit)
		series.Points = append(series.Points, PnLPoint{
			PositionID: p.ID,
			Timestamp:  *p.CloseTimestamp,
			Balance:    balance,
		})
	}
	return series
}

// RunResult es el snapshot completo de una ejecución del backtest.
type RunResult struct {
	ID              string
	Instrument      string
	Strategy        string
	FastPeriod      int
	SlowPeriod      int
	StartedAt       time.Time
	Bars            int
	AnnotatedBars   int
	Signals         int
	StartingBalance decimal.Decimal
	Positions       []PositionRecord
	PnL             PnLSeries
}

// Summary agrega los contadores del resultado para reporting.
type Summary struct {
	Total        int
	Open         int
	Closed       int
	Winners      int
	Losers       int
	TotalProfit  decimal.Decimal
	FinalBalance decimal.Decimal
	WinRate      float64 // % sobre posiciones cerradas
}

// Summary calcula los agregados a partir de las posiciones del resultado.
func (r RunResult) Summary() Summary {
	s := Summary{Total: len(r.Positions), TotalProfit: decimal.Zero}
	for _, p := range r.Positions {
		if !p.IsClosed() {
			s.Open++
			continue
		}
		s.Closed++
		s.TotalProfit = s.TotalProfit.Add(*p.Profit)
		switch {
		case p.Profit.IsPositive():
			s.Winners++
		case p.Profit.IsNegative():
			s.Losers++
		}
	}
	s.FinalBalance = r.PnL.Final()
	if s.Closed > 0 {
		s.WinRate = 100 * float64(s.Winners) / float64(s.Closed)
	}
	return s
}
