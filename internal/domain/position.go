package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is the lifecycle state of a simulated position.
// The only transition is OPEN → CLOSED.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

// OrderType is the side of a position. The engine only opens buys.
type OrderType string

const (
	OrderBuy  OrderType = "buy"
	OrderSell OrderType = "sell"
)

// ExitReason records which rule closed a position.
type ExitReason string

const (
	ExitNone             ExitReason = ""
	ExitBearishCrossover ExitReason = "bearish_crossover"
	ExitStopLoss         ExitReason = "stop_loss"
	ExitTakeProfit       ExitReason = "take_profit"
)

// Position is a simulated position opened on a bullish crossover.
// Close fields are nil until the position is closed and never change afterwards.
type Position struct {
	ID                 string
	OpenTimestamp      time.Time
	OpenPrice          decimal.Decimal
	OrderType          OrderType
	Volume             int64
	StopLossFraction   decimal.Decimal
	TakeProfitFraction decimal.Decimal
	CloseTimestamp     *time.Time
	ClosePrice         *decimal.Decimal
	Profit             *decimal.Decimal
	ExitReason         ExitReason
	Status             PositionStatus
}

// NewPosition abre una posición en estado OPEN.
func NewPosition(id string, openedAt time.Time, price decimal.Decimal, orderType OrderType, volume int64, stopLoss, takeProfit decimal.Decimal) *Position {
	return &Position{
		ID:                 id,
		OpenTimestamp:      openedAt,
		OpenPrice:          price,
		OrderType:          orderType,
		Volume:             volume,
		StopLossFraction:   stopLoss,
		TakeProfitFraction: takeProfit,
		Status:             PositionOpen,
	}
}

// IsOpen devuelve true mientras la posición no se haya cerrado.
func (p *Position) IsOpen() bool {
	return p.Status == PositionOpen
}

// Close fija precio, instante y profit de cierre. Un segundo cierre devuelve
// ErrPositionClosed y no modifica nada.
func (p *Position) Close(closedAt time.Time, price decimal.Decimal, reason ExitReason) error {
	if !p.IsOpen() {
		return fmt.Errorf("domain.Position.Close %s: %w", p.ID, ErrPositionClosed)
	}
	profit := ProfitFor(p.OrderType, p.OpenPrice, price, p.Volume)
	ts := closedAt
	p.CloseTimestamp = &ts
	p.ClosePrice = &price
	p.Profit = &profit
	p.ExitReason = reason
	p.Status = PositionClosed
	return nil
}

// StopLossLevel is the price at or below which a buy hits its stop-loss.
func (p *Position) StopLossLevel() decimal.Decimal {
	return p.OpenPrice.Mul(decimal.NewFromInt(1).Sub(p.StopLossFraction))
}

// TakeProfitLevel is the price at or above which a buy hits its take-profit.
func (p *Position) TakeProfitLevel() decimal.Decimal {
	return p.OpenPrice.Mul(decimal.NewFromInt(1).Add(p.TakeProfitFraction))
}

// CheckExit evalúa stop-loss y take-profit contra el rango de una barra.
// El stop-loss tiene prioridad: si se cumple, el take-profit no se evalúa.
func (p *Position) CheckExit(high, low decimal.Decimal) ExitReason {
	if p.OrderType == OrderSell {
		if high.GreaterThanOrEqual(p.OpenPrice.Mul(decimal.NewFromInt(1).Add(p.StopLossFraction))) {
			return ExitStopLoss
		}
		if low.LessThanOrEqual(p.OpenPrice.Mul(decimal.NewFromInt(1).Sub(p.TakeProfitFraction))) {
			return ExitTakeProfit
		}
		return ExitNone
	}
	if low.LessThanOrEqual(p.StopLossLevel()) {
		return ExitStopLoss
	}
	if high.GreaterThanOrEqual(p.TakeProfitLevel()) {
		return ExitTakeProfit
	}
	return ExitNone
}

// Record is the flat view of a position handed to reporting and storage.
func (p *Position) Record() PositionRecord {
	r := PositionRecord{
		ID:                 p.ID,
		OpenTimestamp:      p.OpenTimestamp,
		OpenPrice:          p.OpenPrice,
		OrderType:          p.OrderType,
		Volume:             p.Volume,
		StopLossFraction:   p.StopLossFraction,
		TakeProfitFraction: p.TakeProfitFraction,
		ExitReason:         p.ExitReason,
		Status:             p.Status,
	}
	if p.CloseTimestamp != nil {
		ts := *p.CloseTimestamp
		r.CloseTimestamp = &ts
	}
	if p.ClosePrice != nil {
		cp := *p.ClosePrice
		r.ClosePrice = &cp
	}
	if p.Profit != nil {
		pr := *p.Profit
		r.Profit = &pr
	}
	return r
}

// PositionRecord is an immutable copy of a Position's attributes.
type PositionRecord struct {
	ID                 string
	OpenTimestamp      time.Time
	OpenPrice          decimal.Decimal
	OrderType          OrderType
	Volume             int64
	StopLossFraction   decimal.Decimal
	TakeProfitFraction decimal.Decimal
	CloseTimestamp     *time.Time
	ClosePrice         *decimal.Decimal
	Profit             *decimal.Decimal
	ExitReason         ExitReason
	Status             PositionStatus
}

// IsClosed devuelve true si el registro corresponde a una posición cerrada.
func (r PositionRecord) IsClosed() bool {
	return r.Status == PositionClosed
}

// ProfitFor devuelve (close - open) × volume para buys y (open - close) × volume para sells.
func ProfitFor(orderType OrderType, openPrice, closePrice decimal.Decimal, volume int64) decimal.Decimal {
	vol := decimal.NewFromInt(volume)
	if orderType == OrderSell {
		return openPrice.Sub(closePrice).Mul(vol)
	}
	return closePrice.Sub(openPrice).Mul(vol)
}
