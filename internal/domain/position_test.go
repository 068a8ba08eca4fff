package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newBuy(price string) *Position {
	return NewPosition("p1", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), d(price), OrderBuy, 10, d("0.02"), d("0.05"))
}

func TestPosition_CloseBuyProfit(t *testing.T) {
	p := newBuy("100")
	closedAt := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	require.NoError(t, p.Close(closedAt, d("103.25"), ExitBearishCrossover))

	assert.Equal(t, PositionClosed, p.Status)
	assert.Equal(t, ExitBearishCrossover, p.ExitReason)
	require.NotNil(t, p.CloseTimestamp)
	assert.True(t, closedAt.Equal(*p.CloseTimestamp))
	require.NotNil(t, p.Profit)
	assert.Equal(t, "32.5", p.Profit.String())
}

func TestPosition_CloseTwiceRejected(t *testing.T) {
	p := newBuy("100")
	first := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, p.Close(first, d("99"), ExitStopLoss))

	err := p.Close(first.Add(24*time.Hour), d("150"), ExitTakeProfit)
	require.ErrorIs(t, err, ErrPositionClosed)

	// el primer cierre no se modifica
	assert.Equal(t, "99", p.ClosePrice.String())
	assert.Equal(t, "-10", p.Profit.String())
	assert.Equal(t, ExitStopLoss, p.ExitReason)
	assert.True(t, first.Equal(*p.CloseTimestamp))
}

func TestPosition_CheckExit(t *testing.T) {
	p := newBuy("100")

	tests := []struct {
		name      string
		high, low string
		want      ExitReason
	}{
		{"inside range", "104", "99", ExitNone},
		{"stop-loss at level", "101", "98", ExitStopLoss},
		{"stop-loss below level", "101", "97", ExitStopLoss},
		{"take-profit at level", "105", "99", ExitTakeProfit},
		{"both hit, stop-loss wins", "110", "90", ExitStopLoss},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, p.CheckExit(d(tc.high), d(tc.low)))
		})
	}
}

func TestPosition_Levels(t *testing.T) {
	p := newBuy("100")
	assert.Equal(t, "98", p.StopLossLevel().String())
	assert.Equal(t, "105", p.TakeProfitLevel().String())
}

func TestPosition_RecordIsCopy(t *testing.T) {
	p := newBuy("100")
	open := p.Record()
	assert.Nil(t, open.Profit)
	assert.False(t, open.IsClosed())

	require.NoError(t, p.Close(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), d("101"), ExitTakeProfit))
	closed := p.Record()
	assert.True(t, closed.IsClosed())
	assert.Equal(t, "10", closed.Profit.String())

	// el registro anterior sigue reflejando el estado OPEN
	assert.Nil(t, open.ClosePrice)
}

func TestProfitFor_Sell(t *testing.T) {
	assert.Equal(t, "20", ProfitFor(OrderSell, d("100"), d("98"), 10).String())
	assert.Equal(t, "-20", ProfitFor(OrderBuy, d("100"), d("98"), 10).String())
}
