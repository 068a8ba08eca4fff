package csvfeed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/alejandrodnm/smacross/internal/domain"
)

var positionHeader = []string{
	"id", "open_datetime", "open_price", "order_type", "volume",
	"sl_percent", "tp_percent", "close_datetime", "close_price",
	"profit", "exit_reason", "status", "pnl",
}

// WritePositionsFile exporta las posiciones de la ejecución a path.
func WritePositionsFile(path string, run domain.RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvfeed.WritePositionsFile: create %q: %w", path, err)
	}
	if err := WritePositions(f, run); err != nil {
		f.Close()
		return fmt.Errorf("csvfeed.WritePositionsFile %q: %w", path, err)
	}
	return f.Close()
}

// WritePositions escribe una fila por posición en orden de apertura. La columna
// pnl lleva el balance acumulado tras esa posición, vacía si sigue abierta.
func WritePositions(w io.Writer, run domain.RunResult) error {
	balanceByID := make(map[string]string, len(run.PnL.Points))
	for _, pt := range run.PnL.Points {
		balanceByID[pt.PositionID] = pt.Balance.String()
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(positionHeader); err != nil {
		return err
	}
	for _, p := range run.Positions {
		var closeAt, closePrice, profit string
		if p.CloseTimestamp != nil {
			closeAt = p.CloseTimestamp.Format(DatetimeLayout)
		}
		if p.ClosePrice != nil {
			closePrice = p.ClosePrice.String()
		}
		if p.Profit != nil {
			profit = p.Profit.String()
		}
		if err := cw.Write([]string{
			p.ID,
			p.OpenTimestamp.Format(DatetimeLayout),
			p.OpenPrice.String(),
			string(p.OrderType),
			strconv.FormatInt(p.Volume, 10),
			p.StopLossFraction.String(),
			p.TakeProfitFraction.String(),
			closeAt,
			closePrice,
			profit,
			string(p.ExitReason),
			string(p.Status),
			balanceByID[p.ID],
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
