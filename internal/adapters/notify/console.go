package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/smacross/internal/application/engine"
	"github.com/alejandrodnm/smacross/internal/domain"
)

const timeLayout = "2006-01-02 15:04"

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime el output en el modo configurado.
func (c *Console) Notify(_ context.Context, run domain.RunResult) error {
	if len(run.Positions) == 0 {
		fmt.Fprintf(c.out, "[%s] %s: no positions opened (%d bars, %d with full window), balance %s\n",
			run.Strategy, run.Instrument, run.Bars, run.AnnotatedBars, run.PnL.Final().StringFixed(2))
		return nil
	}

	if c.table {
		c.printPositions(run)
		c.printPnL(run)
	}
	c.printSummary(run)
	return nil
}

// printPositions imprime una fila por posición con el balance acumulado (pnl).
func (c *Console) printPositions(run domain.RunResult) {
	balanceByID := make(map[string]string, len(run.PnL.Points))
	for _, pt := range run.PnL.Points {
		balanceByID[pt.PositionID] = pt.Balance.StringFixed(2)
	}

	fmt.Fprintf(c.out, "\n=== POSITIONS %s (%s %d/%d) ===\n",
		run.Instrument, run.Strategy, run.FastPeriod, run.SlowPeriod)

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Opened", "Open", "Vol", "Closed", "Close", "Profit", "Exit", "Status", "PnL")

	for i, p := range run.Positions {
		closedAt, closePx, profit, pnl := "-", "-", "-", "-"
		if p.CloseTimestamp != nil {
			closedAt = p.CloseTimestamp.Format(timeLayout)
		}
		if p.ClosePrice != nil {
			closePx = p.ClosePrice.StringFixed(2)
		}
		if p.Profit != nil {
			profit = p.Profit.StringFixed(2)
		}
		if v, ok := balanceByID[p.ID]; ok {
			pnl = v
		}

		table.Append(
			fmt.Sprintf("%d", i+1),
			p.OpenTimestamp.Format(timeLayout),
			p.OpenPrice.StringFixed(2),
			fmt.Sprintf("%d", p.Volume),
			closedAt,
			closePx,
			profit,
			exitLabel(p.ExitReason),
			string(p.Status),
			pnl,
		)
	}

	table.Render()
}

// printPnL imprime la curva de balance acumulado.
func (c *Console) printPnL(run domain.RunResult) {
	if len(run.PnL.Points) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n=== PNL (start %s) ===\n", run.PnL.StartingBalance.StringFixed(2))

	table := tablewriter.NewWriter(c.out)
	table.Header("Closed", "Position", "Balance")
	for _, pt := range run.PnL.Points {
		table.Append(
			pt.Timestamp.Format(timeLayout),
			engine.TruncateStr(pt.PositionID, 13),
			pt.Balance.StringFixed(2),
		)
	}
	table.Render()
}

// printSummary imprime el resumen en una línea.
func (c *Console) printSummary(run domain.RunResult) {
	s := run.Summary()

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %d/%d → %d positions (open:%d closed:%d W:%d L:%d",
		run.Strategy, run.Instrument, run.FastPeriod, run.SlowPeriod,
		s.Total, s.Open, s.Closed, s.Winners, s.Losers)
	if s.Closed > 0 {
		fmt.Fprintf(&sb, " win:%.1f%%", s.WinRate)
	}
	fmt.Fprintf(&sb, ") profit %s | balance %s → %s",
		s.TotalProfit.StringFixed(2),
		run.PnL.StartingBalance.StringFixed(2),
		s.FinalBalance.StringFixed(2))

	fmt.Fprintln(c.out, sb.String())
}

func exitLabel(r domain.ExitReason) string {
	switch r {
	case domain.ExitBearishCrossover:
		return "BEARISH"
	case domain.ExitStopLoss:
		return "SL"
	case domain.ExitTakeProfit:
		return "TP"
	default:
		return "-"
	}
}
