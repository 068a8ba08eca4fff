package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/smacross/internal/domain"
)

// ErrRunNotFound se devuelve cuando GetRun no encuentra la ejecución.
var ErrRunNotFound = errors.New("run not found")

// SaveRun persiste el resumen de la ejecución y todas sus posiciones.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run domain.RunResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs
			(id, instrument, strategy, fast_period, slow_period, started_at,
			 bars, annotated_bars, signals, starting_balance, final_balance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Instrument,
		run.Strategy,
		run.FastPeriod,
		run.SlowPeriod,
		toUnix(run.StartedAt),
		run.Bars,
		run.AnnotatedBars,
		run.Signals,
		run.StartingBalance.String(),
		run.PnL.Final().String(),
	); err != nil {
		return fmt.Errorf("storage.SaveRun: insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions
			(run_id, seq, id, open_datetime, open_price, order_type, volume,
			 stop_loss_fraction, take_profit_fraction, close_datetime, close_price,
			 profit, exit_reason, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare: %w", err)
	}
	defer stmt.Close()

	for i, p := range run.Positions {
		var closeTS *int64
		var closePrice, profit *string
		if p.CloseTimestamp != nil {
			ts := toUnix(*p.CloseTimestamp)
			closeTS = &ts
		}
		if p.ClosePrice != nil {
			v := p.ClosePrice.String()
			closePrice = &v
		}
		if p.Profit != nil {
			v := p.Profit.String()
			profit = &v
		}

		if _, err := stmt.ExecContext(ctx,
			run.ID,
			i,
			p.ID,
			toUnix(p.OpenTimestamp),
			p.OpenPrice.String(),
			string(p.OrderType),
			p.Volume,
			p.StopLossFraction.String(),
			p.TakeProfitFraction.String(),
			closeTS,
			closePrice,
			profit,
			string(p.ExitReason),
			string(p.Status),
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert position %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// GetRun carga una ejecución y reconstruye su serie de P&L a partir de las posiciones.
func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (domain.RunResult, error) {
	var run domain.RunResult
	var startedAt int64
	var finalBalance string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, instrument, strategy, fast_period, slow_period, started_at,
		       bars, annotated_bars, signals, starting_balance, final_balance
		FROM runs WHERE id = ?
	`, runID).Scan(
		&run.ID,
		&run.Instrument,
		&run.Strategy,
		&run.FastPeriod,
		&run.SlowPeriod,
		&startedAt,
		&run.Bars,
		&run.AnnotatedBars,
		&run.Signals,
		&run.StartingBalance,
		&finalBalance,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RunResult{}, fmt.Errorf("storage.GetRun %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return domain.RunResult{}, fmt.Errorf("storage.GetRun %s: %w", runID, err)
	}
	run.StartedAt = fromUnix(startedAt)

	positions, err := s.runPositions(ctx, runID)
	if err != nil {
		return domain.RunResult{}, err
	}
	run.Positions = positions
	run.PnL = domain.BuildPnLSeries(run.StartingBalance, positions)
	return run, nil
}

func (s *SQLiteStorage) runPositions(ctx context.Context, runID string) ([]domain.PositionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, open_datetime, open_price, order_type, volume,
		       stop_loss_fraction, take_profit_fraction, close_datetime,
		       close_price, profit, exit_reason, status
		FROM positions
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetRun: query positions: %w", err)
	}
	defer rows.Close()

	var out []domain.PositionRecord
	for rows.Next() {
		var p domain.PositionRecord
		var openTS int64
		var orderType, exitReason, status string
		var closeTS sql.NullInt64
		var closePrice, profit decimal.NullDecimal

		if err := rows.Scan(
			&p.ID,
			&openTS,
			&p.OpenPrice,
			&orderType,
			&p.Volume,
			&p.StopLossFraction,
			&p.TakeProfitFraction,
			&closeTS,
			&closePrice,
			&profit,
			&exitReason,
			&status,
		); err != nil {
			return nil, fmt.Errorf("storage.GetRun: scan position: %w", err)
		}

		p.OpenTimestamp = fromUnix(openTS)
		p.OrderType = domain.OrderType(orderType)
		p.ExitReason = domain.ExitReason(exitReason)
		p.Status = domain.PositionStatus(status)
		if closeTS.Valid {
			ts := fromUnix(closeTS.Int64)
			p.CloseTimestamp = &ts
		}
		if closePrice.Valid {
			v := closePrice.Decimal
			p.ClosePrice = &v
		}
		if profit.Valid {
			v := profit.Decimal
			p.Profit = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
