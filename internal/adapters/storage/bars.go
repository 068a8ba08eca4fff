package storage

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/smacross/internal/domain"
)

// SaveBars hace upsert de las barras en una transacción y devuelve cuántas escribió.
func (s *SQLiteStorage) SaveBars(ctx context.Context, bars []domain.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveBars: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (datetime, close, high, low, open, volume, instrument)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instrument, datetime) DO UPDATE SET
			close  = excluded.close,
			high   = excluded.high,
			low    = excluded.low,
			open   = excluded.open,
			volume = excluded.volume
	`)
	if err != nil {
		return 0, fmt.Errorf("storage.SaveBars: prepare: %w", err)
	}
	defer stmt.Close()

	for i, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			toUnix(b.Timestamp),
			b.Close.String(),
			b.High.String(),
			b.Low.String(),
			b.Open.String(),
			b.Volume,
			b.Instrument,
		); err != nil {
			return 0, fmt.Errorf("storage.SaveBars: upsert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage.SaveBars: commit: %w", err)
	}
	return len(bars), nil
}

// LoadBars devuelve las barras del instrumento ordenadas por datetime ascendente.
func (s *SQLiteStorage) LoadBars(ctx context.Context, instrument string) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT datetime, close, high, low, open, volume, instrument
		FROM bars
		WHERE instrument = ?
		ORDER BY datetime ASC
	`, instrument)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadBars: query: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var ts int64
		if err := rows.Scan(&ts, &b.Close, &b.High, &b.Low, &b.Open, &b.Volume, &b.Instrument); err != nil {
			return nil, fmt.Errorf("storage.LoadBars: scan row: %w", err)
		}
		b.Timestamp = fromUnix(ts)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Instruments devuelve los instrumentos distintos presentes en la tabla de barras.
func (s *SQLiteStorage) Instruments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT instrument FROM bars ORDER BY instrument`)
	if err != nil {
		return nil, fmt.Errorf("storage.Instruments: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("storage.Instruments: scan row: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
