package storage

// sqlite.go: tabla de barras OHLCV y resultados de backtest.
//
// Estrategia:
//   - `bars`: una fila por (instrument, datetime). Re-ingestar el mismo CSV
//     hace UPSERT en lugar de duplicar filas.
//   - `runs`: resumen ligero por ejecución (periodos, balance inicial y final).
//   - `positions`: las posiciones de cada ejecución en orden de apertura.
//   - Timestamps como unix nanos UTC; precios y profits como TEXT decimal
//     para no perder precisión.
//   - Prune automático al arrancar: runs > 90d junto con sus posiciones.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
-- Barras OHLCV, mismo orden de columnas que el CSV de origen
CREATE TABLE IF NOT EXISTS bars (
    datetime   INTEGER NOT NULL,
    close      TEXT    NOT NULL,
    high       TEXT    NOT NULL,
    low        TEXT    NOT NULL,
    open       TEXT    NOT NULL,
    volume     INTEGER NOT NULL DEFAULT 0,
    instrument TEXT    NOT NULL,
    PRIMARY KEY (instrument, datetime)
);

-- Resumen por ejecución del backtest
CREATE TABLE IF NOT EXISTS runs (
    id               TEXT PRIMARY KEY,
    instrument       TEXT    NOT NULL,
    strategy         TEXT    NOT NULL,
    fast_period      INTEGER NOT NULL,
    slow_period      INTEGER NOT NULL,
    started_at       INTEGER NOT NULL,
    bars             INTEGER NOT NULL DEFAULT 0,
    annotated_bars   INTEGER NOT NULL DEFAULT 0,
    signals          INTEGER NOT NULL DEFAULT 0,
    starting_balance TEXT    NOT NULL,
    final_balance    TEXT    NOT NULL
);

-- Posiciones de cada ejecución
CREATE TABLE IF NOT EXISTS positions (
    run_id               TEXT    NOT NULL,
    seq                  INTEGER NOT NULL,
    id                   TEXT    NOT NULL,
    open_datetime        INTEGER NOT NULL,
    open_price           TEXT    NOT NULL,
    order_type           TEXT    NOT NULL,
    volume               INTEGER NOT NULL,
    stop_loss_fraction   TEXT    NOT NULL,
    take_profit_fraction TEXT    NOT NULL,
    close_datetime       INTEGER,
    close_price          TEXT,
    profit               TEXT,
    exit_reason          TEXT    NOT NULL DEFAULT '',
    status               TEXT    NOT NULL,
    PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_instr   ON runs(instrument);
`

const retentionRuns = 90 * 24 * time.Hour

// SQLiteStorage implementa ports.BarStore y ports.ResultStorage usando SQLite
// (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia ejecuciones antiguas.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// pruneOld elimina ejecuciones antiguas y sus posiciones para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns).UnixNano()
	s.db.ExecContext(ctx, `DELETE FROM positions WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
}

func toUnix(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
