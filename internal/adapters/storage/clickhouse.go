package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/smacross/internal/domain"
)

// ClickHouseConfig describe cómo conectar con el almacén columnar de barras.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ClickHouseSource implementa ports.BarSource leyendo una tabla OHLCV de ClickHouse.
// La tabla debe tener las columnas datetime, open, high, low, close, volume e instrument.
type ClickHouseSource struct {
	conn  driver.Conn
	query string
}

// NewClickHouseSource abre la conexión y comprueba que responde.
func NewClickHouseSource(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseSource, error) {
	query, err := barsQuery(cfg.Database, cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClickHouseSource: %w", err)
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("storage.NewClickHouseSource: open %q: %w", cfg.Addr, err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage.NewClickHouseSource: ping %q: %w", cfg.Addr, err)
	}
	return &ClickHouseSource{conn: conn, query: query}, nil
}

// LoadBars implementa ports.BarSource.
// Los precios se leen como String para no depender de la precisión de la columna.
func (c *ClickHouseSource) LoadBars(ctx context.Context, instrument string) ([]domain.Bar, error) {
	rows, err := c.conn.Query(ctx, c.query, instrument)
	if err != nil {
		return nil, fmt.Errorf("storage.ClickHouseSource.LoadBars: query: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			ts             time.Time
			o, h, l, cl    string
			volume         int64
			instrumentName string
		)
		if err := rows.Scan(&ts, &o, &h, &l, &cl, &volume, &instrumentName); err != nil {
			return nil, fmt.Errorf("storage.ClickHouseSource.LoadBars: scan row: %w", err)
		}
		b := domain.Bar{Timestamp: ts.UTC(), Volume: volume, Instrument: instrumentName}
		if b.Open, err = decimal.NewFromString(o); err != nil {
			return nil, fmt.Errorf("storage.ClickHouseSource.LoadBars: open %q: %w", o, err)
		}
		if b.High, err = decimal.NewFromString(h); err != nil {
			return nil, fmt.Errorf("storage.ClickHouseSource.LoadBars: high %q: %w", h, err)
		}
		if b.Low, err = decimal.NewFromString(l); err != nil {
			return nil, fmt.Errorf("storage.ClickHouseSource.LoadBars: low %q: %w", l, err)
		}
		if b.Close, err = decimal.NewFromString(cl); err != nil {
			return nil, fmt.Errorf("storage.ClickHouseSource.LoadBars: close %q: %w", cl, err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Close cierra la conexión.
func (c *ClickHouseSource) Close() error {
	return c.conn.Close()
}

// barsQuery construye la consulta; database y table se interpolan, así que
// solo se aceptan identificadores simples.
func barsQuery(database, table string) (string, error) {
	if table == "" {
		table = "bars"
	}
	if !identRe.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	from := table
	if database != "" {
		if !identRe.MatchString(database) {
			return "", fmt.Errorf("invalid database name %q", database)
		}
		from = database + "." + table
	}
	return fmt.Sprintf(`
SELECT datetime, toString(open), toString(high), toString(low), toString(close),
       toInt64(volume), instrument
FROM %s
WHERE instrument = ?
ORDER BY datetime`, from), nil
}
