// Package csvfeed lee barras OHLCV desde exports CSV.
//
// Columnas requeridas (en cualquier orden, cabecera obligatoria):
// datetime, open, high, low, close, volume, instrument. Los exports de hojas
// de cálculo suelen venir con BOM UTF-8 o en UTF-16; ambos se decodifican.
package csvfeed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/alejandrodnm/smacross/internal/domain"
)

// DatetimeLayout es el formato de fecha de los exports de barras diarias.
const DatetimeLayout = "2006-01-02 15:04:05"

var requiredColumns = []string{"datetime", "open", "high", "low", "close", "volume", "instrument"}

// ReadFile abre el CSV en path y devuelve sus barras.
func ReadFile(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvfeed.ReadFile: open %q: %w", path, err)
	}
	defer f.Close()

	bars, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("csvfeed.ReadFile %q: %w", path, err)
	}
	return bars, nil
}

// Read parsea las barras en el orden del fichero. Una fila incompleta o con
// valores no numéricos es un error que identifica la línea.
func Read(r io.Reader) ([]domain.Bar, error) {
	// BOMOverride detecta UTF-16 LE/BE y elimina el BOM UTF-8; sin BOM pasa tal cual.
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		b, err := parseRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrMalformedBar, c)
		}
	}
	return cols, nil
}

func parseRecord(rec []string, cols map[string]int) (domain.Bar, error) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var b domain.Bar
	var err error

	if b.Timestamp, err = ParseDatetime(field("datetime")); err != nil {
		return domain.Bar{}, err
	}
	for _, p := range []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"open", &b.Open},
		{"high", &b.High},
		{"low", &b.Low},
		{"close", &b.Close},
	} {
		raw := field(p.name)
		if raw == "" {
			return domain.Bar{}, fmt.Errorf("%w: empty %s", domain.ErrMalformedBar, p.name)
		}
		if *p.dst, err = decimal.NewFromString(raw); err != nil {
			return domain.Bar{}, fmt.Errorf("%w: %s %q: %v", domain.ErrMalformedBar, p.name, raw, err)
		}
	}

	rawVol := field("volume")
	if b.Volume, err = strconv.ParseInt(rawVol, 10, 64); err != nil {
		return domain.Bar{}, fmt.Errorf("%w: volume %q: %v", domain.ErrMalformedBar, rawVol, err)
	}
	if b.Instrument = field("instrument"); b.Instrument == "" {
		return domain.Bar{}, fmt.Errorf("%w: empty instrument", domain.ErrMalformedBar)
	}
	return b, nil
}

// ParseDatetime acepta DatetimeLayout o RFC3339. Sin zona
// horaria el instante se interpreta en UTC.
func ParseDatetime(s string) (time.Time, error) {
	if t, err := time.Parse(DatetimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: datetime %q", domain.ErrMalformedBar, s)
}
