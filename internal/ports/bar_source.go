package ports

import (
	"context"

	"github.com/alejandrodnm/smacross/internal/domain"
)

// BarSource lee las barras OHLCV de un instrumento.
type BarSource interface {
	// LoadBars devuelve las barras del instrumento ordenadas por timestamp ascendente.
	LoadBars(ctx context.Context, instrument string) ([]domain.Bar, error)
}

// BarStore es un BarSource en el que además se pueden insertar barras.
type BarStore interface {
	BarSource

	// SaveBars inserta las barras en una sola transacción.
	SaveBars(ctx context.Context, bars []domain.Bar) (int, error)
}
