package ports

import (
	"context"

	"github.com/alejandrodnm/smacross/internal/domain"
)

// ResultStorage persiste el resultado de cada ejecución del backtest.
type ResultStorage interface {
	// SaveRun guarda la ejecución y sus posiciones.
	SaveRun(ctx context.Context, run domain.RunResult) error

	// GetRun devuelve una ejecución previa con sus posiciones, en orden de apertura.
	GetRun(ctx context.Context, runID string) (domain.RunResult, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
