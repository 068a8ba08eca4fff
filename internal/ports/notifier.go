package ports

import (
	"context"

	"github.com/alejandrodnm/smacross/internal/domain"
)

// Notifier presenta el resultado de una ejecución al usuario.
type Notifier interface {
	// Notify muestra posiciones, serie de P&L y resumen.
	// En la implementación de consola, imprime tablas formateadas.
	Notify(ctx context.Context, run domain.RunResult) error
}
