package strategy

import (
	"github.com/alejandrodnm/smacross/internal/domain"
)

// Strategy define el contrato de un generador de señales sobre una serie de barras.
type Strategy interface {
	// Name devuelve el identificador único de la estrategia.
	Name() string

	// Annotate transforma la serie ordenada de barras en barras anotadas con
	// señales. Las barras sin ventana completa no aparecen en la salida.
	Annotate(bars []domain.Bar) ([]domain.AnnotatedBar, error)
}

// Registry mantiene las estrategias disponibles indexadas por nombre.
type Registry map[string]Strategy

// NewRegistry crea un registry vacío.
func NewRegistry() Registry {
	return make(Registry)
}

// Register añade una estrategia al registry.
func (r Registry) Register(s Strategy) {
	r[s.Name()] = s
}

// Get devuelve la estrategia por nombre.
func (r Registry) Get(name string) (Strategy, bool) {
	s, ok := r[name]
	return s, ok
}
