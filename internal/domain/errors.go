package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration se devuelve antes de procesar nada cuando los
	// periodos, el balance, las fracciones o el volumen no son válidos.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrMalformedBar indica una barra incompleta o fuera de orden cronológico.
	ErrMalformedBar = errors.New("malformed bar")

	// ErrPositionClosed se devuelve al intentar cerrar una posición ya cerrada.
	ErrPositionClosed = errors.New("position already closed")
)

// MalformedBarError identifica la barra que rompió la validación.
type MalformedBarError struct {
	Index  int
	Reason string
}

func (e *MalformedBarError) Error() string {
	return fmt.Sprintf("%s at index %d: %s", ErrMalformedBar, e.Index, e.Reason)
}

func (e *MalformedBarError) Unwrap() error {
	return ErrMalformedBar
}

// InvalidConfig construye un error que envuelve ErrInvalidConfiguration.
func InvalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
