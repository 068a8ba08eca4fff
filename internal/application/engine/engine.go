package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IDFunc genera el identificador de una posición a partir de su instrumento,
// su instante de apertura y su orden de apertura dentro de la ejecución.
type IDFunc func(instrument string, openedAt time.Time, seq int) string

// PositionID es el IDFunc por defecto: un UUID v5 derivado de los datos de
// apertura, de modo que dos ejecuciones sobre las mismas barras producen los mismos IDs.
func PositionID(instrument string, openedAt time.Time, seq int) string {
	name := fmt.Sprintf("%s|%d|%d", instrument, openedAt.UnixNano(), seq)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// NewRunID devuelve un UUID aleatorio para identificar una ejecución.
func NewRunID() string {
	return uuid.New().String()
}

// TruncateStr trunca un string a maxLen caracteres añadiendo "..." si es necesario.
func TruncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
