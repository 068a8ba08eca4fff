package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/smacross/internal/adapters/csvfeed"
	"github.com/alejandrodnm/smacross/internal/application/runner"
	"github.com/alejandrodnm/smacross/internal/ports"
)

// ingest carga un CSV de barras al almacén local antes de la ejecución.
func ingest(ctx context.Context, store ports.BarStore, path string) error {
	bars, err := csvfeed.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	n, err := runner.Ingest(ctx, store, bars)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	slog.Info("bars ingested", "path", path, "rows", len(bars), "saved", n)
	return nil
}
