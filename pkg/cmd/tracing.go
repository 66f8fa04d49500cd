package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/machineline/pkg/otelhelper"
)

// SetupTracing installs the OTLP exporter when enabled. The returned func flushes it and is safe
// to call either way.
func SetupTracing(ctx context.Context, enabled bool, serviceName string, logger *slog.Logger) (func(context.Context), error) {
	if !enabled {
		return func(context.Context) {}, nil
	}

	tracerProvider, err := otelhelper.Setup(ctx, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return func(ctx context.Context) {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
		}
	}, nil
}
