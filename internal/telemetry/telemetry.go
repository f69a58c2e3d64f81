package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const exportInterval = 10 * time.Second

// InitMeterProvider installs a global meter provider pushing to the OTLP
// collector at endpoint. With an empty endpoint it returns nil and the global
// no-op provider stays in place.
func InitMeterProvider(ctx context.Context, endpoint, serviceName, serviceVersion string, logger *slog.Logger) (*metric.MeterProvider, error) {
	if endpoint == "" {
		logger.Info("OTel metrics disabled, no collector endpoint configured")
		return nil, nil
	}

	logger.Info("initializing OTel metrics", "endpoint", endpoint)

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(exportInterval))),
	)

	otel.SetMeterProvider(provider)
	logger.Info("OTel metrics initialized successfully")

	return provider, nil
}

func Shutdown(ctx context.Context, provider *metric.MeterProvider, logger *slog.Logger) error {
	if provider == nil {
		return nil
	}
	logger.Info("shutting down OTel meter provider")
	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}
