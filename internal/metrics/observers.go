package metrics

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RegisterServiceInfo exports a constant 1 carrying build metadata as labels.
func RegisterServiceInfo(meter metric.Meter, serviceName, version, env string) error {
	info, err := meter.Int64ObservableGauge(
		"service.info",
		metric.WithDescription("Service metadata information"),
		metric.WithUnit("{info}"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			observer.ObserveInt64(info, 1, metric.WithAttributes(
				attribute.String("service_name", serviceName),
				attribute.String("version", version),
				attribute.String("environment", env),
			))
			return nil
		},
		info,
	)
	return err
}

// RegisterPoolStats observes the connection pool of db on every collection.
func RegisterPoolStats(meter metric.Meter, db *sql.DB) error {
	open, err := meter.Int64ObservableGauge(
		"db.connections.open",
		metric.WithDescription("Current number of open database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}
	idle, err := meter.Int64ObservableGauge(
		"db.connections.idle",
		metric.WithDescription("Current number of idle database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}
	inUse, err := meter.Int64ObservableGauge(
		"db.connections.in_use",
		metric.WithDescription("Current number of database connections in use"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			stats := db.Stats()
			observer.ObserveInt64(open, int64(stats.OpenConnections))
			observer.ObserveInt64(idle, int64(stats.Idle))
			observer.ObserveInt64(inUse, int64(stats.InUse))
			return nil
		},
		open, idle, inUse,
	)
	return err
}

// RegisterActiveSessions observes the number of open directory sessions.
func RegisterActiveSessions(meter metric.Meter, count func() int) error {
	sessions, err := meter.Int64ObservableGauge(
		"mmps.directory.sessions",
		metric.WithDescription("Open student directory sessions"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			observer.ObserveInt64(sessions, int64(count()))
			return nil
		},
		sessions,
	)
	return err
}
