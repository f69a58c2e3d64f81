package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	directoryViews  metric.Int64Counter
	directoryLoads  metric.Int64Counter
	studentsUpdated metric.Int64Counter
	studentsDeleted metric.Int64Counter
	photosUploaded  metric.Int64Counter
	deletesRefused  metric.Int64Counter
	queryDuration   metric.Float64Histogram
	queryErrors     metric.Int64Counter
}

// NewFromGlobal builds the collectors on the globally registered meter provider.
func NewFromGlobal(serviceName string) (*Metrics, error) {
	return New(otel.Meter(serviceName))
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.directoryViews, err = meter.Int64Counter(
		"mmps.directory.views",
		metric.WithDescription("Total number of student directory views rendered"),
		metric.WithUnit("{view}"),
	)
	if err != nil {
		return nil, err
	}

	m.directoryLoads, err = meter.Int64Counter(
		"mmps.directory.loads",
		metric.WithDescription("Bulk student loads by outcome"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsUpdated, err = meter.Int64Counter(
		"mmps.students.updated",
		metric.WithDescription("Total number of students updated"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.studentsDeleted, err = meter.Int64Counter(
		"mmps.students.deleted",
		metric.WithDescription("Total number of students deleted"),
		metric.WithUnit("{student}"),
	)
	if err != nil {
		return nil, err
	}

	m.photosUploaded, err = meter.Int64Counter(
		"mmps.photos.uploaded",
		metric.WithDescription("Total number of student photos uploaded"),
		metric.WithUnit("{photo}"),
	)
	if err != nil {
		return nil, err
	}

	m.deletesRefused, err = meter.Int64Counter(
		"mmps.directory.deletes_refused",
		metric.WithDescription("Bulk deletes refused by the confirmation password"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 1ms .. 10s
	m.queryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, err
	}

	m.queryErrors, err = meter.Int64Counter(
		"db.query.errors",
		metric.WithDescription("Database query errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordDirectoryView(ctx context.Context) {
	if m != nil && m.directoryViews != nil {
		m.directoryViews.Add(ctx, 1)
	}
}

func (m *Metrics) RecordDirectoryLoad(ctx context.Context, err error) {
	if m == nil || m.directoryLoads == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.directoryLoads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordStudentUpdated(ctx context.Context) {
	if m != nil && m.studentsUpdated != nil {
		m.studentsUpdated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordStudentsDeleted(ctx context.Context, n int) {
	if m != nil && m.studentsDeleted != nil {
		m.studentsDeleted.Add(ctx, int64(n))
	}
}

func (m *Metrics) RecordPhotoUploaded(ctx context.Context) {
	if m != nil && m.photosUploaded != nil {
		m.photosUploaded.Add(ctx, 1)
	}
}

func (m *Metrics) RecordDeleteRefused(ctx context.Context) {
	if m != nil && m.deletesRefused != nil {
		m.deletesRefused.Add(ctx, 1)
	}
}

func (m *Metrics) RecordQuery(ctx context.Context, operation string, table string, duration time.Duration, err error) {
	if m == nil || m.queryDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("table", table),
	}

	m.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil && m.queryErrors != nil {
		m.queryErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{}
}
