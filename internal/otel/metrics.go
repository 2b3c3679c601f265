package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	initMetricsOnce     sync.Once
	handoffOpsCounter   metric.Int64Counter
	ingestDuration      metric.Float64Histogram
	syncObjectsCounter  metric.Int64Counter
	syncRunsCounter     metric.Int64Counter
	sseConnectionsGauge metric.Int64ObservableGauge
	sseEventsCounter    metric.Int64Counter
	sseConnections      int64
	sseConnectionsMu    sync.Mutex
)

// InitMetrics creates the meter instruments. Safe to call multiple times; only runs once.
// Call after InitMeterProvider.
func InitMetrics(ctx context.Context) error {
	var err error
	initMetricsOnce.Do(func() {
		m := Meter()
		handoffOpsCounter, err = m.Int64Counter("metapm_handoff_operations_total", metric.WithDescription("Total handoff operations (create, update, complete, uat, etc.)"))
		if err != nil {
			return
		}
		ingestDuration, err = m.Float64Histogram("metapm_ingest_duration_seconds", metric.WithDescription("Handoff ingestion duration in seconds"))
		if err != nil {
			return
		}
		syncObjectsCounter, err = m.Int64Counter("metapm_sync_objects_total", metric.WithDescription("Bucket sync objects by outcome (imported, skipped, error)"))
		if err != nil {
			return
		}
		syncRunsCounter, err = m.Int64Counter("metapm_sync_runs_total", metric.WithDescription("Bucket sync runs"))
		if err != nil {
			return
		}
		sseEventsCounter, err = m.Int64Counter("metapm_sse_events_total", metric.WithDescription("Total SSE events published"))
		if err != nil {
			return
		}
		sseConnectionsGauge, err = m.Int64ObservableGauge("metapm_sse_connections", metric.WithDescription("Current SSE subscriber count"))
		if err != nil {
			return
		}
		_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
			sseConnectionsMu.Lock()
			n := sseConnections
			sseConnectionsMu.Unlock()
			o.ObserveInt64(sseConnectionsGauge, n)
			return nil
		}, sseConnectionsGauge)
		if err != nil {
			return
		}
	})
	return err
}

// RecordHandoffOp records a handoff operation (create, update, complete, uat, etc.).
func RecordHandoffOp(ctx context.Context, op string, project string, status string) {
	if handoffOpsCounter == nil {
		return
	}
	handoffOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		AttrProject.String(project),
		AttrStatus.String(status),
	))
}

// RecordIngest records one ingestion and its duration.
func RecordIngest(ctx context.Context, source string, duration time.Duration) {
	if ingestDuration != nil {
		ingestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(AttrSource.String(source)))
	}
}

// RecordSyncRun records one bucket sync run and its per-outcome object counts.
func RecordSyncRun(ctx context.Context, imported, skipped, errored int64) {
	if syncRunsCounter != nil {
		syncRunsCounter.Add(ctx, 1)
	}
	if syncObjectsCounter != nil {
		syncObjectsCounter.Add(ctx, imported, metric.WithAttributes(attribute.String("outcome", "imported")))
		syncObjectsCounter.Add(ctx, skipped, metric.WithAttributes(attribute.String("outcome", "skipped")))
		syncObjectsCounter.Add(ctx, errored, metric.WithAttributes(attribute.String("outcome", "error")))
	}
}

// RecordSSEEvent records one SSE event published.
func RecordSSEEvent(ctx context.Context) {
	if sseEventsCounter != nil {
		sseEventsCounter.Add(ctx, 1)
	}
}

// AddSSEConnection adds 1 to the SSE connection gauge (call on subscribe).
func AddSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections++
	sseConnectionsMu.Unlock()
}

// RemoveSSEConnection subtracts 1 from the SSE connection gauge (call on unsubscribe).
func RemoveSSEConnection() {
	sseConnectionsMu.Lock()
	sseConnections--
	if sseConnections < 0 {
		sseConnections = 0
	}
	sseConnectionsMu.Unlock()
}

// HandoffCountFunc returns (pending, processed, done, needsFixes) counts. Used
// for the metapm_handoffs_total gauge.
type HandoffCountFunc func() (pending, processed, done, needsFixes int64)

// InitMetricsWithHandoffCount creates instruments and optionally registers a
// callback for handoff status gauges. Call after InitMeterProvider. If
// handoffCount is nil, status gauges are not reported.
func InitMetricsWithHandoffCount(ctx context.Context, handoffCount HandoffCountFunc) error {
	if err := InitMetrics(ctx); err != nil {
		return err
	}
	if handoffCount == nil {
		return nil
	}
	m := Meter()
	handoffsGauge, err := m.Float64ObservableGauge("metapm_handoffs_total", metric.WithDescription("Number of handoffs by status"))
	if err != nil {
		return err
	}
	_, err = m.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		pending, processed, done, needsFixes := handoffCount()
		o.ObserveFloat64(handoffsGauge, float64(pending), metric.WithAttributes(AttrStatus.String("pending")))
		o.ObserveFloat64(handoffsGauge, float64(processed), metric.WithAttributes(AttrStatus.String("processed")))
		o.ObserveFloat64(handoffsGauge, float64(done), metric.WithAttributes(AttrStatus.String("done")))
		o.ObserveFloat64(handoffsGauge, float64(needsFixes), metric.WithAttributes(AttrStatus.String("needs_fixes")))
		return nil
	}, handoffsGauge)
	return err
}
