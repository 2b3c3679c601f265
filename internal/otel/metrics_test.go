package otel

import (
	"context"
	"testing"
	"time"
)

func TestInitMetrics_RecordHandoffOp(t *testing.T) {
	ctx := context.Background()
	_, err := InitMeterProvider(ctx, "metrics-test")
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	if err := InitMetrics(ctx); err != nil {
		t.Fatalf("InitMetrics: %v", err)
	}
	RecordHandoffOp(ctx, "create", "metapm", "pending")
	RecordHandoffOp(ctx, "update", "metapm", "read")
}

func TestAddSSEConnection_RemoveSSEConnection(t *testing.T) {
	AddSSEConnection()
	AddSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection()
	RemoveSSEConnection() // should not go negative
}

func TestRecordIngest_RecordSyncRun_RecordSSEEvent(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "record-test")
	_ = InitMetrics(ctx)
	RecordIngest(ctx, "api", 100*time.Millisecond)
	RecordSyncRun(ctx, 2, 1, 0)
	RecordSSEEvent(ctx)
}

func TestInitMetricsWithHandoffCount(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "handoffcount-test")
	err := InitMetricsWithHandoffCount(ctx, func() (pending, processed, done, needsFixes int64) {
		return 1, 2, 3, 0
	})
	if err != nil {
		t.Fatalf("InitMetricsWithHandoffCount: %v", err)
	}
}

func TestInitMetricsWithHandoffCount_nilFunc(t *testing.T) {
	ctx := context.Background()
	_, _ = InitMeterProvider(ctx, "handoffcount-nil-test")
	err := InitMetricsWithHandoffCount(ctx, nil)
	if err != nil {
		t.Fatalf("InitMetricsWithHandoffCount(nil): %v", err)
	}
}
