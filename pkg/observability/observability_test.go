package observability

import (
	"context"
	"testing"
	"time"

	"github.com/emadnahed/talksy/pkg/config"
)

func TestDisabledMetricsAreNoop(t *testing.T) {
	off := config.BoolPtr(false)
	m, err := InitMetrics(context.Background(), config.MetricsConfig{Enabled: off}, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Every recorder method must be safe on the zero value.
	ctx := context.Background()
	m.RecordMessage(ctx)
	m.RecordCompletion(ctx, "gpt-4o-mini", time.Second, nil)
	m.RecordToolExecution(ctx, "echo", time.Millisecond, nil)
	m.RecordRateLimitDenial(ctx)
	m.RecordFailover(ctx, "get")
}

func TestEnabledMetricsRecord(t *testing.T) {
	m, err := InitMetrics(context.Background(), config.MetricsConfig{}, func() int64 { return 3 })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	m.RecordMessage(ctx)
	m.RecordCompletion(ctx, "mock", 10*time.Millisecond, nil)
	m.RecordToolExecution(ctx, "calculator", time.Millisecond, context.DeadlineExceeded)
	m.RecordRateLimitDenial(ctx)
	m.RecordFailover(ctx, "set")
}

func TestGlobalMetrics(t *testing.T) {
	if GetGlobalMetrics() == nil {
		t.Fatal("global metrics must never be nil")
	}

	custom := &PrometheusMetrics{}
	SetGlobalMetrics(custom)
	if GetGlobalMetrics() != custom {
		t.Error("SetGlobalMetrics did not take effect")
	}
}
