// Copyright 2026 Talksy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics = &PrometheusMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics records gateway-level events. Implementations must tolerate
// being called from any goroutine.
type Metrics interface {
	RecordMessage(ctx context.Context)
	RecordCompletion(ctx context.Context, model string, duration time.Duration, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordRateLimitDenial(ctx context.Context)
	RecordFailover(ctx context.Context, operation string)
}

// PrometheusMetrics is the OTel-backed recorder. The zero value is a
// no-op, which is what disabled metrics hand out.
type PrometheusMetrics struct {
	messagesTotal      metric.Int64Counter
	completionDuration metric.Float64Histogram
	completionErrors   metric.Int64Counter
	toolDuration       metric.Float64Histogram
	toolCallsTotal     metric.Int64Counter
	toolErrorsTotal    metric.Int64Counter
	rateDenialsTotal   metric.Int64Counter
	failoversTotal     metric.Int64Counter
}

func (m *PrometheusMetrics) RecordMessage(ctx context.Context) {
	if m == nil || m.messagesTotal == nil {
		return
	}
	m.messagesTotal.Add(ctx, 1)
}

func (m *PrometheusMetrics) RecordCompletion(ctx context.Context, model string, duration time.Duration, err error) {
	if m == nil || m.completionDuration == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.completionDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil && m.completionErrors != nil {
		m.completionErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolCallsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolCallsTotal.Add(ctx, 1, attrs)
	if m.toolDuration != nil {
		m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if err != nil && m.toolErrorsTotal != nil {
		m.toolErrorsTotal.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordRateLimitDenial(ctx context.Context) {
	if m == nil || m.rateDenialsTotal == nil {
		return
	}
	m.rateDenialsTotal.Add(ctx, 1)
}

func (m *PrometheusMetrics) RecordFailover(ctx context.Context, operation string) {
	if m == nil || m.failoversTotal == nil {
		return
	}
	m.failoversTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// SetGlobalMetrics installs the process-wide recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide recorder, never nil.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
