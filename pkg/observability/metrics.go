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

// Package observability wires OpenTelemetry metrics through the
// Prometheus exporter, exposed at /metrics by the gateway.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/emadnahed/talksy/pkg/config"
)

// InitMetrics builds the meter provider and instrument set. When metrics
// are disabled every recorder method is a no-op.
func InitMetrics(ctx context.Context, cfg config.MetricsConfig, sessionCount func() int64) (*PrometheusMetrics, error) {
	if !cfg.IsEnabled() {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("talksy")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)
	meter := meterProvider.Meter("talksy")

	messages, err := meter.Int64Counter(
		"talksy_messages_total",
		metric.WithDescription("Total chat messages processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages counter: %w", err)
	}

	completionDuration, err := meter.Float64Histogram(
		"talksy_completion_duration_seconds",
		metric.WithDescription("Model completion duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion duration histogram: %w", err)
	}

	completionErrors, err := meter.Int64Counter(
		"talksy_completion_errors_total",
		metric.WithDescription("Total failed model completions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion errors counter: %w", err)
	}

	toolDuration, err := meter.Float64Histogram(
		"talksy_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	toolCalls, err := meter.Int64Counter(
		"talksy_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	toolErrors, err := meter.Int64Counter(
		"talksy_tool_errors_total",
		metric.WithDescription("Total failed tool calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	rateDenials, err := meter.Int64Counter(
		"talksy_ratelimit_denials_total",
		metric.WithDescription("Total requests denied by the rate limiter"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit denials counter: %w", err)
	}

	failovers, err := meter.Int64Counter(
		"talksy_storage_failovers_total",
		metric.WithDescription("Total demotions from primary to fallback storage"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create failovers counter: %w", err)
	}

	if sessionCount != nil {
		_, err = meter.Int64ObservableGauge(
			"talksy_sessions_active",
			metric.WithDescription("Live sessions, active and disconnected"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(sessionCount())
				return nil
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create session gauge: %w", err)
		}
	}

	return &PrometheusMetrics{
		messagesTotal:      messages,
		completionDuration: completionDuration,
		completionErrors:   completionErrors,
		toolDuration:       toolDuration,
		toolCallsTotal:     toolCalls,
		toolErrorsTotal:    toolErrors,
		rateDenialsTotal:   rateDenials,
		failoversTotal:     failovers,
	}, nil
}
