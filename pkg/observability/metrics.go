// Package observability exposes Prometheus metrics for negotiations, peer
// transport, tool execution, and LLM usage through the OpenTelemetry SDK.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Config struct {
	Enabled bool `json:"enabled" yaml:"enabled" koanf:"enabled"`
}

// Metrics carries the instrument set. The zero value and the nil pointer are
// both working no-ops, so call sites never need nil checks.
type Metrics struct {
	negotiations        metric.Int64Counter
	negotiationDuration metric.Float64Histogram
	turns               metric.Int64Counter
	handovers           metric.Int64Counter

	transportSends    metric.Int64Counter
	transportDuration metric.Float64Histogram
	transportErrors   metric.Int64Counter

	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter
	toolDuration metric.Float64Histogram

	llmRequests metric.Int64Counter
	llmTokens   metric.Int64Counter
	llmErrors   metric.Int64Counter

	enabled bool
}

// Init builds the exporter and instrument set. Disabled config returns the
// no-op Metrics.
func Init(ctx context.Context, cfg Config) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)).Meter("convene")

	m := &Metrics{enabled: true}
	for _, instr := range []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.negotiations, "convene_negotiations_total", "Completed outbound negotiations"},
		{&m.turns, "convene_negotiation_turns_total", "Negotiation turns exchanged"},
		{&m.handovers, "convene_handovers_total", "Supervised-to-autonomous handovers"},
		{&m.transportSends, "convene_transport_sends_total", "Peer messages sent"},
		{&m.transportErrors, "convene_transport_errors_total", "Peer transport failures"},
		{&m.toolCalls, "convene_tool_calls_total", "Calendar tool executions"},
		{&m.toolErrors, "convene_tool_errors_total", "Calendar tool failures"},
		{&m.llmRequests, "convene_llm_requests_total", "Language model requests"},
		{&m.llmTokens, "convene_llm_tokens_total", "Language model tokens used"},
		{&m.llmErrors, "convene_llm_errors_total", "Language model failures"},
	} {
		counter, err := meter.Int64Counter(instr.name, metric.WithDescription(instr.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", instr.name, err)
		}
		*instr.dst = counter
	}

	for _, instr := range []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.negotiationDuration, "convene_negotiation_duration_seconds", "End-to-end negotiation duration"},
		{&m.transportDuration, "convene_transport_duration_seconds", "Peer round-trip duration"},
		{&m.toolDuration, "convene_tool_duration_seconds", "Calendar tool execution duration"},
	} {
		histogram, err := meter.Float64Histogram(instr.name, metric.WithDescription(instr.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create histogram %s: %w", instr.name, err)
		}
		*instr.dst = histogram
	}

	return m, nil
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordNegotiation(ctx context.Context, partner string, success, handover bool, turns int, elapsed time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("partner", partner),
		attribute.Bool("success", success),
	)
	m.negotiations.Add(ctx, 1, attrs)
	m.negotiationDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.turns.Add(ctx, int64(turns), attrs)
	if handover {
		m.handovers.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordTransport(ctx context.Context, endpoint string, elapsed time.Duration, err error) {
	if m == nil || !m.enabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("endpoint", endpoint))
	m.transportSends.Add(ctx, 1, attrs)
	m.transportDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		m.transportErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordToolCall(ctx context.Context, tool string, elapsed time.Duration, success bool) {
	if m == nil || !m.enabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, elapsed.Seconds(), attrs)
	if !success {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordLLM(ctx context.Context, model string, tokens int, err error) {
	if m == nil || !m.enabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmRequests.Add(ctx, 1, attrs)
	if tokens > 0 {
		m.llmTokens.Add(ctx, int64(tokens), attrs)
	}
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}
