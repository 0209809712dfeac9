package aimetrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type aiMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var metricsInit = false
var metrics aiMetrics

func ensureMetrics() {
	if metricsInit {
		return
	}
	meter := otel.Meter("github.com/zatekoja/radreference/ai")

	requestCount, err := meter.Int64Counter(
		"ai.request.count",
		metric.WithDescription("Number of AI provider requests"),
	)
	if err != nil {
		return
	}
	requestDuration, err := meter.Float64Histogram(
		"ai.request.duration",
		metric.WithDescription("AI provider request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	requestErrors, err := meter.Int64Counter(
		"ai.request.errors",
		metric.WithDescription("Number of AI provider request errors"),
	)
	if err != nil {
		return
	}
	rateLimitWait, err := meter.Float64Histogram(
		"ai.rate_limit.wait",
		metric.WithDescription("Time spent waiting for the provider rate limiter in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}

	metrics = aiMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
		rateLimitWait:   rateLimitWait,
	}
	metricsInit = true
}

// RecordRequest records one provider round trip.
func RecordRequest(ctx context.Context, provider, model string, statusCode int, duration time.Duration, err error) {
	ensureMetrics()
	if !metricsInit {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", provider),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	metrics.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		metrics.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordRateLimitWait records time spent waiting on the local limiter.
func RecordRateLimitWait(ctx context.Context, provider, model string, wait time.Duration) {
	ensureMetrics()
	if !metricsInit {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", provider),
		attribute.String("ai.model", model),
	}
	metrics.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attrs...))
}
