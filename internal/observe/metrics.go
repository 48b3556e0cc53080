// Package observe provides the OpenTelemetry metrics, tracing and HTTP
// middleware used across the service.
//
// Tests should build [Metrics] with [NewMetrics] and their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "lautcoach"

// Collaborator names used as the "collaborator" attribute.
const (
	CollaboratorSTT     = "stt"
	CollaboratorTTS     = "tts"
	CollaboratorLLM     = "llm"
	CollaboratorStorage = "storage"
	CollaboratorEmail   = "email"
)

// Metrics holds the metric instruments. All fields are safe for concurrent use.
type Metrics struct {
	// AttemptsScored counts scored attempts by "path" (phonetic or text).
	AttemptsScored metric.Int64Counter

	// Scores records the score of every attempt.
	Scores metric.Float64Histogram

	// CollaboratorDuration tracks external call latency by "collaborator"
	// and "status".
	CollaboratorDuration metric.Float64Histogram

	// MasteryTransitions counts level changes by "from" and "to".
	MasteryTransitions metric.Int64Counter

	// MasteryConflicts counts lost compare-and-swap races on mastery records.
	MasteryConflicts metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes by "breaker"
	// and "to".
	BreakerTransitions metric.Int64Counter

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited metric.Int64Counter

	// HTTPRequestDuration tracks request time by "method" and "route".
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 85, 90, 95, 100}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.AttemptsScored, err = m.Int64Counter("lautcoach.attempts.scored",
		metric.WithDescription("Scored pronunciation attempts by scoring path."),
	); err != nil {
		return nil, err
	}
	if met.Scores, err = m.Float64Histogram("lautcoach.attempts.score",
		metric.WithDescription("Distribution of attempt scores."),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CollaboratorDuration, err = m.Float64Histogram("lautcoach.collaborator.duration",
		metric.WithDescription("Latency of external collaborator calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MasteryTransitions, err = m.Int64Counter("lautcoach.mastery.transitions",
		metric.WithDescription("Mastery level changes."),
	); err != nil {
		return nil, err
	}
	if met.MasteryConflicts, err = m.Int64Counter("lautcoach.mastery.conflicts",
		metric.WithDescription("Concurrent mastery updates that had to be retried."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("lautcoach.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes."),
	); err != nil {
		return nil, err
	}
	if met.RateLimited, err = m.Int64Counter("lautcoach.http.rate_limited",
		metric.WithDescription("Requests rejected by the rate limiter."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("lautcoach.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a shared instance built on the global provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordAttempt counts a scored attempt and records its score.
func (m *Metrics) RecordAttempt(ctx context.Context, path string, score float64) {
	attrs := metric.WithAttributes(attribute.String("path", path))
	m.AttemptsScored.Add(ctx, 1, attrs)
	m.Scores.Record(ctx, score, attrs)
}

// RecordCollaborator records the latency of one external call that started
// at start.
func (m *Metrics) RecordCollaborator(ctx context.Context, collaborator string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CollaboratorDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(
			attribute.String("collaborator", collaborator),
			attribute.String("status", status),
		),
	)
}

// RecordMasteryTransition counts a level change. Unchanged levels are ignored.
func (m *Metrics) RecordMasteryTransition(ctx context.Context, from, to string) {
	if from == to {
		return
	}
	m.MasteryTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordBreakerTransition counts a breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("to", to),
		),
	)
}
