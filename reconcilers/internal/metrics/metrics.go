/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics records OpenTelemetry counters and spans for the Route to
// Live reconcilers. Without an installed SDK every instrument is a no-op.
package metrics

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "chainguard.dev/routetolive/reconcilers"

// Recorder holds the reconciler instruments.
type Recorder struct {
	tracer          trace.Tracer
	pullRequests    metric.Int64Counter
	threads         metric.Int64Counter
	scaffoldCommits metric.Int64Counter
}

// New returns a Recorder backed by the global providers.
func New() *Recorder {
	return NewWithProviders(otel.GetMeterProvider(), otel.GetTracerProvider())
}

// NewWithProviders returns a Recorder backed by the given providers. A
// counter that cannot be created is replaced by a no-op one.
func NewWithProviders(mp metric.MeterProvider, tp trace.TracerProvider) *Recorder {
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion("1.0.0"))

	return &Recorder{
		tracer:          tp.Tracer(instrumentationName, trace.WithInstrumentationVersion("1.0.0")),
		pullRequests:    counter(meter, "rtl.pullrequests.created", "The number of pull requests opened", "{pullrequests}"),
		threads:         counter(meter, "rtl.threads.created", "The number of status threads opened", "{threads}"),
		scaffoldCommits: counter(meter, "rtl.scaffold.commits", "The number of scaffold commits pushed", "{commits}"),
	}
}

func counter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		slog.Warn("Failed to create counter, metric will be disabled", "error", err, "counter", name)
		return noop.Int64Counter{}
	}
	return c
}

// Start opens a span named after the reconcile operation.
func (r *Recorder) Start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "rtl."+op, trace.WithAttributes(attrs...))
}

// End records err on the span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// PullRequestCreated counts a newly opened pull request.
func (r *Recorder) PullRequestCreated(ctx context.Context, repo string) {
	r.pullRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("repository", repo)))
}

// ThreadCreated counts a newly opened status thread.
func (r *Recorder) ThreadCreated(ctx context.Context, repo string) {
	r.threads.Add(ctx, 1, metric.WithAttributes(attribute.String("repository", repo)))
}

// ScaffoldCommitted counts a pushed scaffold commit.
func (r *Recorder) ScaffoldCommitted(ctx context.Context, repo string) {
	r.scaffoldCommits.Add(ctx, 1, metric.WithAttributes(attribute.String("repository", repo)))
}
