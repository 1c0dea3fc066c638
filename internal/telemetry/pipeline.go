package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Triggers that run the check-and-notify pipeline.
const (
	TriggerBroadcast = "broadcast"
	TriggerCommand   = "command"
	TriggerPubSub    = "pubsub"
)

// PipelineMetrics records check and notification outcomes by trigger.
type PipelineMetrics struct {
	checks        metric.Int64Counter
	checkDuration metric.Float64Histogram
	notifications metric.Int64Counter
	broadcasts    metric.Int64Counter
}

// NewPipelineMetrics creates the pipeline instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	checks, err := meter.Int64Counter("airalert.checks",
		metric.WithDescription("Air quality checks by trigger and outcome"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	checkDuration, err := meter.Float64Histogram("airalert.check.duration",
		metric.WithDescription("Time spent fetching and converting a reading"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	notifications, err := meter.Int64Counter("airalert.notifications",
		metric.WithDescription("Messages sent by trigger and outcome"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	broadcasts, err := meter.Int64Counter("airalert.broadcasts",
		metric.WithDescription("Completed broadcast runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		checks:        checks,
		checkDuration: checkDuration,
		notifications: notifications,
		broadcasts:    broadcasts,
	}, nil
}

// RecordCheck records one check. A nil receiver is a no-op.
func (m *PipelineMetrics) RecordCheck(ctx context.Context, trigger string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("outcome", outcome(err)),
	)
	m.checks.Add(ctx, 1, attrs)
	m.checkDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordNotification records one outgoing message. A nil receiver is a no-op.
func (m *PipelineMetrics) RecordNotification(ctx context.Context, trigger string, err error) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("outcome", outcome(err)),
	))
}

// RecordBroadcast records a finished broadcast run. A nil receiver is a no-op.
func (m *PipelineMetrics) RecordBroadcast(ctx context.Context, succeeded, failed int) {
	if m == nil {
		return
	}
	status := "ok"
	switch {
	case succeeded == 0 && failed > 0:
		status = "failed"
	case failed > 0:
		status = "partial"
	}
	m.broadcasts.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
