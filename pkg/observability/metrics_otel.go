package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the workflow and storage counters onto the OTLP meter
// so they reach the collector alongside traces.
type OTelMetrics struct {
	workflowOperations metric.Int64Counter
	statusTransitions  metric.Int64Counter
	storageOperations  metric.Int64Counter
	storageDuration    metric.Float64Histogram
}

// NewOTelMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	if meter == nil {
		meter = otel.Meter("github.com/platinummonkey/folio")
	}

	m := &OTelMetrics{}
	var err error

	m.workflowOperations, err = meter.Int64Counter(
		"folio.workflow.operations",
		metric.WithDescription("Workflow operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow operations counter: %w", err)
	}

	m.statusTransitions, err = meter.Int64Counter(
		"folio.submission.transitions",
		metric.WithDescription("Submission status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transitions counter: %w", err)
	}

	m.storageOperations, err = meter.Int64Counter(
		"folio.storage.operations",
		metric.WithDescription("Manuscript store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage operations counter: %w", err)
	}

	m.storageDuration, err = meter.Float64Histogram(
		"folio.storage.duration",
		metric.WithDescription("Manuscript store operation duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage duration histogram: %w", err)
	}

	return m, nil
}

// RecordWorkflowOperation counts one workflow operation.
func (m *OTelMetrics) RecordWorkflowOperation(op, outcome string) {
	m.workflowOperations.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

// RecordStatusTransition counts one submission status change.
func (m *OTelMetrics) RecordStatusTransition(from, to string) {
	m.statusTransitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordStorageOperation counts and times one file store call.
func (m *OTelMetrics) RecordStorageOperation(op, backend string, d time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("backend", backend),
		attribute.Bool("error", err != nil),
	)
	m.storageOperations.Add(context.Background(), 1, attrs)
	m.storageDuration.Record(context.Background(), d.Seconds(), attrs)
}

// WorkflowRecorder is the recording surface the workflow engine needs.
type WorkflowRecorder interface {
	RecordWorkflowOperation(op, outcome string)
	RecordStatusTransition(from, to string)
}

// Recorders fans workflow events out to several recorders.
type Recorders []WorkflowRecorder

// RecordWorkflowOperation forwards to every recorder.
func (rs Recorders) RecordWorkflowOperation(op, outcome string) {
	for _, r := range rs {
		r.RecordWorkflowOperation(op, outcome)
	}
}

// RecordStatusTransition forwards to every recorder.
func (rs Recorders) RecordStatusTransition(from, to string) {
	for _, r := range rs {
		r.RecordStatusTransition(from, to)
	}
}

// StorageRecorder is the recording surface of an instrumented file store.
type StorageRecorder interface {
	RecordStorageOperation(op, backend string, d time.Duration, err error)
}

// StorageRecorders fans storage events out to several recorders.
type StorageRecorders []StorageRecorder

// RecordStorageOperation forwards to every recorder.
func (rs StorageRecorders) RecordStorageOperation(op, backend string, d time.Duration, err error) {
	for _, r := range rs {
		r.RecordStorageOperation(op, backend, d, err)
	}
}

// RecordUploadSize forwards to the recorders that track sizes.
func (rs StorageRecorders) RecordUploadSize(backend string, n int64) {
	for _, r := range rs {
		if sr, ok := r.(interface{ RecordUploadSize(string, int64) }); ok {
			sr.RecordUploadSize(backend, n)
		}
	}
}
