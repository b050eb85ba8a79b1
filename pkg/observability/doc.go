// Package observability carries folio's logging, metrics, tracing and
// health endpoints.
//
// Logging is structured JSON through logrus:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	observability.FromContext(ctx).WithField("submission_id", id).Info("status changed")
//
// Metrics are Prometheus collectors prefixed folio_. *Metrics satisfies
// workflow.Recorder, so the workflow engine reports operation outcomes and
// status transitions without importing this package:
//
//	metrics := observability.NewMetrics(registry)
//	svc := workflow.NewService(db, workflow.WithRecorder(metrics))
//
// Tracing uses OpenTelemetry with an OTLP gRPC exporter; InitOTel is a no-op
// when disabled. Health exposes /health (liveness) and /ready (database,
// optional redis and file store).
package observability
