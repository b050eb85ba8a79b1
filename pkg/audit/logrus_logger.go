package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events as structured log lines. It is the
// default sink when no database logger is configured.
type LogrusLogger struct {
	logger logrus.FieldLogger
}

// NewLogrusLogger creates a log-backed audit logger
func NewLogrusLogger(logger logrus.FieldLogger) *LogrusLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusLogger{logger: logger.WithField("component", "audit")}
}

// Log writes event at info level, or warn level for denials and failures.
func (l *LogrusLogger) Log(ctx context.Context, event *Event) error {
	fields := logrus.Fields{
		"event_id":   event.EventID,
		"event_type": event.EventType,
		"status":     event.Status,
	}
	if event.UserID != nil {
		fields["user_id"] = *event.UserID
	}
	if event.TenantID != nil {
		fields["tenant_id"] = *event.TenantID
	}
	if event.ResourceType != "" {
		fields["resource_type"] = event.ResourceType
		fields["resource_id"] = event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	if event.IPAddress != "" {
		fields["ip_address"] = event.IPAddress
	}
	for k, v := range event.Metadata {
		fields["meta."+k] = v
	}

	entry := l.logger.WithFields(fields)
	if event.Status == StatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
	return nil
}

func (l *LogrusLogger) Close() error {
	return nil
}
