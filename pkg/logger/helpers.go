package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// ForComponent returns l tagged with the component name.
func ForComponent(l Logger, component string) Logger {
	return OrDefault(l).WithField("component", component)
}

// LogStage logs the start of a pipeline stage
func LogStage(l Logger, stage string, fields map[string]interface{}) {
	merged := map[string]interface{}{"stage": stage}
	for k, v := range fields {
		merged[k] = v
	}
	OrDefault(l).InfoWithFields("Stage started", merged)
}

// LogOutcome logs the per-resource result of the run loop
func LogOutcome(l Logger, url, outcome string, err error) {
	entry := OrDefault(l).WithFields(map[string]interface{}{
		"url":     url,
		"outcome": outcome,
	})
	if err != nil {
		entry.WithError(err).Warn("Resource failed")
		return
	}
	entry.Info("Resource processed")
}

// LogMetrics logs a set of counters under one operation name
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	OrDefault(l).InfoWithFields("Run metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}

func (n *nopLogger) GetZerolog() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
