package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Observer emits one structured log line plus a counter and a duration
// histogram per operation.
type Observer struct {
	prefix  string
	logger  Logger
	metrics MetricsRecorder
}

func NewObserver(prefix string, logger Logger, metrics MetricsRecorder) *Observer {
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}
	return &Observer{
		prefix:  normalizeOperation(prefix),
		logger:  glog.Ensure(logger),
		metrics: metrics,
	}
}

func (o *Observer) Logger() Logger {
	if o == nil {
		return glog.Nop()
	}
	return o.logger
}

func (o *Observer) Observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if o == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := RedactSensitiveMap(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
		if rich := MapError(err); rich != nil {
			contextFields["error_category"] = fmt.Sprint(rich.Category)
			contextFields["error_text_code"] = rich.TextCode
			contextFields["error_code"] = rich.Code
		}
		if step, ok := FailedStep(err); ok {
			contextFields["failed_step"] = string(step)
		}
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range []string{"shop", "failed_step", "steps_completed"} {
		if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}

	name := operation
	if o.prefix != "" {
		name = o.prefix + "." + operation
	}
	o.metrics.IncCounter(ctx, name+".total", 1, cloneTags(tags))
	o.metrics.ObserveHistogram(ctx, name+".duration_ms", float64(time.Since(startedAt).Milliseconds()), cloneTags(tags))

	if err != nil {
		o.log(ctx, "error", operation+" failed", contextFields)
		return
	}
	o.log(ctx, "info", operation+" succeeded", contextFields)
}

func (o *Observer) log(ctx context.Context, level string, message string, fields map[string]any) {
	logger := o.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch level {
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
