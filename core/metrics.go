package core

import (
	"context"
	"maps"
)

// NopMetricsRecorder drops every sample. NewObserver falls back to it.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if out := maps.Clone(tags); out != nil {
		return out
	}
	return map[string]string{}
}
