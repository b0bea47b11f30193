// Package metrics exports operation counters and durations to Prometheus.
package metrics
