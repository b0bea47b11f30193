package metrics

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-shopify-provisioner/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const DefaultNamespace = "provisioner"

// DefaultLabels are the tags kept on every series. Other tags are dropped
// so each metric keeps one label set.
var DefaultLabels = []string{"operation", "status", "shop", "failed_step", "steps_completed"}

var defaultDurationBuckets = prometheus.ExponentialBuckets(5, 2, 12)

type Option func(*Recorder)

func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		r.namespace = sanitizeName(namespace)
	}
}

func WithLabels(labels ...string) Option {
	return func(r *Recorder) {
		if len(labels) > 0 {
			r.labels = append([]string(nil), labels...)
		}
	}
}

func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// Recorder implements core.MetricsRecorder with lazily registered
// Prometheus vectors, one per metric name.
type Recorder struct {
	factory   promauto.Factory
	namespace string
	labels    []string
	buckets   []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

func NewRecorder(registerer prometheus.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	recorder := &Recorder{
		factory:    promauto.With(registerer),
		namespace:  DefaultNamespace,
		labels:     append([]string(nil), DefaultLabels...),
		buckets:    defaultDurationBuckets,
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(recorder)
		}
	}
	return recorder
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value < 0 {
		return
	}
	counter := r.counter(name)
	if counter == nil {
		return
	}
	counter.WithLabelValues(r.labelValues(tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	histogram := r.histogram(name)
	if histogram == nil {
		return
	}
	histogram.WithLabelValues(r.labelValues(tags)...).Observe(value)
}

func (r *Recorder) counter(name string) *prometheus.CounterVec {
	name = sanitizeName(name)
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.counters[name]; ok {
		return vec
	}
	vec := r.factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      "Counter for " + name,
	}, r.labels)
	r.counters[name] = vec
	return vec
}

func (r *Recorder) histogram(name string) *prometheus.HistogramVec {
	name = sanitizeName(name)
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if vec, ok := r.histograms[name]; ok {
		return vec
	}
	vec := r.factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Name:      name,
		Help:      "Distribution of " + name,
		Buckets:   r.buckets,
	}, r.labels)
	r.histograms[name] = vec
	return vec
}

func (r *Recorder) labelValues(tags map[string]string) []string {
	values := make([]string, len(r.labels))
	for i, label := range r.labels {
		values[i] = tags[label]
	}
	return values
}

// sanitizeName maps dotted operation names onto the Prometheus charset.
func sanitizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

var _ core.MetricsRecorder = (*Recorder)(nil)
