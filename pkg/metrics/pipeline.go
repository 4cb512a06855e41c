package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Record outcomes used as the "outcome" label.
const (
	OutcomeSummarized = "summarized"
	OutcomeFailed     = "failed"
)

// Pipeline holds the collectors for one summarizer process. All methods are
// safe on a nil receiver so callers can skip metrics in tests.
type Pipeline struct {
	registry         *prometheus.Registry
	batches          prometheus.Counter
	records          *prometheus.CounterVec
	promptTokens     prometheus.Counter
	inferenceLatency prometheus.Histogram

	mu    sync.Mutex
	usage TokenUsage
}

// NewPipeline registers the collectors on a private registry.
func NewPipeline() *Pipeline {
	p := &Pipeline{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "batchsum",
			Name:      "batches_processed_total",
			Help:      "Batches fully written to both output datasets.",
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchsum",
			Name:      "records_total",
			Help:      "Records processed, partitioned by summary outcome.",
		}, []string{"outcome"}),
		promptTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "batchsum",
			Name:      "prompt_tokens_total",
			Help:      "Prompt tokens sent to the inference backend after truncation.",
		}),
		inferenceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "batchsum",
			Name:      "inference_duration_seconds",
			Help:      "Latency of single summarization calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	p.registry.MustRegister(p.batches, p.records, p.promptTokens, p.inferenceLatency)
	return p
}

// ObserveBatch counts one completed batch.
func (p *Pipeline) ObserveBatch() {
	if p == nil {
		return
	}
	p.batches.Inc()
}

// ObserveRecord counts one record with the given outcome.
func (p *Pipeline) ObserveRecord(outcome string) {
	if p == nil {
		return
	}
	p.records.WithLabelValues(outcome).Inc()
}

// ObserveInference records the latency of one inference call.
func (p *Pipeline) ObserveInference(d time.Duration) {
	if p == nil {
		return
	}
	p.inferenceLatency.Observe(d.Seconds())
}

// AddPromptTokens counts prompt tokens and folds them into the usage totals.
func (p *Pipeline) AddPromptTokens(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.promptTokens.Add(float64(n))
	p.mu.Lock()
	p.usage = p.usage.Add(TokenUsage{PromptTokens: n, TotalTokens: n})
	p.mu.Unlock()
}

// Usage returns the accumulated token usage.
func (p *Pipeline) Usage() TokenUsage {
	if p == nil {
		return TokenUsage{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usage
}

// Handler exposes the registry in the Prometheus text format.
func (p *Pipeline) Handler() http.Handler {
	if p == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
