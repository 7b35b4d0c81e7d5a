package feed

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/feedrank/pipeline"
)

// 请求分支。
const (
	BranchAnonymous    = "anonymous"
	BranchColdStart    = "cold_start"
	BranchNoTopics     = "no_topics"
	BranchPersonalized = "personalized"
)

// Metrics 是引擎的 Prometheus 指标，注册在注入的 Registerer 上。
type Metrics struct {
	Requests   *prometheus.CounterVec
	Errors     *prometheus.CounterVec
	Latency    *prometheus.HistogramVec
	Retrieval  *prometheus.HistogramVec
	Candidates *prometheus.HistogramVec
	Stages     *prometheus.HistogramVec
}

// NewMetrics 创建并注册指标。reg 为 nil 时使用一个独立的 Registry（测试 / 嵌入场景）。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feedrank_requests_total",
			Help: "Feed requests by branch",
		}, []string{"branch"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feedrank_request_errors_total",
			Help: "Failed feed requests by stage",
		}, []string{"stage"}),
		Latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedrank_request_duration_seconds",
			Help:    "End-to-end ranking latency by branch",
			Buckets: prometheus.DefBuckets,
		}, []string{"branch"}),
		Retrieval: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedrank_retrieval_duration_seconds",
			Help:    "Candidate retrieval latency by source",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}),
		Candidates: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedrank_candidates",
			Help:    "Candidates returned per retrieval source",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 200},
		}, []string{"source"}),
		Stages: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedrank_stage_duration_seconds",
			Help:    "Pipeline node latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"node"}),
	}
}

// ObserveRecall 满足 recall.Observer。
func (m *Metrics) ObserveRecall(source string, count int, elapsed time.Duration, err error) {
	m.Retrieval.WithLabelValues(source).Observe(elapsed.Seconds())
	if err != nil {
		m.Errors.WithLabelValues(source).Inc()
		return
	}
	m.Candidates.WithLabelValues(source).Observe(float64(count))
}

// ObserveNode 满足 pipeline.Hook。
func (m *Metrics) ObserveNode(node pipeline.Node, _, _ int, elapsed time.Duration, err error) {
	m.Stages.WithLabelValues(node.Name()).Observe(elapsed.Seconds())
	if err != nil {
		m.Errors.WithLabelValues(node.Name()).Inc()
	}
}
