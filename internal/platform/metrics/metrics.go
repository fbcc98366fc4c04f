package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docrag"

// Metrics はアプリケーションの Prometheus コレクタを保持する。
// nil レシーバでも全メソッドを安全に呼び出せる
type Metrics struct {
	registry *prometheus.Registry

	documentsUploaded prometheus.Counter
	documentsIngested *prometheus.CounterVec
	chunksStored      prometheus.Counter
	embeddingRequests *prometheus.CounterVec
	searchDuration    prometheus.Histogram
}

// New は専用レジストリにコレクタを登録した Metrics を返す
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documentsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_uploaded_total",
			Help:      "Number of documents accepted for ingestion.",
		}),
		documentsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Number of finished ingestion runs by outcome.",
		}, []string{"outcome"}),
		chunksStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_stored_total",
			Help:      "Number of chunk records written.",
		}),
		embeddingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Number of embedding provider calls by outcome.",
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Latency of the search and answer path.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.documentsUploaded,
		m.documentsIngested,
		m.chunksStored,
		m.embeddingRequests,
		m.searchDuration,
	)
	return m
}

// Handler は /metrics 用の HTTP ハンドラを返す
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry はテスト用にレジストリを返す
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) DocumentUploaded() {
	if m == nil {
		return
	}
	m.documentsUploaded.Inc()
}

func (m *Metrics) IngestionFinished(outcome string) {
	if m == nil {
		return
	}
	m.documentsIngested.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ChunksStored(n int) {
	if m == nil {
		return
	}
	m.chunksStored.Add(float64(n))
}

func (m *Metrics) EmbeddingRequest(outcome string) {
	if m == nil {
		return
	}
	m.embeddingRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SearchObserved(d time.Duration) {
	if m == nil {
		return
	}
	m.searchDuration.Observe(d.Seconds())
}
