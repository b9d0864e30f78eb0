// Package metrics はPrometheusメトリクスの収集と公開を提供する。
// クライアント側のリクエスト統計とフィードキャッシュの状態を記録する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイ、フィードキャッシュ、コントローラから利用する。
type MetricsCollector interface {
	RecordRequest(operation string, result string)
	RecordRequestLatency(duration time.Duration)
	RecordReload(success bool)
	RecordStaleDiscard()
	SetFeedSize(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requestTotal   *prometheus.CounterVec
	requestLatency prometheus.Histogram
	reloadTotal    *prometheus.CounterVec
	staleDiscard   prometheus.Counter
	feedSize       prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picfeed_request_total",
			Help: "API操作別・結果別のリクエスト数",
		}, []string{"operation", "result"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "picfeed_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		reloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picfeed_reload_total",
			Help: "フィード再読み込みの結果別回数",
		}, []string{"result"}),
		staleDiscard: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picfeed_stale_discard_total",
			Help: "セッション変更により破棄された応答の合計数",
		}),
		feedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "picfeed_feed_size",
			Help: "キャッシュ中のフィード投稿数",
		}),
	}

	reg.MustRegister(
		c.requestTotal,
		c.requestLatency,
		c.reloadTotal,
		c.staleDiscard,
		c.feedSize,
	)

	return c
}

// RecordRequest はAPIリクエストの結果を記録する。
// resultには "ok" またはエラーコードを渡す。
func (c *Collector) RecordRequest(operation string, result string) {
	c.requestTotal.WithLabelValues(operation, result).Inc()
}

// RecordRequestLatency はAPIリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordReload はフィード再読み込みの結果を記録する。
func (c *Collector) RecordReload(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.reloadTotal.WithLabelValues(result).Inc()
}

// RecordStaleDiscard は破棄された応答を記録する。
func (c *Collector) RecordStaleDiscard() {
	c.staleDiscard.Inc()
}

// SetFeedSize はキャッシュ中の投稿数を記録する。
func (c *Collector) SetFeedSize(count int) {
	c.feedSize.Set(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを必要としない呼び出し元やテストで使用する。
type NopCollector struct{}

// RecordRequest は何もしない。
func (NopCollector) RecordRequest(operation string, result string) {}

// RecordRequestLatency は何もしない。
func (NopCollector) RecordRequestLatency(duration time.Duration) {}

// RecordReload は何もしない。
func (NopCollector) RecordReload(success bool) {}

// RecordStaleDiscard は何もしない。
func (NopCollector) RecordStaleDiscard() {}

// SetFeedSize は何もしない。
func (NopCollector) SetFeedSize(count int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// PICFEED_METRICS_ADDRが設定された場合のデバッグ用リスナーで使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
