// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、ハンドラー、バッチジョブから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordBookmarkCreated()
	RecordGenreCreated()
	RecordBookmarksImported(count int)
	RecordHatebuUpdated(count int)
	RecordHatebuAPIFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus        *prometheus.CounterVec
	requestLatency    prometheus.Histogram
	bookmarksCreated  prometheus.Counter
	genresCreated     prometheus.Counter
	bookmarksImported prometheus.Counter
	hatebuUpdated     prometheus.Counter
	hatebuAPIFailures prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shiori_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shiori_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		bookmarksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiori_bookmarks_created_total",
			Help: "作成されたブックマークの合計数",
		}),
		genresCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiori_genres_created_total",
			Help: "作成されたジャンルの合計数",
		}),
		bookmarksImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiori_bookmarks_imported_total",
			Help: "フィードインポートで作成されたブックマークの合計数",
		}),
		hatebuUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiori_hatebu_updated_total",
			Help: "はてなブックマーク数を更新したブックマークの合計数",
		}),
		hatebuAPIFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiori_hatebu_api_failures_total",
			Help: "はてなブックマークAPI呼び出し失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.bookmarksCreated,
		c.genresCreated,
		c.bookmarksImported,
		c.hatebuUpdated,
		c.hatebuAPIFailures,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordBookmarkCreated はブックマーク作成を記録する。
func (c *Collector) RecordBookmarkCreated() {
	c.bookmarksCreated.Inc()
}

// RecordGenreCreated はジャンル作成を記録する。
func (c *Collector) RecordGenreCreated() {
	c.genresCreated.Inc()
}

// RecordBookmarksImported はインポートで作成されたブックマーク数を記録する。
func (c *Collector) RecordBookmarksImported(count int) {
	c.bookmarksImported.Add(float64(count))
}

// RecordHatebuUpdated ははてブ数を更新したブックマーク数を記録する。
func (c *Collector) RecordHatebuUpdated(count int) {
	c.hatebuUpdated.Add(float64(count))
}

// RecordHatebuAPIFailure ははてなブックマークAPIの呼び出し失敗を記録する。
func (c *Collector) RecordHatebuAPIFailure() {
	c.hatebuAPIFailures.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
