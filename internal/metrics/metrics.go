// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証操作の結果ラベル
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordAuth(operation, result string)
	RecordTokenRevoked()
	RecordCartMutation(operation string)
	RecordCartMergeSkipped(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	SetCartSubscribers(n int)
	RecordRevocationsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authTotal         *prometheus.CounterVec
	tokensRevoked     prometheus.Counter
	cartMutations     *prometheus.CounterVec
	cartMergeSkipped  prometheus.Counter
	httpStatus        *prometheus.CounterVec
	requestLatency    prometheus.Histogram
	cartSubscribers   prometheus.Gauge
	revocationsPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecofinds_auth_total",
			Help: "認証操作（login/register/logout）の結果別件数",
		}, []string{"operation", "result"}),
		tokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecofinds_tokens_revoked_total",
			Help: "ログアウトにより失効したトークンの合計数",
		}),
		cartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecofinds_cart_mutations_total",
			Help: "カート操作の種類別件数",
		}, []string{"operation"}),
		cartMergeSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecofinds_cart_merge_skipped_total",
			Help: "マージ時に存在しない商品としてスキップされた行数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecofinds_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecofinds_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cartSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecofinds_cart_subscribers",
			Help: "カート更新通知を購読中のWebSocket接続数",
		}),
		revocationsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecofinds_revocations_purged_total",
			Help: "cleanupジョブが削除した期限切れ失効レコードの合計数",
		}),
	}

	reg.MustRegister(
		c.authTotal,
		c.tokensRevoked,
		c.cartMutations,
		c.cartMergeSkipped,
		c.httpStatus,
		c.requestLatency,
		c.cartSubscribers,
		c.revocationsPurged,
	)

	return c
}

// RecordAuth は認証操作の結果を記録する。
func (c *Collector) RecordAuth(operation, result string) {
	c.authTotal.WithLabelValues(operation, result).Inc()
}

// RecordTokenRevoked はトークン失効を記録する。
func (c *Collector) RecordTokenRevoked() {
	c.tokensRevoked.Inc()
}

// RecordCartMutation はカート操作を記録する。
func (c *Collector) RecordCartMutation(operation string) {
	c.cartMutations.WithLabelValues(operation).Inc()
}

// RecordCartMergeSkipped はマージでスキップされた行数を記録する。
func (c *Collector) RecordCartMergeSkipped(count int) {
	c.cartMergeSkipped.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// SetCartSubscribers は購読中の接続数を設定する。
func (c *Collector) SetCartSubscribers(n int) {
	c.cartSubscribers.Set(float64(n))
}

// RecordRevocationsPurged は削除された失効レコード数を記録する。
func (c *Collector) RecordRevocationsPurged(count int64) {
	c.revocationsPurged.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクスを必要としないCLIやテストで使用する。
type NopCollector struct{}

func (NopCollector) RecordAuth(string, string)          {}
func (NopCollector) RecordTokenRevoked()                {}
func (NopCollector) RecordCartMutation(string)          {}
func (NopCollector) RecordCartMergeSkipped(int)         {}
func (NopCollector) RecordHTTPStatus(int)               {}
func (NopCollector) RecordRequestLatency(time.Duration) {}
func (NopCollector) SetCartSubscribers(int)             {}
func (NopCollector) RecordRevocationsPurged(int64)      {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
