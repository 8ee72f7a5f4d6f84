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
// サービス層、付与ヘルパー、リアルタイム配信から利用する。
type MetricsCollector interface {
	RecordAward(source string, points int)
	RecordAwardFailure(reason string)
	RecordIdentityLookup(success bool)
	RecordToolCall(tool string, outcome string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordPollutionRefresh(success bool)
	WebsocketOpened()
	WebsocketClosed()
}

// 付与失敗・ツール呼び出し結果のラベル値。
const (
	OutcomeSuccess       = "success"
	OutcomeUpstreamError = "upstream_error"
	OutcomeTransportErr  = "transport_error"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	awards           *prometheus.CounterVec
	awardedPoints    prometheus.Counter
	awardFailures    *prometheus.CounterVec
	identityLookups  *prometheus.CounterVec
	toolCalls        *prometheus.CounterVec
	toolLatency      *prometheus.HistogramVec
	httpStatus       *prometheus.CounterVec
	pollutionRefresh *prometheus.CounterVec
	websockets       prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		awards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecopoints_awards_total",
			Help: "ポイント付与の成功数（経路別）",
		}, []string{"source"}),
		awardedPoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecopoints_awarded_points_total",
			Help: "付与されたポイントの合計",
		}),
		awardFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecopoints_award_failures_total",
			Help: "バックグラウンド付与の失敗数",
		}, []string{"reason"}),
		identityLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecopoints_identity_lookups_total",
			Help: "IDプロバイダーへのプロフィール一括取得の結果別件数",
		}, []string{"result"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecopoints_tool_calls_total",
			Help: "推論サービスへのツール呼び出し数",
		}, []string{"tool", "outcome"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ecopoints_tool_latency_seconds",
			Help:    "推論サービス呼び出しのレイテンシ（秒）",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"tool"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecopoints_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		pollutionRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecopoints_pollution_refresh_total",
			Help: "観測局データ更新の結果別件数",
		}, []string{"result"}),
		websockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ecopoints_websocket_sessions",
			Help: "接続中のWebSocketセッション数",
		}),
	}

	reg.MustRegister(
		c.awards,
		c.awardedPoints,
		c.awardFailures,
		c.identityLookups,
		c.toolCalls,
		c.toolLatency,
		c.httpStatus,
		c.pollutionRefresh,
		c.websockets,
	)

	return c
}

// RecordAward はポイント付与の成功を記録する。
func (c *Collector) RecordAward(source string, points int) {
	c.awards.WithLabelValues(source).Inc()
	c.awardedPoints.Add(float64(points))
}

// RecordAwardFailure はバックグラウンド付与の失敗を記録する。
func (c *Collector) RecordAwardFailure(reason string) {
	c.awardFailures.WithLabelValues(reason).Inc()
}

// RecordIdentityLookup はプロフィール一括取得の結果を記録する。
func (c *Collector) RecordIdentityLookup(success bool) {
	c.identityLookups.WithLabelValues(resultLabel(success)).Inc()
}

// RecordToolCall はツール呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordToolCall(tool string, outcome string, duration time.Duration) {
	c.toolCalls.WithLabelValues(tool, outcome).Inc()
	c.toolLatency.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPollutionRefresh は観測局データ更新の結果を記録する。
func (c *Collector) RecordPollutionRefresh(success bool) {
	c.pollutionRefresh.WithLabelValues(resultLabel(success)).Inc()
}

// WebsocketOpened はWebSocketセッションの開始を記録する。
func (c *Collector) WebsocketOpened() { c.websockets.Inc() }

// WebsocketClosed はWebSocketセッションの終了を記録する。
func (c *Collector) WebsocketClosed() { c.websockets.Dec() }

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordAward(string, int)                      {}
func (NopCollector) RecordAwardFailure(string)                    {}
func (NopCollector) RecordIdentityLookup(bool)                    {}
func (NopCollector) RecordToolCall(string, string, time.Duration) {}
func (NopCollector) RecordHTTPStatus(int)                         {}
func (NopCollector) RecordPollutionRefresh(bool)                  {}
func (NopCollector) WebsocketOpened()                             {}
func (NopCollector) WebsocketClosed()                             {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
