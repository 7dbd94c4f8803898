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
// サービス層、HTTPミドルウェア、Botから利用する。
type MetricsCollector interface {
	RecordWarnCreated(identifierCount int)
	RecordWarnDeleted()
	RecordSearch(resultCount int)
	RecordWarnIDConflict()
	RecordHTTPStatus(statusCode int)
	RecordBotCommand(command string, outcome string, duration time.Duration)
}

// Bot コマンドの結果ラベル
const (
	OutcomeOK          = "ok"
	OutcomeUserError   = "user_error"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	warnsCreated    prometheus.Counter
	warnsDeleted    prometheus.Counter
	identifiers     prometheus.Histogram
	searches        prometheus.Counter
	searchResults   prometheus.Histogram
	warnIDConflicts prometheus.Counter
	httpStatus      *prometheus.CounterVec
	botCommands     *prometheus.CounterVec
	botLatency      *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		warnsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warnman_warns_created_total",
			Help: "作成された警告記録の合計数",
		}),
		warnsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warnman_warns_deleted_total",
			Help: "削除された警告記録の合計数",
		}),
		identifiers: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warnman_warn_identifiers",
			Help:    "警告記録1件あたりの識別子数",
			Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
		}),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warnman_searches_total",
			Help: "検索実行の合計数",
		}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "warnman_search_results",
			Help:    "検索1回あたりのヒット件数",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		warnIDConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warnman_warn_id_conflicts_total",
			Help: "挿入時のwarn_id衝突の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warnman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		botCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warnman_bot_commands_total",
			Help: "Botコマンドの実行数",
		}, []string{"command", "outcome"}),
		botLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warnman_bot_command_seconds",
			Help:    "Botコマンドの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
	}

	reg.MustRegister(
		c.warnsCreated,
		c.warnsDeleted,
		c.identifiers,
		c.searches,
		c.searchResults,
		c.warnIDConflicts,
		c.httpStatus,
		c.botCommands,
		c.botLatency,
	)

	return c
}

// RecordWarnCreated は警告記録の作成を記録する。
func (c *Collector) RecordWarnCreated(identifierCount int) {
	c.warnsCreated.Inc()
	c.identifiers.Observe(float64(identifierCount))
}

// RecordWarnDeleted は警告記録の削除を記録する。
func (c *Collector) RecordWarnDeleted() {
	c.warnsDeleted.Inc()
}

// RecordSearch は検索とそのヒット件数を記録する。
func (c *Collector) RecordSearch(resultCount int) {
	c.searches.Inc()
	c.searchResults.Observe(float64(resultCount))
}

// RecordWarnIDConflict はwarn_id衝突を記録する。
func (c *Collector) RecordWarnIDConflict() {
	c.warnIDConflicts.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBotCommand はBotコマンドの結果と処理時間を記録する。
func (c *Collector) RecordBotCommand(command string, outcome string, duration time.Duration) {
	c.botCommands.WithLabelValues(command, outcome).Inc()
	c.botLatency.WithLabelValues(command).Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。メトリクス不要な構成やテストで使用する。
type Nop struct{}

func (Nop) RecordWarnCreated(int) {}
func (Nop) RecordWarnDeleted() {}
func (Nop) RecordSearch(int) {}
func (Nop) RecordWarnIDConflict() {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordBotCommand(string, string, time.Duration) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
