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
// シリアライザ、HTTPミドルウェア、インポーターから利用する。
type MetricsCollector interface {
	RecordSerialization(format string, entries int, duration time.Duration)
	RecordSerializationFailure(format string)
	RecordRenderFallback(reason string)
	RecordHTTPStatus(statusCode int)
	RecordTiddlersImported(count int)
	RecordImportFailure(reason string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	serializations   *prometheus.CounterVec
	serializeFail    *prometheus.CounterVec
	entriesWritten   prometheus.Counter
	serializeLatency *prometheus.HistogramVec
	renderFallbacks  *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	tiddlersImported prometheus.Counter
	importFail       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		serializations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiddlyfeed_serializations_total",
			Help: "形式別のシリアライズ成功数",
		}, []string{"format"}),
		serializeFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiddlyfeed_serialization_fail_total",
			Help: "形式別のシリアライズ失敗数",
		}, []string{"format"}),
		entriesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tiddlyfeed_entries_written_total",
			Help: "出力したフィードエントリの合計数",
		}),
		serializeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tiddlyfeed_serialization_latency_seconds",
			Help:    "シリアライズのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"format"}),
		renderFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiddlyfeed_render_fallback_total",
			Help: "理由別の本文フォールバック数",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiddlyfeed_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		tiddlersImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tiddlyfeed_tiddlers_imported_total",
			Help: "インポートしたティドラーの合計数",
		}),
		importFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tiddlyfeed_import_fail_total",
			Help: "理由別のインポート失敗数",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.serializations,
		c.serializeFail,
		c.entriesWritten,
		c.serializeLatency,
		c.renderFallbacks,
		c.httpStatus,
		c.tiddlersImported,
		c.importFail,
	)

	return c
}

// RecordSerialization はシリアライズ成功と出力エントリ数、レイテンシを記録する。
func (c *Collector) RecordSerialization(format string, entries int, duration time.Duration) {
	c.serializations.WithLabelValues(format).Inc()
	c.entriesWritten.Add(float64(entries))
	c.serializeLatency.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordSerializationFailure はシリアライズ失敗を記録する。
func (c *Collector) RecordSerializationFailure(format string) {
	c.serializeFail.WithLabelValues(format).Inc()
}

// RecordRenderFallback は本文のフォールバック発生を記録する。
func (c *Collector) RecordRenderFallback(reason string) {
	c.renderFallbacks.WithLabelValues(reason).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTiddlersImported はインポートしたティドラー数を記録する。
func (c *Collector) RecordTiddlersImported(count int) {
	c.tiddlersImported.Add(float64(count))
}

// RecordImportFailure はインポート失敗を記録する。
func (c *Collector) RecordImportFailure(reason string) {
	c.importFail.WithLabelValues(reason).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
