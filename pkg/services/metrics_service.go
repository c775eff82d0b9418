package services

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// knownPaths はメトリクスのラベルとして許可するパスの固定セットです。
// これ以外のパスは /other に集約し、ラベルのカーディナリティを抑えます。
var knownPaths = map[string]bool{
	"/api/v1/predict":             true,
	"/api/v1/predict/batch":       true,
	"/api/v1/features":            true,
	"/api/v1/admin/reload-models": true,
	"/health":                     true,
	"/metrics":                    true,
	"/docs":                       true,
}

// MetricsService はプロセス存続期間のメトリクスを集計するサービスです。
// 専用のPrometheusレジストリを所有し、/metrics でテキスト形式を公開します。
type MetricsService struct {
	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.SummaryVec
	predictionsTotal   prometheus.Counter
	predictionDuration prometheus.Summary
	activeRequests     prometheus.Gauge

	startTime time.Time
}

// NewMetricsService 新しいメトリクスサービスを作成
func NewMetricsService() *MetricsService {
	s := &MetricsService{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	s.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Summary（objectives無し）は累積のsumとcountのみを公開する
	s.requestDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "http_request_duration_ms",
			Help: "HTTP request duration in milliseconds",
		},
		[]string{"method", "path"},
	)

	s.predictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "model_predictions_total",
			Help: "Total model predictions",
		},
	)

	s.predictionDuration = prometheus.NewSummary(
		prometheus.SummaryOpts{
			Name: "model_prediction_duration_ms",
			Help: "Model prediction duration in milliseconds",
		},
	)

	s.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_active",
			Help: "Current active HTTP requests",
		},
	)

	uptime := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "process_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(s.startTime).Seconds() },
	)

	s.registry.MustRegister(
		s.requestsTotal,
		s.requestDuration,
		s.predictionsTotal,
		s.predictionDuration,
		s.activeRequests,
		uptime,
	)

	return s
}

// RecordRequest はHTTPリクエスト1件の結果を記録します。
func (s *MetricsService) RecordRequest(method, path string, status int, latencyMs float64) {
	normalized := normalizePath(path)
	s.requestsTotal.WithLabelValues(method, normalized, strconv.Itoa(status)).Inc()
	s.requestDuration.WithLabelValues(method, normalized).Observe(latencyMs)
}

// RecordPrediction はモデル予測1件のレイテンシを記録します。
func (s *MetricsService) RecordPrediction(latencyMs float64) {
	s.predictionsTotal.Inc()
	s.predictionDuration.Observe(latencyMs)
}

// Middleware はリクエストメトリクスを収集するGinミドルウェアです。
// 実行中リクエスト数のゲージはエラー経路を含む全ての終了時に減算されます。
func (s *MetricsService) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// /metrics 自身は記録しない
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		s.activeRequests.Inc()
		start := time.Now()

		defer func() {
			s.activeRequests.Dec()
			latencyMs := float64(time.Since(start).Microseconds()) / 1000.0
			s.RecordRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), latencyMs)
		}()

		c.Next()
	}
}

// Handler は /metrics エンドポイント用のハンドラを返します。
func (s *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// normalizePath は未知のパスを /other に集約します。
func normalizePath(path string) string {
	if knownPaths[path] {
		return path
	}
	return "/other"
}
