package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions prometheus.Gauge
	sessionsTotal  *prometheus.CounterVec
	sessionsSwept  prometheus.Counter
	turnsTotal     *prometheus.CounterVec

	contextBuildDuration *prometheus.HistogramVec
	retrievalDuration    prometheus.Histogram

	answerDuration *prometheus.HistogramVec
	answerErrors   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current active session count.",
				},
			),
			sessionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sessions_total",
					Help: "Total sessions created by artifact kind.",
				},
				[]string{"kind"},
			),
			sessionsSwept: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_swept_total",
					Help: "Total sessions reclaimed by TTL sweep.",
				},
			),
			turnsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "turns_total",
					Help: "Total conversation turns by status.",
				},
				[]string{"status"},
			),
			contextBuildDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "context_build_duration_seconds",
					Help:    "Context build duration in seconds by artifact kind.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"kind"},
			),
			retrievalDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "retrieval_duration_seconds",
					Help:    "Chunk retrieval duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			answerDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "answer_duration_seconds",
					Help:    "Answer pipeline duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			answerErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "answer_errors_total",
					Help: "Total answer pipeline errors by stage.",
				},
				[]string{"stage"},
			),
			httpRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total HTTP requests by path and status code.",
				},
				[]string{"path", "code"},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionsTotal,
			m.sessionsSwept,
			m.turnsTotal,
			m.contextBuildDuration,
			m.retrievalDuration,
			m.answerDuration,
			m.answerErrors,
			m.httpRequests,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionCreated(kind string) {
	getMetrics().sessionsTotal.WithLabelValues(kind).Inc()
}

func RecordSessionsSwept(count int) {
	getMetrics().sessionsSwept.Add(float64(count))
}

func RecordTurn(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().turnsTotal.WithLabelValues(status).Inc()
}

func RecordContextBuild(kind string, duration time.Duration) {
	getMetrics().contextBuildDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordRetrieval(duration time.Duration) {
	getMetrics().retrievalDuration.Observe(duration.Seconds())
}

func RecordAnswer(provider string, duration time.Duration) {
	getMetrics().answerDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordAnswerError(stage string) {
	getMetrics().answerErrors.WithLabelValues(stage).Inc()
}

func RecordHTTPRequest(path string, code int) {
	getMetrics().httpRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
}
