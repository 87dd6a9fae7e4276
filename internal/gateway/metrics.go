package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome は /query の1リクエストが到達した終端状態。
type Outcome string

const (
	// OutcomeRejected は認証で拒否されたことを表す。
	OutcomeRejected Outcome = "rejected"
	// OutcomeInvalid はリクエストボディが不正だったことを表す。
	OutcomeInvalid Outcome = "invalid"
	// OutcomeSucceeded はハンドラーの応答を返せたことを表す。
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed はハンドラーの呼び出しか応答のパースに失敗したことを表す。
	OutcomeFailed Outcome = "failed"
)

// Metrics はgatewayのPrometheusメトリクス。
// グローバルなレジストリは使わず、サーバーごとに独立したレジストリを持つ。
type Metrics struct {
	Registry *prometheus.Registry

	QueryRequestsTotal *prometheus.CounterVec
	HandlerDuration    prometheus.Histogram
}

// NewMetrics はメトリクスを生成して専用レジストリに登録する。
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		QueryRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcpgateway",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total /query requests by outcome.",
		}, []string{"outcome"}),

		HandlerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mcpgateway",
			Subsystem: "handler",
			Name:      "duration_seconds",
			Help:      "External handler call duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
	}

	reg.MustRegister(m.QueryRequestsTotal, m.HandlerDuration)
	return m
}

// observeOutcome は終端状態を1件数える。
func (m *Metrics) observeOutcome(o Outcome) {
	m.QueryRequestsTotal.WithLabelValues(string(o)).Inc()
}

// observeHandler はハンドラー呼び出しの所要時間を記録する。
func (m *Metrics) observeHandler(start time.Time) {
	m.HandlerDuration.Observe(time.Since(start).Seconds())
}
