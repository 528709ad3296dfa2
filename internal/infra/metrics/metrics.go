package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 在庫引当の結果ラベル
const (
	ResultCreated   = "created"
	ResultRejected  = "rejected"
	ResultReleased  = "released"
	ResultConverted = "converted"
	ResultExpired   = "expired"
)

// アプリのメトリクス一式（registryごとに作る）
type Metrics struct {
	Reservations     *prometheus.CounterVec
	SweepDuration    prometheus.Histogram
	SweepRuns        *prometheus.CounterVec
	OrderTransitions *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	BreakerState     *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Reservations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_reservations_total",
				Help: "Stock reservation outcomes",
			},
			[]string{"result"},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shop_sweep_duration_seconds",
				Help:    "Duration of reservation expiry sweeps",
				Buckets: prometheus.DefBuckets,
			},
		),
		SweepRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_sweep_runs_total",
				Help: "Reservation expiry sweep runs",
			},
			[]string{"result"},
		),
		OrderTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_order_transitions_total",
				Help: "Order status transitions",
			},
			[]string{"from", "to"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shop_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shop_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shop_event_breaker_state",
				Help: "Event publisher circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Reservations,
			m.SweepDuration,
			m.SweepRuns,
			m.OrderTransitions,
			m.HTTPRequests,
			m.HTTPDuration,
			m.BreakerState,
		)
	}
	return m
}

// テストやメトリクス不要の場面用（どこにも登録しない）
func NewNop() *Metrics {
	return New(nil)
}

func (m *Metrics) ReservationResult(result string, n int64) {
	if n <= 0 {
		return
	}
	m.Reservations.WithLabelValues(result).Add(float64(n))
}
