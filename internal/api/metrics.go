package api

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const metricPrefix = "tradecal_"

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	indexDays prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "grpc_requests_total",
				Help: "Total CalendarService requests by method and status code",
			},
			[]string{"method", "code"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "grpc_request_duration_seconds",
				Help:    "CalendarService request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		indexDays: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_index_trading_days",
				Help: "Number of trading days in the active calendar index",
			},
		),
	}
	reg.MustRegister(m.requests, m.latency, m.indexDays)
	return m
}

// UnaryInterceptor records the count and latency of every unary call.
func (m *Metrics) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.latency.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}
}

// SetIndexDays records the size of the active index.
func (m *Metrics) SetIndexDays(n int) {
	m.indexDays.Set(float64(n))
}
