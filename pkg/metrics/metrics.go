package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

// NewServerMetrics registers on reg; a nil reg means the default registry.
func NewServerMetrics(service string, reg prometheus.Registerer) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "phoneshop",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "phoneshop",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

func (m *ServerMetrics) Observe(handler string, status int, start time.Time) {
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
}

// WorkflowMetrics count order workflow outcomes.
type WorkflowMetrics struct {
	OrdersCreated   prometheus.Counter
	OrdersCancelled prometheus.Counter
	StatusChanges   *prometheus.CounterVec
	StockRejections prometheus.Counter
	Compensations   *prometheus.CounterVec
	OutboxPublished prometheus.Counter
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phoneshop", Subsystem: "orders", Name: "created_total",
			Help: "Orders created.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phoneshop", Subsystem: "orders", Name: "cancelled_total",
			Help: "Orders cancelled.",
		}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phoneshop", Subsystem: "orders", Name: "status_changes_total",
			Help: "Order status changes by target status.",
		}, []string{"status"}),
		StockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phoneshop", Subsystem: "orders", Name: "stock_rejections_total",
			Help: "Order attempts rejected for insufficient stock.",
		}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phoneshop", Subsystem: "saga", Name: "compensations_total",
			Help: "Saga steps compensated, by step.",
		}, []string{"step"}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "phoneshop", Subsystem: "outbox", Name: "published_total",
			Help: "Outbox records published to kafka.",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.OrdersCreated, m.OrdersCancelled, m.StatusChanges, m.StockRejections, m.Compensations, m.OutboxPublished)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
