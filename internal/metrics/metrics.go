// Package metrics holds the Prometheus collectors for ingestion runs and the
// read API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

type Registry struct {
	reg *prometheus.Registry

	Fetched        prometheus.Counter
	Rejected       prometheus.Counter
	Duplicates     prometheus.Counter
	Orders         prometheus.Counter
	Products       prometheus.Counter
	ReusedProducts prometheus.Counter
	OrderProducts  prometheus.Counter
	RunsFailed     prometheus.Counter
	RunDurationSec prometheus.Histogram

	HTTPRequests    *prometheus.CounterVec
	HTTPDurationSec *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	fetched := prometheus.NewCounter(prometheus.CounterOpts{Name: "lastclick_records_fetched_total"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "lastclick_records_rejected_total"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{Name: "lastclick_orders_duplicate_total"})
	orders := prometheus.NewCounter(prometheus.CounterOpts{Name: "lastclick_orders_persisted_total"})
	products := prometheus.NewCounter(prometheus.CounterOpts{Name: "lastclick_products_persisted_total"})
	reused := prometheus.NewCounter(prometheus.CounterOpts{Name: "lastclick_products_reused_total"})
	orderProducts := prometheus.NewCounter(prometheus.CounterOpts{Name: "lastclick_order_products_persisted_total"})
	runsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "lastclick_runs_failed_total"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lastclick_run_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lastclick_http_requests_total",
	}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lastclick_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	r.MustRegister(fetched, rejected, duplicates, orders, products, reused, orderProducts, runsFailed, runDuration)
	r.MustRegister(httpRequests, httpDuration)
	return &Registry{
		reg:            r,
		Fetched:        fetched,
		Rejected:       rejected,
		Duplicates:     duplicates,
		Orders:         orders,
		Products:       products,
		ReusedProducts: reused,
		OrderProducts:  orderProducts,
		RunsFailed:     runsFailed,
		RunDurationSec: runDuration,

		HTTPRequests:    httpRequests,
		HTTPDurationSec: httpDuration,
	}
}

// RegisterRuntime adds the Go runtime and process collectors. Long-running
// commands call it; a one-shot import does not push them.
func (r *Registry) RegisterRuntime() {
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveRequest records one served HTTP request. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (r *Registry) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPDurationSec.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Push sends the current values to a Prometheus Pushgateway under job.
func (r *Registry) Push(url, job string) error {
	return push.New(url, job).Gatherer(r.reg).Push()
}
