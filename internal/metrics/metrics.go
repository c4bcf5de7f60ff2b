// Package metrics exposes Prometheus counters for the lending workflow and
// the HTTP surface.
//
// Services depend on the Recorder interface, not on Prometheus, so tests and
// the CLI can pass Nop{} and never touch a registry.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels shared by the outcome counters.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected" // refused by a business rule (not available, bad password...)
	ResultError    = "error"    // storage or other internal failure
)

// Recorder is what the services and middleware report to.
type Recorder interface {
	RecordBorrow(result string)
	RecordReturn(result string)
	RecordLogin(result string)
	RecordHTTPStatus(statusCode int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	borrows    *prometheus.CounterVec
	returns    *prometheus.CounterVec
	logins     *prometheus.CounterVec
	httpStatus *prometheus.CounterVec
}

// NewCollector creates the counters and registers them on reg. Pass a fresh
// prometheus.NewRegistry() per server so tests never collide on the global
// default registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		borrows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elibrary_borrow_total",
			Help: "Borrow attempts by result.",
		}, []string{"result"}),
		returns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elibrary_return_total",
			Help: "Return attempts by result.",
		}, []string{"result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elibrary_login_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "elibrary_http_responses_total",
			Help: "HTTP responses by status code.",
		}, []string{"status"}),
	}

	reg.MustRegister(c.borrows, c.returns, c.logins, c.httpStatus)
	return c
}

func (c *Collector) RecordBorrow(result string) { c.borrows.WithLabelValues(result).Inc() }
func (c *Collector) RecordReturn(result string) { c.returns.WithLabelValues(result).Inc() }
func (c *Collector) RecordLogin(result string)  { c.logins.WithLabelValues(result).Inc() }

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordBorrow(string)  {}
func (Nop) RecordReturn(string)  {}
func (Nop) RecordLogin(string)   {}
func (Nop) RecordHTTPStatus(int) {}

// Handler serves the gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
