// Package monitor defines the Prometheus collectors exposed by the relief services on /metrics.
package monitor

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Results used to label recorded donations.
const (
	Recorded  = "recorded"
	Skipped   = "skipped" // campaign not found
	Duplicate = "duplicate"
	Failed    = "failed"
)

//nolint:gochecknoglobals // collectors are registered once per process
var (
	DonationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relief_donations_recorded_total",
		Help: "Donations handed to the ledger, by result.",
	}, []string{"result"})

	DonationAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relief_donation_display_amount_total",
		Help: "Sum of recorded donations in display currency.",
	})

	CampaignsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relief_campaigns_created_total",
		Help: "Campaigns created through the ledger.",
	})

	DegradedReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relief_chain_degraded_reads_total",
		Help: "Chain reads that failed and were reported as zero.",
	}, []string{"net"})

	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relief_feed_subscribers",
		Help: "Live campaign feed subscribers.",
	})

	Reconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relief_donations_reconciled_total",
		Help: "Donation transactions settled on chain, by status.",
	}, []string{"net", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency distributions.",
		Buckets: []float64{0.1, 0.3, 0.5, 1.0, 2.0, 5.0},
	}, []string{"method", "path"})
)

// statusWriter records the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades go through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("monitor: response writer cannot be hijacked")
	}

	return h.Hijack()
}

// Middleware counts requests and observes their latency labelled by the route template, so /campaigns/{id} is
// a single series. Requests that matched no route are not recorded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: rw, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := mux.CurrentRoute(r)
		if route == nil {
			return
		}

		path, err := route.GetPathTemplate()
		if err != nil {
			return
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
