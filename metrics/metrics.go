// Package metrics exposes Prometheus metrics for inventory API calls and
// authentication activity.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-stockroom"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements inventory.Recorder and stockroom.ActivitySink.
type Collector struct {
	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	authEvents  *prometheus.CounterVec
	authState   *prometheus.GaugeVec
}

var authStates = []stockroom.AuthState{
	stockroom.AuthStateUnknown,
	stockroom.AuthStateRestoring,
	stockroom.AuthStateAuthenticating,
	stockroom.AuthStateAuthenticated,
	stockroom.AuthStateUnauthenticated,
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_api_requests_total",
			Help: "Inventory API requests by method and status code",
		}, []string{"method", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockroom_api_request_duration_seconds",
			Help:    "Inventory API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockroom_auth_events_total",
			Help: "Authentication activity events by type",
		}, []string{"event"}),
		authState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockroom_auth_state",
			Help: "Current authentication state, 1 for the active state",
		}, []string{"state"}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.authEvents,
		c.authState,
	)

	c.setState(stockroom.AuthStateUnknown)

	return c
}

// ObserveRequest records one inventory API call. Status 0 is reported as
// "error".
func (c *Collector) ObserveRequest(method, path string, status int, duration time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	c.apiRequests.WithLabelValues(method, code).Inc()
	c.apiLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// Record counts activity events and tracks the current auth state.
func (c *Collector) Record(_ context.Context, event stockroom.ActivityEvent) error {
	c.authEvents.WithLabelValues(string(event.EventType)).Inc()
	if event.EventType == stockroom.ActivityEventStateChanged && event.ToState != "" {
		c.setState(event.ToState)
	}
	return nil
}

func (c *Collector) setState(active stockroom.AuthState) {
	for _, state := range authStates {
		value := 0.0
		if state == active {
			value = 1
		}
		c.authState.WithLabelValues(string(state)).Set(value)
	}
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
