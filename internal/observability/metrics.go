package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gps_provider_requests_total",
		Help: "Total vendor API calls issued, by provider and method",
	}, []string{"provider", "method"})

	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gps_provider_errors_total",
		Help: "Total failed vendor API calls, by provider and method",
	}, []string{"provider", "method"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gps_provider_request_seconds",
		Help:    "Vendor API call latency, by provider and method",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider", "method"})

	TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gps_trackimo_token_refreshes_total",
		Help: "Total Trackimo access token refresh attempts",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gps_http_requests_total",
		Help: "Total facade HTTP requests, by method, route and status",
	}, []string{"method", "route", "status"})
)

// ObserveProviderCall records one vendor API call outcome.
func ObserveProviderCall(provider, method string, start time.Time, err error) {
	ProviderRequests.WithLabelValues(provider, method).Inc()
	ProviderLatency.WithLabelValues(provider, method).Observe(time.Since(start).Seconds())
	if err != nil {
		ProviderErrors.WithLabelValues(provider, method).Inc()
	}
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
