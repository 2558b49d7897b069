package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "buynow"

var (
	once sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Count of backend API requests by operation and status class.",
		},
		[]string{"operation", "status"},
	)

	apiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Backend API request latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	apiCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_cache_total",
			Help:      "Read-through cache lookups by result.",
		},
		[]string{"result"},
	)

	tokenRefresh = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Count of access token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	likeToggle = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "like_toggle_total",
			Help:      "Count of like toggles by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	listingFetch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_fetch_total",
			Help:      "Count of store listing fetches by outcome.",
		},
		[]string{"outcome"},
	)

	reservationSubmit = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_submit_total",
			Help:      "Count of reservation submissions by status.",
		},
		[]string{"status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, apiDuration, apiCache, tokenRefresh,
			likeToggle, listingFetch, reservationSubmit)
	})
}

func ObserveRequest(operation, status string, d time.Duration) {
	apiRequests.WithLabelValues(operation, status).Inc()
	apiDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func IncCache(result string) {
	apiCache.WithLabelValues(result).Inc()
}

func IncTokenRefresh(outcome string) {
	tokenRefresh.WithLabelValues(outcome).Inc()
}

func IncLikeToggle(action, outcome string) {
	likeToggle.WithLabelValues(action, outcome).Inc()
}

func IncListingFetch(outcome string) {
	listingFetch.WithLabelValues(outcome).Inc()
}

func IncReservationSubmit(status string) {
	reservationSubmit.WithLabelValues(status).Inc()
}
