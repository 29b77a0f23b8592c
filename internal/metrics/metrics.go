package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	availabilityFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtbook",
			Name:      "availability_fetch_total",
			Help:      "Count of per-resource availability fetches by outcome.",
		},
		[]string{"outcome"},
	)

	availabilityDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "courtbook",
			Name:      "availability_resolve_seconds",
			Help:      "Time to resolve slots for all requested resources.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	staleResolutions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "courtbook",
			Name:      "availability_stale_discarded_total",
			Help:      "Count of slot resolutions discarded because a newer request superseded them.",
		},
	)

	bookingSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtbook",
			Name:      "booking_submitted_total",
			Help:      "Count of booking submits by result status.",
		},
		[]string{"status"},
	)

	paymentGuardBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtbook",
			Name:      "payment_guard_block_total",
			Help:      "Count of payment mode choices blocked by the wallet guard.",
		},
		[]string{"reason"},
	)

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtbook",
			Name:      "api_requests_total",
			Help:      "Count of collaborator API requests by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			availabilityFetches,
			availabilityDuration,
			staleResolutions,
			bookingSubmitted,
			paymentGuardBlocks,
			apiRequests,
		)
	})
}

func IncAvailabilityFetch(outcome string) {
	availabilityFetches.WithLabelValues(outcome).Inc()
}

func ObserveResolve(seconds float64) {
	availabilityDuration.Observe(seconds)
}

func IncStaleResolution() {
	staleResolutions.Inc()
}

func IncBookingSubmitted(status string) {
	bookingSubmitted.WithLabelValues(status).Inc()
}

func IncPaymentGuardBlock(reason string) {
	paymentGuardBlocks.WithLabelValues(reason).Inc()
}

func IncAPIRequest(endpoint, outcome string) {
	apiRequests.WithLabelValues(endpoint, outcome).Inc()
}
