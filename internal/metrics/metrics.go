// Package metrics exposes Prometheus counters for the dispatch core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreated counts bookings accepted from customers.
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickserve",
		Subsystem: "dispatch",
		Name:      "bookings_created_total",
		Help:      "Bookings created by customers.",
	})

	// OffersCreated counts offers written by the dispatcher.
	OffersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickserve",
		Subsystem: "dispatch",
		Name:      "offers_created_total",
		Help:      "Offers created for providers.",
	})

	// DispatchEmpty counts dispatch runs that found zero candidates.
	DispatchEmpty = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickserve",
		Subsystem: "dispatch",
		Name:      "dispatch_empty_total",
		Help:      "Dispatch attempts that produced no candidates.",
	})

	// FallbackActivations counts selector runs that fell back to all
	// available providers because no service-linked provider existed.
	FallbackActivations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickserve",
		Subsystem: "dispatch",
		Name:      "selector_fallback_total",
		Help:      "Candidate selector fallbacks to unlinked providers.",
	})

	// AcceptsWon counts accepts that won their booking.
	AcceptsWon = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickserve",
		Subsystem: "dispatch",
		Name:      "accepts_won_total",
		Help:      "Offer accepts that won the booking.",
	})

	// AcceptConflicts counts accepts rejected by a state conflict (already
	// assigned, expired, not pending, wrong owner).
	AcceptConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickserve",
		Subsystem: "dispatch",
		Name:      "accept_conflicts_total",
		Help:      "Offer accepts rejected due to a state conflict.",
	})

	// Declines counts successful offer declines.
	Declines = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickserve",
		Subsystem: "dispatch",
		Name:      "declines_total",
		Help:      "Offers declined by providers.",
	})

	// OffersExpired counts offers expired by sweep A or lazy expiry.
	OffersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickserve",
		Subsystem: "dispatch",
		Name:      "offers_expired_total",
		Help:      "Offers expired after their TTL.",
	})

	// Redispatches counts bookings re-dispatched by sweep B/D.
	Redispatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickserve",
		Subsystem: "dispatch",
		Name:      "redispatches_total",
		Help:      "Bookings re-dispatched by the reconciliation sweep.",
	})

	// NotifyRefreshes counts notifications re-fired by sweep C.
	NotifyRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickserve",
		Subsystem: "dispatch",
		Name:      "notify_refreshes_total",
		Help:      "Offer notifications re-fired by the reconciliation sweep.",
	})

	// PushFailures counts push notification sends that failed.
	PushFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quickserve",
		Subsystem: "notify",
		Name:      "push_failures_total",
		Help:      "Push notification sends that failed.",
	})
)
