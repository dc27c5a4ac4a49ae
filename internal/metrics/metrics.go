package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldbook",
		Name:      "bookings_created_total",
		Help:      "Bookings successfully created.",
	})

	bookingsCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldbook",
		Name:      "bookings_cancelled_total",
		Help:      "Bookings soft-cancelled.",
	})

	slotConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldbook",
		Name:      "slot_conflicts_total",
		Help:      "Create/update attempts rejected because the slot overlaps.",
	})

	notifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldbook",
		Name:      "notify_failures_total",
		Help:      "Outbound notifications that failed (non-fatal).",
	})
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingsCreated, bookingsCancelled, slotConflicts, notifyFailures)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBookingCreated()   { bookingsCreated.Inc() }
func IncBookingCancelled() { bookingsCancelled.Inc() }
func IncSlotConflict()     { slotConflicts.Inc() }
func IncNotifyFailure()    { notifyFailures.Inc() }
