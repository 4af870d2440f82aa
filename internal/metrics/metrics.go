package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VerifyDuration tracks the latency of ticket verification requests
	VerifyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "ticket_verify_duration_seconds",
			Help: "Duration of ticket verification requests in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
				5.0,   // 5s
			},
		},
		[]string{"status"}, // VALID, ALREADY_USED, EXPIRED, NOT_FOUND, error
	)

	// TicketsIssued counts tickets stored through the issuance endpoint
	TicketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Total number of tickets issued",
		},
		[]string{"status"}, // success or failure
	)
)

// RecordVerifyDuration records the duration of a verification request
func RecordVerifyDuration(status string, duration float64) {
	VerifyDuration.WithLabelValues(status).Observe(duration)
}

// RecordTicketIssued counts one issuance attempt by result
func RecordTicketIssued(status string) {
	TicketsIssued.WithLabelValues(status).Inc()
}
