package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotwise",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created.",
		},
	)

	reservationRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotwise",
			Name:      "reservation_rejected_total",
			Help:      "Count of reservation rejections by reason.",
		},
		[]string{"reason"},
	)

	guardDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotwise",
			Name:      "guard_decision_total",
			Help:      "Count of configuration guard decisions.",
		},
		[]string{"decision"},
	)

	otpVerification = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotwise",
			Name:      "otp_verification_total",
			Help:      "Count of OTP verification attempts by status.",
		},
		[]string{"status"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotwise",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationCreated, reservationRejected, guardDecision, otpVerification, httpRequests)
	})
}

func IncReservationCreated() {
	reservationCreated.Inc()
}

func IncReservationRejected(reason string) {
	reservationRejected.WithLabelValues(reason).Inc()
}

func IncGuardDecision(decision string) {
	guardDecision.WithLabelValues(decision).Inc()
}

func IncOTPVerification(status string) {
	otpVerification.WithLabelValues(status).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
