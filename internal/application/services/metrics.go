package services

import "github.com/prometheus/client_golang/prometheus"

const (
	eventStaged           = "staged"
	eventConflict         = "conflict"
	eventConfirmed        = "confirmed"
	eventConfirmNotFound  = "confirm_not_found"
	eventAlreadyConfirmed = "already_confirmed"
	eventResent           = "resent"
	eventResendNotFound   = "resend_not_found"
	eventEmailSent        = "email_sent"
	eventEmailFailed      = "email_failed"
	eventSweptExpired     = "swept_expired"
)

var verificationEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "verification_events_total",
		Help: "Signup verification state machine events",
	},
	[]string{"event"},
)

func init() {
	prometheus.MustRegister(verificationEvents)
}

func recordEvent(event string) {
	verificationEvents.WithLabelValues(event).Inc()
}

func recordEvents(event string, n int64) {
	verificationEvents.WithLabelValues(event).Add(float64(n))
}
