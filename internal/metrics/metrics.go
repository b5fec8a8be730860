// Package metrics exposes Prometheus counters for authentication and
// access control.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login results.
const (
	LoginSuccess    = "success"
	LoginRejected   = "rejected"
	LoginBadRequest = "bad_request"
	LoginError      = "error"
)

var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "user_service_login_attempts_total",
		Help: "Total number of login attempts by result",
	}, []string{"result"})

	accessDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "user_service_access_denied_total",
		Help: "Total number of requests denied by the access pipeline",
	}, []string{"stage", "reason"})

	tokenRenewals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "user_service_token_renewals_total",
		Help: "Total number of session tokens renewed on authenticated requests",
	})
)

func RecordLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

func RecordDenial(stage, reason string) {
	accessDenials.WithLabelValues(stage, reason).Inc()
}

func RecordRenewal() {
	tokenRenewals.Inc()
}
