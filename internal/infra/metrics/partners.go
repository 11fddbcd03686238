package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		partnersRegisteredTotal,
		customersOnboardedTotal,
		credentialChecksTotal,
	)
}

var (
	partnersRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "partners_registered_total",
			Help: "Partners registered since process start.",
		},
	)

	customersOnboardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "customers_onboarded_total",
			Help: "Durable customer rows created, by partner name.",
		},
		[]string{"partner"},
	)

	credentialChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_checks_total",
			Help: "Partner credential validations by outcome (ok/mismatch/miss).",
		},
		[]string{"outcome"},
	)
)

func IncPartnerRegistered() { partnersRegisteredTotal.Inc() }

func IncCustomerOnboarded(partner string) {
	customersOnboardedTotal.WithLabelValues(norm(partner)).Inc()
}

func IncCredentialCheck(outcome string) {
	credentialChecksTotal.WithLabelValues(norm(outcome)).Inc()
}
