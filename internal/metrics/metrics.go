// Package metrics регистрирует прометеус-метрики сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "splickets",
		Name:      "bookings_created_total",
		Help:      "Number of bookings created.",
	})

	PaymentIntentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "splickets",
		Name:      "payment_intents_created_total",
		Help:      "Number of payment intents created at the processor.",
	})

	SubscriptionSetups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splickets",
		Name:      "installment_subscription_setups_total",
		Help:      "Installment subscription setup attempts by result.",
	}, []string{"result"})

	ReferralCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "splickets",
		Name:      "referral_code_collisions_total",
		Help:      "Referral code insert attempts rejected by the uniqueness constraint.",
	})

	FlightSearchCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splickets",
		Name:      "flight_search_cache_total",
		Help:      "Flight search cache lookups by outcome.",
	}, []string{"outcome"})

	ReconciledPlans = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "splickets",
		Name:      "reconciled_payment_plans_total",
		Help:      "Payment plans re-queued by the reconciler.",
	})

	PaymentsAfterCancel = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "splickets",
		Name:      "payments_after_cancel_total",
		Help:      "Deposits that succeeded for an already cancelled booking.",
	})
)
