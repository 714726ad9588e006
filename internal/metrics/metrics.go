package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReconciled counts reconciliation events by source and result.
	EventsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zenobundle_events_reconciled_total",
		Help: "Reconciliation events processed, by source and outcome.",
	}, []string{"source", "outcome"})

	// VoucherClaims counts allocation attempts by result.
	VoucherClaims = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zenobundle_voucher_claims_total",
		Help: "Voucher allocation attempts, by result.",
	}, []string{"result"})
)
