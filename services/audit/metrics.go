package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medrecords",
		Subsystem: "audit",
		Name:      "entries_total",
		Help:      "Audit entries appended, by table and action.",
	}, []string{"table", "action"})

	editsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "medrecords",
		Subsystem: "audit",
		Name:      "edits_rejected_total",
		Help:      "Governed edits rejected before or during the audited transaction.",
	}, []string{"reason"})

	outboxPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medrecords",
		Subsystem: "audit",
		Name:      "outbox_published_total",
		Help:      "Audit events relayed from the outbox to the bus.",
	})

	outboxFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "medrecords",
		Subsystem: "audit",
		Name:      "outbox_failures_total",
		Help:      "Audit events that failed to publish and will be retried.",
	})
)
