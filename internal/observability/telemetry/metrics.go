package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Business metrics
	TicketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdv_tickets_created_total",
		Help: "Tickets persisted locally at checkout",
	})

	TicketsSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdv_tickets_synced_total",
		Help: "Ticket sync attempts by outcome",
	}, []string{"outcome"})

	TerminalPayments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdv_terminal_payments_total",
		Help: "Card terminal transactions by final status",
	}, []string{"status"})

	TerminalPollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdv_terminal_poll_seconds",
		Help:    "Time from initiate to terminal status",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// Infrastructure metrics
	MeshClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pdv_mesh_clients",
		Help: "Registered mesh clients by role",
	}, []string{"role"})

	MeshMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdv_mesh_messages_total",
		Help: "Mesh messages by type and direction",
	}, []string{"message_type", "direction"})

	SyncPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdv_sync_pass_seconds",
		Help:    "Duration of one full sync pass",
		Buckets: prometheus.DefBuckets,
	})
)
