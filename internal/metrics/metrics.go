// Package metrics holds the Prometheus collectors of the sync subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Enqueued counts outbox records written, by subject and action.
	Enqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sync_enqueued_total",
		Help: "Total number of records appended to the sync queues",
	}, []string{"subject", "action"})

	// APIRequests counts polling API responses by endpoint and status code.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sync_api_requests_total",
		Help: "Total number of polling API requests",
	}, []string{"subject", "endpoint", "code"})

	// ExportedRecords counts records drained by the export tool.
	ExportedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sync_exported_records_total",
		Help: "Total number of records exported and marked sent",
	}, []string{"subject", "format"})

	// RelayMessages counts relay publish attempts; status is sent or failed.
	RelayMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_sync_relay_messages_total",
		Help: "Total number of records handled by the relay",
	}, []string{"subject", "status"})

	// PendingRecords is the queue backlog observed by the last relay pass.
	PendingRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storefront_sync_pending_records",
		Help: "Current number of pending records per sync queue",
	}, []string{"subject"})
)
