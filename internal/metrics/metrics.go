package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_messages_sent_total",
		Help: "Messages accepted by the send pipeline.",
	})
	EventsDrained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_outbox_events_drained_total",
		Help: "Outbox events published to the exchange.",
	})
	EventsFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_moderation_flags_total",
		Help: "Messages flagged by the burst detector.",
	})
	RetentionRedacted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_retention_messages_redacted_total",
		Help: "Messages redacted by retention runs.",
	})
	RetentionAttachmentsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_retention_attachments_deleted_total",
		Help: "Attachments deleted by retention runs.",
	})
)

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
