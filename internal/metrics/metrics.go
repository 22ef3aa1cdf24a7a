package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "privatechat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "privatechat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "privatechat_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	JoinsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "privatechat_joins_total",
			Help: "Total join attempts",
		},
		[]string{"outcome"}, // "ok", "bad_password", "archived", "full", "not_found"
	)

	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "privatechat_messages_total",
			Help: "Total messages appended",
		},
		[]string{"kind"}, // "text" or "media"
	)

	MediaUploads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "privatechat_media_uploads_total",
			Help: "Total media uploads",
		},
	)

	ArchivesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "privatechat_archives_total",
			Help: "Total room archival runs",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	// Lifecycle gauges
	LiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "privatechat_live_rooms",
			Help: "Rooms currently registered in the live registry",
		},
	)

	ConnectedParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "privatechat_connected_participants",
			Help: "Participants currently connected across all rooms",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "privatechat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
