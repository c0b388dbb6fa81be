package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice client.
type Metrics struct {
	// Session metrics
	Connects               prometheus.Counter
	ConnectFailures        prometheus.Counter
	SpontaneousDisconnects prometheus.Counter
	SessionState           prometheus.Gauge
	Participants           prometheus.Gauge

	// Outbound clip metrics
	ClipsSent      prometheus.Counter
	ClipsDiscarded prometheus.Counter
	ClipBytes      prometheus.Histogram

	// Inbound clip metrics
	ClipsReceived  prometheus.Counter
	ClipsFiltered  prometheus.Counter
	PlaybackErrors prometheus.Counter

	// Microphone metrics
	VolumeLevel prometheus.Gauge
}

// NewMetrics creates and registers all metrics against the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connects: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_client_connects_total",
			Help: "Total number of room join attempts",
		}),
		ConnectFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_client_connect_failures_total",
			Help: "Total number of failed or timed out connection attempts",
		}),
		SpontaneousDisconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_client_spontaneous_disconnects_total",
			Help: "Total number of connections lost without user action",
		}),
		SessionState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voice_client_session_state",
			Help: "Session state as an ordinal: 0 disconnected, 1 connecting, 2 join pending, 3 in room",
		}),
		Participants: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voice_client_room_participants",
			Help: "Participant count of the current room",
		}),
		ClipsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_client_clips_sent_total",
			Help: "Total number of captured clips submitted for translation",
		}),
		ClipsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_client_clips_discarded_total",
			Help: "Total number of empty captures discarded without transmission",
		}),
		ClipBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_client_clip_bytes",
			Help:    "Size of submitted clips in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		ClipsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_client_clips_received_total",
			Help: "Total number of translated clips accepted for playback",
		}),
		ClipsFiltered: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_client_clips_filtered_total",
			Help: "Total number of translated clips dropped as addressed to another recipient",
		}),
		PlaybackErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_client_playback_errors_total",
			Help: "Total number of clips that failed to decode or play",
		}),
		VolumeLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voice_client_volume_level",
			Help: "Current microphone level on a 0-100 scale",
		}),
	}
}
