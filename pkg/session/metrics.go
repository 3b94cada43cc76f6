package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsEnded    *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	StateTransitions *prometheus.CounterVec
	ChunksSent       prometheus.Counter
	ChunksDropped    prometheus.Counter
	AudioScheduled   prometheus.Counter
	DecodeErrors     prometheus.Counter
	Interruptions    *prometheus.CounterVec
	Utterances       *prometheus.CounterVec
	Summaries        *prometheus.CounterVec
	SummaryDuration  prometheus.Histogram
	ActiveSessions   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "callassist",
			Name:      "sessions_started_total",
			Help:      "Sessions started.",
		}),
		SessionsEnded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callassist",
			Name:      "sessions_ended_total",
			Help:      "Sessions ended, by reason.",
		}, []string{"reason"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "callassist",
			Name:      "session_duration_seconds",
			Help:      "Active conversation time per session.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		}),
		StateTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callassist",
			Name:      "state_transitions_total",
			Help:      "Engine state transitions.",
		}, []string{"from", "to"}),
		ChunksSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "callassist",
			Name:      "audio_chunks_sent_total",
			Help:      "Microphone chunks forwarded to the live session.",
		}),
		ChunksDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "callassist",
			Name:      "audio_chunks_dropped_total",
			Help:      "Microphone chunks dropped because the send queue was full.",
		}),
		AudioScheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: "callassist",
			Name:      "playback_buffers_scheduled_total",
			Help:      "Inbound audio buffers scheduled for playback.",
		}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "callassist",
			Name:      "playback_decode_errors_total",
			Help:      "Inbound audio chunks that could not be decoded.",
		}),
		Interruptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callassist",
			Name:      "interruptions_total",
			Help:      "Playback interruptions, by trigger.",
		}, []string{"trigger"}),
		Utterances: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callassist",
			Name:      "utterances_total",
			Help:      "Utterances appended to transcripts, by speaker.",
		}, []string{"speaker"}),
		Summaries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callassist",
			Name:      "summaries_total",
			Help:      "Summarization attempts, by result.",
		}, []string{"result"}),
		SummaryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "callassist",
			Name:      "summary_duration_seconds",
			Help:      "Summarization latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "callassist",
			Name:      "active_sessions",
			Help:      "Sessions currently holding audio devices.",
		}),
	}
}
