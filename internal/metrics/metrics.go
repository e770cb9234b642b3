// ABOUTME: Prometheus metric definitions for vox-gateway
// ABOUTME: HTTP traffic, chat turn outcomes, collaborator latency and live update delivery

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn outcomes recorded by ChatTurns.
const (
	OutcomeReplied  = "replied"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vox_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vox_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	ChatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vox_chat_turns_total",
			Help: "Chat turns by outcome",
		},
		[]string{"outcome"},
	)

	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vox_conversations_created_total",
			Help: "Conversations created on first message",
		},
	)

	// Collaborator metrics
	CollaboratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vox_collaborator_duration_seconds",
			Help:    "Latency of external collaborator calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"collaborator", "result"}, // workflow|tts|stt|media, ok|error
	)

	VoiceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vox_voice_failures_total",
			Help: "Voice leg failures absorbed by the pipeline",
		},
		[]string{"stage"}, // synthesize|store
	)

	// Live update metrics
	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vox_live_subscribers",
			Help: "Currently open live update subscriptions",
		},
	)

	LiveUpdatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vox_live_updates_dropped_total",
			Help: "Live updates dropped for slow subscribers",
		},
	)

	DuplicateRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vox_duplicate_requests_total",
			Help: "Chat submissions rejected by idempotency key",
		},
	)
)

// Result converts an error into the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
