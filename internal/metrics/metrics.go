// Package metrics holds the bot's Prometheus collectors.
package metrics

import (
	"errors"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_events_total",
			Help: "Inbound events processed, by kind",
		},
		[]string{"kind"},
	)

	EventPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_event_panics_total",
			Help: "Events whose handling panicked and was recovered",
		},
	)

	ModerationActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_moderation_actions_total",
			Help: "Moderation dispatches, by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	TriggersFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_text_triggers_total",
			Help: "Text triggers that matched a message",
		},
		[]string{"trigger"},
	)

	LevelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_level_ups_total",
			Help: "Level-up signals emitted",
		},
	)

	VoiceSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_voice_seconds_total",
			Help: "Seconds credited to users for closed voice sessions",
		},
	)

	DroppedEvents = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_dropped_events_total",
			Help: "Inbound events dropped because the event queue was full",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		EventPanics,
		ModerationActions,
		TriggersFired,
		LevelUps,
		VoiceSeconds,
		DroppedEvents,
	)
}

// Outcome maps an error to the outcome label used by ModerationActions.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, bot.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, bot.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, bot.ErrActionFailed):
		return "action_failed"
	case errors.Is(err, bot.ErrResolutionFailed):
		return "resolution_failed"
	default:
		return "error"
	}
}
