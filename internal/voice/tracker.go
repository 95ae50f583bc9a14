// Package voice tracks how long users spend in voice channels.
package voice

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Transition is what a voice-state change did to the tracker.
type Transition int

const (
	None Transition = iota
	Joined
	Left
	Moved
)

func (t Transition) String() string {
	switch t {
	case Joined:
		return "joined"
	case Left:
		return "left"
	case Moved:
		return "moved"
	default:
		return "none"
	}
}

// Tracker owns the open sessions (user -> start time) and the accumulated
// seconds per user. Totals only grow, and only when a session closes.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	totals   map[string]int64
	logger   zerolog.Logger
}

func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		sessions: make(map[string]time.Time),
		totals:   make(map[string]int64),
		logger:   logger.With().Str("component", "voice-tracker").Logger(),
	}
}

// Join opens a session at at. It is a no-op if one is already open.
func (t *Tracker) Join(userID string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.join(userID, at)
}

func (t *Tracker) join(userID string, at time.Time) bool {
	if _, open := t.sessions[userID]; open {
		return false
	}
	t.sessions[userID] = at
	t.logger.Debug().Str("user_id", userID).Time("since", at).Msg("Voice session opened")
	return true
}

// Leave closes the open session and adds its whole seconds to the user's total.
// It returns the credited seconds, or ok == false if no session was open.
func (t *Tracker) Leave(userID string, at time.Time) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	since, open := t.sessions[userID]
	if !open {
		return 0, false
	}
	delete(t.sessions, userID)

	elapsed := int64(at.Sub(since) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	t.totals[userID] += elapsed

	t.logger.Debug().
		Str("user_id", userID).
		Int64("elapsed_seconds", elapsed).
		Int64("total_seconds", t.totals[userID]).
		Msg("Voice session closed")
	return elapsed, true
}

// Move handles a direct channel-to-channel switch. An open session carries on
// untouched. With no open session (the user was already in voice before we
// started watching) one is opened at at.
func (t *Tracker) Move(userID string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.join(userID, at)
}

// Apply classifies a raw state change and applies it. An empty channel means
// "not in voice"; a change that keeps the channel (mute, deafen) is None.
func (t *Tracker) Apply(userID, previousChannel, newChannel string, at time.Time) (Transition, int64) {
	switch {
	case previousChannel == "" && newChannel != "":
		t.Join(userID, at)
		return Joined, 0
	case previousChannel != "" && newChannel == "":
		elapsed, _ := t.Leave(userID, at)
		return Left, elapsed
	case previousChannel != newChannel:
		t.Move(userID, at)
		return Moved, 0
	default:
		return None, 0
	}
}

// Total returns the accumulated seconds of closed sessions.
func (t *Tracker) Total(userID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totals[userID]
}

// Open reports the start time of the user's open session, if any.
func (t *Tracker) Open(userID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	since, ok := t.sessions[userID]
	return since, ok
}
