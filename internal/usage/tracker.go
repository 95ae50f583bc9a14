// Package usage counts command invocations per user.
package usage

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Tracker owns user -> command -> count. Any command name is tracked; there is
// no fixed command set.
type Tracker struct {
	mu     sync.RWMutex
	counts map[string]map[string]int
	logger zerolog.Logger
}

func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		counts: make(map[string]map[string]int),
		logger: logger.With().Str("component", "usage-tracker").Logger(),
	}
}

// Record increments the count of command for userID.
func (t *Tracker) Record(userID, command string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	perUser, ok := t.counts[userID]
	if !ok {
		perUser = make(map[string]int)
		t.counts[userID] = perUser
	}
	perUser[command]++

	t.logger.Debug().
		Str("user_id", userID).
		Str("command", command).
		Int("count", perUser[command]).
		Msg("Command usage recorded")
}

// Stats returns a copy of the user's counts. Unknown users get an empty map.
func (t *Tracker) Stats(userID string) map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]int, len(t.counts[userID]))
	for name, n := range t.counts[userID] {
		out[name] = n
	}
	return out
}

// Count returns how many times userID ran command.
func (t *Tracker) Count(userID, command string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[userID][command]
}

// Total is the sum of all of the user's counts.
func (t *Tracker) Total(userID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := 0
	for _, n := range t.counts[userID] {
		total += n
	}
	return total
}

// CommandCount is one row of a sorted stats listing.
type CommandCount struct {
	Command string
	Count   int
}

// Sorted returns the user's counts ordered by count descending, then name.
func (t *Tracker) Sorted(userID string) []CommandCount {
	stats := t.Stats(userID)
	out := make([]CommandCount, 0, len(stats))
	for name, n := range stats {
		out = append(out, CommandCount{Command: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Command < out[j].Command
	})
	return out
}
