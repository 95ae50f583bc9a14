// Package progression owns per-user XP and level state and ranks users by it.
//
// Level policy: XP floors at zero, and the stored level is a high-water mark.
// Adding XP raises the level to floor(xp/XPPerLevel) when that is higher;
// removing XP never lowers it.
package progression

import (
	"sync"

	"github.com/rs/zerolog"
)

const (
	// XPPerLevel is the XP needed for each level.
	XPPerLevel = 500

	// DefaultMessageXP is awarded per qualifying message.
	DefaultMessageXP = 5
)

// Record is a snapshot of one user's progression.
type Record struct {
	XP    int
	Level int
}

type entry struct {
	Record
	seq int // first-appearance order, used to break ranking ties
}

// Engine owns user -> Record. It is safe for concurrent use; every mutation is
// a single critical section.
type Engine struct {
	mu        sync.RWMutex
	records   map[string]*entry
	nextSeq   int
	messageXP int
	logger    zerolog.Logger
}

// NewEngine creates an engine that awards messageXP per message (DefaultMessageXP
// when messageXP <= 0).
func NewEngine(messageXP int, logger zerolog.Logger) *Engine {
	if messageXP <= 0 {
		messageXP = DefaultMessageXP
	}
	return &Engine{
		records:   make(map[string]*entry),
		messageXP: messageXP,
		logger:    logger.With().Str("component", "progression").Logger(),
	}
}

func (e *Engine) touch(userID string) *entry {
	rec, ok := e.records[userID]
	if !ok {
		rec = &entry{seq: e.nextSeq}
		e.nextSeq++
		e.records[userID] = rec
	}
	return rec
}

// AddXP adds amount (which may be negative) to the user's XP, flooring at zero.
// It returns the new level and true only when the stored level went up.
func (e *Engine) AddXP(userID string, amount int) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := e.touch(userID)
	rec.XP += amount
	if rec.XP < 0 {
		rec.XP = 0
	}

	level := rec.XP / XPPerLevel
	if level <= rec.Level {
		return rec.Level, false
	}

	rec.Level = level
	e.logger.Debug().
		Str("user_id", userID).
		Int("xp", rec.XP).
		Int("level", level).
		Msg("Level up")
	return level, true
}

// Award adds the per-message increment.
func (e *Engine) Award(userID string) (int, bool) {
	return e.AddXP(userID, e.messageXP)
}

// XPToNextLevel returns (level+1)*XPPerLevel - xp for the stored values. After
// XP removal the level stays put, so the result can exceed XPPerLevel.
func (e *Engine) XPToNextLevel(userID string) int {
	rec := e.Get(userID)
	return (rec.Level+1)*XPPerLevel - rec.XP
}

// Get returns the user's record, or the zero record for unknown users.
func (e *Engine) Get(userID string) Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if rec, ok := e.records[userID]; ok {
		return rec.Record
	}
	return Record{}
}

// Len returns the number of users with a record.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.records)
}

// snapshot copies all records in first-appearance order.
func (e *Engine) snapshot() []Standing {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Standing, len(e.records))
	for id, rec := range e.records {
		out[rec.seq] = Standing{UserID: id, Record: rec.Record}
	}
	return out
}
