package progression

import (
	"context"
	"fmt"
	"sort"

	"github.com/keshon/server-warden/pkg/util"
)

// RankKey selects what the leaderboard orders by.
type RankKey string

const (
	RankByXP    RankKey = "xp"
	RankByLevel RankKey = "level"
)

// Standing is one user's position input: the ID plus a record snapshot.
type Standing struct {
	UserID string
	Record
}

// Entry is a ranked, optionally name-resolved standing.
type Entry struct {
	Rank        int
	UserID      string
	DisplayName string
	Record
}

// NameResolver turns a user ID into a display name.
type NameResolver interface {
	ResolveDisplayName(ctx context.Context, userID string) (string, error)
}

// Ranker produces read-only leaderboard views over an Engine.
type Ranker struct {
	engine *Engine
	key    RankKey
}

func NewRanker(engine *Engine, key RankKey) *Ranker {
	if key != RankByLevel {
		key = RankByXP
	}
	return &Ranker{engine: engine, key: key}
}

// TopN returns up to n users, highest first. Ties keep first-appearance order.
// An empty engine or n <= 0 yields an empty slice.
func (r *Ranker) TopN(n int) []Entry {
	if n <= 0 {
		return []Entry{}
	}

	standings := r.engine.snapshot()
	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if r.key == RankByLevel && a.Level != b.Level {
			return a.Level > b.Level
		}
		return a.XP > b.XP
	})

	if len(standings) > n {
		standings = standings[:n]
	}

	out := make([]Entry, len(standings))
	for i, s := range standings {
		out[i] = Entry{Rank: i + 1, UserID: s.UserID, Record: s.Record}
	}
	return out
}

// FallbackName is the label used when a user cannot be resolved.
func FallbackName(userID string) string {
	return fmt.Sprintf("User ID %s", userID)
}

// Resolve fills DisplayName on each entry, substituting FallbackName on failure.
// Lookups run concurrently; entries are modified in place and returned.
func Resolve(ctx context.Context, resolver NameResolver, entries []Entry) []Entry {
	_ = util.Parallel(ctx, entries, 4, func(ctx context.Context, i int, e Entry) error {
		name, err := resolver.ResolveDisplayName(ctx, e.UserID)
		if err != nil || name == "" {
			name = FallbackName(e.UserID)
		}
		entries[i].DisplayName = name
		return nil
	})
	for i := range entries {
		if entries[i].DisplayName == "" {
			entries[i].DisplayName = FallbackName(entries[i].UserID)
		}
	}
	return entries
}
