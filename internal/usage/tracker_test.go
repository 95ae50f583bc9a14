package usage

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRecordArbitraryCommand(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	tr.Record("u1", "foo")

	assert.Equal(t, 1, tr.Stats("u1")["foo"])
	assert.Equal(t, 1, tr.Count("u1", "foo"))
}

func TestRecordCountsOnlyIncrease(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	for i := 0; i < 3; i++ {
		tr.Record("u1", "kick")
	}
	tr.Record("u1", "ban")
	tr.Record("u2", "kick")

	assert.Equal(t, map[string]int{"kick": 3, "ban": 1}, tr.Stats("u1"))
	assert.Equal(t, 4, tr.Total("u1"))
	assert.Equal(t, 1, tr.Total("u2"))
}

func TestStatsUnknownUser(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	stats := tr.Stats("ghost")
	assert.NotNil(t, stats)
	assert.Empty(t, stats)
	assert.Equal(t, 0, tr.Count("ghost", "kick"))
}

func TestStatsIsACopy(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	tr.Record("u1", "say")

	stats := tr.Stats("u1")
	stats["say"] = 100
	assert.Equal(t, 1, tr.Count("u1", "say"))
}

func TestSorted(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	tr.Record("u1", "purge")
	tr.Record("u1", "ban")
	tr.Record("u1", "kick")
	tr.Record("u1", "kick")

	assert.Equal(t, []CommandCount{
		{Command: "kick", Count: 2},
		{Command: "ban", Count: 1},
		{Command: "purge", Count: 1},
	}, tr.Sorted("u1"))
}
