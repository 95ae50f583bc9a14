package voice

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestJoinLeaveAccumulates(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	assert.True(t, tr.Join("u1", t0))
	elapsed, ok := tr.Leave("u1", t0.Add(90*time.Second+700*time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, int64(90), elapsed, "partial seconds are floored")
	assert.Equal(t, int64(90), tr.Total("u1"))

	tr.Join("u1", t0.Add(time.Hour))
	tr.Leave("u1", t0.Add(time.Hour+10*time.Second))
	assert.Equal(t, int64(100), tr.Total("u1"))
}

func TestJoinWhilePresentIsNoop(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	tr.Join("u1", t0)
	assert.False(t, tr.Join("u1", t0.Add(time.Minute)))

	since, ok := tr.Open("u1")
	assert.True(t, ok)
	assert.Equal(t, t0, since)
}

func TestLeaveWhileAbsentIsNoop(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	_, ok := tr.Leave("u1", t0)
	assert.False(t, ok)
	assert.Equal(t, int64(0), tr.Total("u1"))
}

func TestClockGoingBackwardsCreditsZero(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	tr.Join("u1", t0)
	elapsed, ok := tr.Leave("u1", t0.Add(-time.Minute))
	assert.True(t, ok)
	assert.Equal(t, int64(0), elapsed)
	assert.Equal(t, int64(0), tr.Total("u1"))
}

func TestJoinMoveLeaveCountsOnce(t *testing.T) {
	tr := NewTracker(zerolog.Nop())

	tr1, _ := tr.Apply("u1", "", "A", t0)
	assert.Equal(t, Joined, tr1)

	tr2, _ := tr.Apply("u1", "A", "B", t0.Add(5*time.Minute))
	assert.Equal(t, Moved, tr2)

	tr3, elapsed := tr.Apply("u1", "B", "", t0.Add(12*time.Minute))
	assert.Equal(t, Left, tr3)
	assert.Equal(t, int64(12*60), elapsed)
	assert.Equal(t, int64(12*60), tr.Total("u1"))

	_, open := tr.Open("u1")
	assert.False(t, open)
}

func TestSameChannelUpdateIsNone(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	tr.Apply("u1", "", "A", t0)

	got, _ := tr.Apply("u1", "A", "A", t0.Add(time.Minute))
	assert.Equal(t, None, got)

	since, _ := tr.Open("u1")
	assert.Equal(t, t0, since)
}

func TestMoveWithoutSessionStartsOne(t *testing.T) {
	tr := NewTracker(zerolog.Nop())
	tr.Apply("u1", "A", "B", t0)
	tr.Apply("u1", "B", "", t0.Add(30*time.Second))
	assert.Equal(t, int64(30), tr.Total("u1"))
}
