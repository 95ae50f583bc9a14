package bot

import (
	"context"
	"sync/atomic"
)

type replyTrackerKey struct{}

// ReplyTracker records whether a command reply was attempted while handling
// one event.
type ReplyTracker struct {
	replied atomic.Bool
}

// TrackReplies returns a context that carries a fresh ReplyTracker.
func TrackReplies(ctx context.Context) (context.Context, *ReplyTracker) {
	t := &ReplyTracker{}
	return context.WithValue(ctx, replyTrackerKey{}, t), t
}

// MarkReplied flags the tracker carried by ctx, if any.
func MarkReplied(ctx context.Context) {
	if t, ok := ctx.Value(replyTrackerKey{}).(*ReplyTracker); ok {
		t.replied.Store(true)
	}
}

func (t *ReplyTracker) Replied() bool {
	return t != nil && t.replied.Load()
}
