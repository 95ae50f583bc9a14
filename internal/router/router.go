// Package router is the bot's event loop. It takes normalized events one at a
// time, updates progression, usage and voice state, and routes command-shaped
// input to the moderation dispatcher, the read-only queries or the canned text
// triggers.
package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/internal/metrics"
	"github.com/keshon/server-warden/internal/moderation"
	"github.com/keshon/server-warden/internal/progression"
	"github.com/keshon/server-warden/internal/usage"
	"github.com/keshon/server-warden/internal/voice"
	"github.com/keshon/server-warden/pkg/cmd"
	"github.com/rs/zerolog"
)

const (
	DefaultPrefix          = "!"
	DefaultLeaderboardSize = 10
	defaultReplyTimeout    = 10 * time.Second
)

type Config struct {
	// WelcomeChannelID receives join and leave notices. Empty disables them.
	WelcomeChannelID string
	Prefix           string
	LeaderboardSize  int
	// ReplyTimeout bounds each outbound message the router sends itself.
	ReplyTimeout time.Duration
	Now          func() time.Time
}

// Deps are the state owners and collaborators the router drives.
type Deps struct {
	Gateway    bot.Gateway
	Engine     *progression.Engine
	Ranker     *progression.Ranker
	Usage      *usage.Tracker
	Voice      *voice.Tracker
	Moderation *moderation.Dispatcher
}

type Router struct {
	gw         bot.Gateway
	engine     *progression.Engine
	ranker     *progression.Ranker
	usage      *usage.Tracker
	voice      *voice.Tracker
	moderation *moderation.Dispatcher

	queries  *cmd.Registry
	triggers []trigger
	cfg      Config
	logger   zerolog.Logger
}

func New(deps Deps, cfg Config, logger zerolog.Logger) *Router {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = DefaultLeaderboardSize
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = defaultReplyTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	r := &Router{
		gw:         deps.Gateway,
		engine:     deps.Engine,
		ranker:     deps.Ranker,
		usage:      deps.Usage,
		voice:      deps.Voice,
		moderation: deps.Moderation,
		queries:    cmd.NewRegistry(),
		cfg:        cfg,
		logger:     logger.With().Str("component", "router").Logger(),
	}
	r.registerQueries()
	r.triggers = r.defaultTriggers()
	return r
}

// Run handles events until ctx is done or the channel is closed. The event in
// progress is always finished before Run returns.
func (r *Router) Run(ctx context.Context, events <-chan bot.Event) error {
	r.logger.Info().Msg("Event loop started")
	defer r.logger.Info().Msg("Event loop stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			r.Handle(ctx, ev)
		}
	}
}

// Handle processes one event. A panic while handling it is logged and
// swallowed so the loop keeps going.
func (r *Router) Handle(ctx context.Context, ev bot.Event) {
	if ev == nil {
		return
	}
	kind := ev.Kind()

	var replies *bot.ReplyTracker
	slash, isSlash := ev.(bot.SlashCommandInvoked)
	if isSlash {
		ctx, replies = bot.TrackReplies(ctx)
	}

	defer func() {
		if p := recover(); p != nil {
			metrics.EventPanics.Inc()
			r.logger.Error().
				Str("kind", kind).
				Str("panic", fmt.Sprint(p)).
				Bytes("stack", debug.Stack()).
				Msg("Recovered from panic while handling event")
			// An interaction must still get its one reply.
			if isSlash && !replies.Replied() {
				r.replyAfterPanic(ctx, slash.Handle)
			}
		}
	}()

	metrics.EventsTotal.WithLabelValues(kind).Inc()

	switch e := ev.(type) {
	case bot.MessageReceived:
		r.onMessage(ctx, e)
	case bot.MemberJoined:
		r.onMemberJoined(ctx, e)
	case bot.MemberLeft:
		r.onMemberLeft(ctx, e)
	case bot.VoiceStateChanged:
		r.onVoiceState(e)
	case bot.SlashCommandInvoked:
		r.onSlashCommand(ctx, e)
	default:
		r.logger.Debug().Str("kind", kind).Msg("Unhandled event")
	}
}

func (r *Router) onVoiceState(e bot.VoiceStateChanged) {
	at := e.At
	if at.IsZero() {
		at = r.cfg.Now()
	}

	transition, elapsed := r.voice.Apply(e.Member.ID, e.PreviousChannel, e.NewChannel, at)
	if transition == voice.Left {
		metrics.VoiceSeconds.Add(float64(elapsed))
	}
	r.logger.Debug().
		Str("user_id", e.Member.ID).
		Str("transition", transition.String()).
		Msg("Voice state changed")
}

func (r *Router) send(ctx context.Context, channelID string, msg bot.Message) {
	sendCtx, cancel := context.WithTimeout(ctx, r.cfg.ReplyTimeout)
	defer cancel()

	if err := r.gw.SendMessage(sendCtx, channelID, msg); err != nil {
		r.logger.Warn().Err(err).Str("channel_id", channelID).Msg("Failed to send message")
	}
}

func (r *Router) reply(ctx context.Context, handle bot.ReplyHandle, msg bot.Message, vis bot.Visibility) {
	replyCtx, cancel := context.WithTimeout(ctx, r.cfg.ReplyTimeout)
	defer cancel()

	err := r.gw.ReplyToCommand(replyCtx, handle, msg, vis)
	bot.MarkReplied(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Str("channel_id", handle.ChannelID).Msg("Failed to reply to command")
	}
}

func (r *Router) replyAfterPanic(ctx context.Context, handle bot.ReplyHandle) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Str("panic", fmt.Sprint(p)).Msg("Panic while sending the fallback reply")
		}
	}()
	r.reply(ctx, handle, bot.Text("❌ Something went wrong."), bot.Private)
}
