// Package discord connects the bot core to Discord. It turns gateway events
// into bot events on a buffered channel and implements bot.Gateway with REST
// calls.
package discord

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/internal/config"
	"github.com/keshon/server-warden/internal/metrics"
	"github.com/keshon/server-warden/pkg/retrylimit"
	"github.com/rs/zerolog"
)

const (
	nameCacheSize = 1024
	// enqueueTimeout is how long a gateway handler waits for room in the
	// event queue before dropping the event.
	enqueueTimeout = 2 * time.Second
	// ackTimeout bounds the deferred acknowledgement, which Discord needs
	// within 3s of the interaction.
	ackTimeout = 2 * time.Second
)

// Bot is the Discord session plus the outbound Gateway.
type Bot struct {
	dg      *discordgo.Session
	cfg     *config.Config
	events  chan bot.Event
	names   *lru.Cache[string, string]
	limiter *retrylimit.AdaptiveLimiter
	logger  zerolog.Logger

	ctx atomic.Pointer[context.Context]
}

// New prepares a session; nothing connects until Run.
func New(cfg *config.Config, logger zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	names, err := lru.New[string, string](nameCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create name cache: %w", err)
	}

	b := &Bot{
		dg:      dg,
		cfg:     cfg,
		events:  make(chan bot.Event, cfg.EventBuffer),
		names:   names,
		limiter: retrylimit.NewAdaptiveLimiter(5, 1, 40, 1, 0.5),
		logger:  logger.With().Str("component", "discord").Logger(),
	}
	background := context.Background()
	b.ctx.Store(&background)
	return b, nil
}

// Events is the normalized inbound stream for the router.
func (b *Bot) Events() <-chan bot.Event {
	return b.events
}

// Run opens the gateway connection and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx.Store(&ctx)

	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onMessageCreate)
	b.dg.AddHandler(b.onGuildMemberAdd)
	b.dg.AddHandler(b.onGuildMemberRemove)
	b.dg.AddHandler(b.onVoiceStateUpdate)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	<-ctx.Done()
	b.logger.Info().Msg("Shutdown signal received, closing Discord session")
	if err := b.dg.Close(); err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}
	return nil
}

func (b *Bot) runContext() context.Context {
	return *b.ctx.Load()
}

// push queues ev for the router. It gives up after enqueueTimeout or on
// shutdown and reports whether the event was queued.
func (b *Bot) push(ev bot.Event) bool {
	ctx := b.runContext()
	timer := time.NewTimer(enqueueTimeout)
	defer timer.Stop()

	select {
	case b.events <- ev:
		return true
	case <-ctx.Done():
	case <-timer.C:
	}

	metrics.DroppedEvents.Inc()
	b.logger.Warn().Str("kind", ev.Kind()).Msg("Event queue full, dropping event")
	return false
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		if b.leaveIfBlacklisted(s, g.ID) {
			continue
		}
		b.syncCommands(g.ID)
	}
	b.logger.Info().
		Str("user", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("Discord bot is running")
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.Unavailable {
		return
	}
	b.logger.Info().Str("guild_id", g.ID).Str("guild", g.Name).Msg("Guild available")
	if b.leaveIfBlacklisted(s, g.ID) {
		return
	}
	b.syncCommands(g.ID)
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) bool {
	if !b.cfg.IsGuildBlacklisted(guildID) {
		return false
	}
	b.logger.Info().Str("guild_id", guildID).Msg("Leaving blacklisted guild")
	if err := s.GuildLeave(guildID); err != nil {
		b.logger.Error().Err(err).Str("guild_id", guildID).Msg("Failed to leave guild")
	}
	return true
}

func (b *Bot) syncCommands(guildID string) {
	if !b.cfg.InitSlashCommands {
		b.logger.Info().Str("guild_id", guildID).Msg("Registering slash commands skipped")
		return
	}
	// Registration waits on the limiter; keep it off the gateway goroutine.
	go func() {
		if err := b.registerCommands(b.runContext(), guildID); err != nil {
			b.logger.Error().Err(err).Str("guild_id", guildID).Msg("Error registering slash commands")
		}
	}()
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	ev, ok := messageEvent(m)
	if !ok {
		return
	}
	b.rememberName(m.Author, m.Member)
	b.push(ev)
}

func (b *Bot) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	b.rememberName(m.User, m.Member)
	b.push(bot.MemberJoined{Member: toUser(m.User), Guild: b.guild(m.GuildID)})
}

func (b *Bot) onGuildMemberRemove(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.Member == nil || m.User == nil {
		return
	}
	b.push(bot.MemberLeft{Member: toUser(m.User), Guild: b.guild(m.GuildID)})
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	ev, ok := voiceEvent(v, time.Now())
	if !ok {
		return
	}
	b.push(ev)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		b.logger.Debug().Int("type", int(i.Type)).Msg("Ignoring interaction")
		return
	}
	ev, ok := slashEvent(i)
	if !ok {
		return
	}

	// Discord needs an answer within 3s; ReplyToCommand completes this one.
	ackCtx, cancel := context.WithTimeout(b.runContext(), ackTimeout)
	err := s.InteractionRespond(i.Interaction, deferredResponse(), discordgo.WithContext(ackCtx))
	cancel()
	if err != nil {
		b.logger.Warn().Err(err).Str("command", ev.Name).Msg("Failed to acknowledge interaction")
	} else {
		ev.Handle.Deferred = true
	}

	if !b.push(ev) {
		// The router never sees it, so answer here or Discord shows a failure.
		replyCtx, cancel := context.WithTimeout(context.Background(), ackTimeout)
		defer cancel()
		busy := bot.Text("⏳ The bot is busy, please try again.")
		if err := b.ReplyToCommand(replyCtx, ev.Handle, busy, bot.Private); err != nil {
			b.logger.Warn().Err(err).Str("command", ev.Name).Msg("Failed to answer dropped interaction")
		}
	}
}

// guild reads the member count from state, which discordgo keeps current on
// member add and remove.
func (b *Bot) guild(guildID string) bot.Guild {
	g := bot.Guild{ID: guildID}
	if state, err := b.dg.State.Guild(guildID); err == nil {
		g.MemberCount = state.MemberCount
	}
	return g
}

func (b *Bot) rememberName(u *discordgo.User, m *discordgo.Member) {
	if u == nil {
		return
	}
	b.names.Add(u.ID, displayName(u, m))
}
