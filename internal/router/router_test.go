package router

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/internal/bot/bottest"
	"github.com/keshon/server-warden/internal/moderation"
	"github.com/keshon/server-warden/internal/progression"
	"github.com/keshon/server-warden/internal/usage"
	"github.com/keshon/server-warden/internal/voice"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = bot.User{ID: "100", Username: "alice"}
	bob   = bot.User{ID: "200", Username: "bob"}
	t0    = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	gw     *bottest.Gateway
	engine *progression.Engine
	usage  *usage.Tracker
	voice  *voice.Tracker
	router *Router
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	return newFixtureWith(t, bottest.New(), 5, cfg)
}

func newFixtureWith(t *testing.T, gw bot.Gateway, messageXP int, cfg Config) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	engine := progression.NewEngine(messageXP, logger)
	tracker := usage.NewTracker(logger)
	voiceTracker := voice.NewTracker(logger)
	dispatcher := moderation.NewDispatcher(gw, engine, tracker, moderation.Config{
		ActionTimeout: time.Second,
		Now:           func() time.Time { return t0 },
	}, logger)
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return t0 }
	}

	r := New(Deps{
		Gateway:    gw,
		Engine:     engine,
		Ranker:     progression.NewRanker(engine, progression.RankByXP),
		Usage:      tracker,
		Voice:      voiceTracker,
		Moderation: dispatcher,
	}, cfg, logger)

	f := &fixture{engine: engine, usage: tracker, voice: voiceTracker, router: r}
	if fake, ok := gw.(*bottest.Gateway); ok {
		f.gw = fake
	}
	return f
}

func message(author bot.User, content string, mentions ...bot.User) bot.MessageReceived {
	return bot.MessageReceived{
		Author:    author,
		Content:   content,
		Mentions:  mentions,
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: "m1",
	}
}

func contents(sent []bottest.Sent) []string {
	out := make([]string, len(sent))
	for i, s := range sent {
		out[i] = s.Message.Content
	}
	return out
}

func TestBotAuthorsAreIgnored(t *testing.T) {
	f := newFixture(t, Config{})
	author := bot.User{ID: "999", Bot: true}

	f.router.Handle(context.Background(), message(author, "key"))

	assert.Equal(t, progression.Record{}, f.engine.Get("999"))
	assert.Equal(t, 0, f.engine.Len())
	assert.Empty(t, f.gw.Sent())
}

func TestMessageAwardsXP(t *testing.T) {
	f := newFixture(t, Config{})

	f.router.Handle(context.Background(), message(alice, "hello"))
	f.router.Handle(context.Background(), message(alice, "again"))

	assert.Equal(t, 10, f.engine.Get(alice.ID).XP)
	assert.Empty(t, f.gw.Sent())
}

func TestLevelUpCongratulates(t *testing.T) {
	f := newFixtureWith(t, bottest.New(), progression.XPPerLevel, Config{})

	f.router.Handle(context.Background(), message(alice, "hello"))

	assert.Equal(t, []string{"🎉 Congrats <@100>, you leveled up to level 1!"}, contents(f.gw.Sent()))
}

func TestTriggers(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		mentions []bot.User
		want     string
	}{
		{"level of author", "Level?", nil, "📈 <@100> is level 0 with 5 XP."},
		{"level of mention", "  level? <@200>", []bot.User{bob}, "📈 <@200> is level 0 with 0 XP."},
		{"xp left", "XP LEFT ", nil, "⏳ <@100>, you need 495 XP to next level."},
		{"key", "key", nil, keyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.router.Handle(context.Background(), message(alice, tt.content, tt.mentions...))
			assert.Equal(t, []string{tt.want}, contents(f.gw.Sent()))
		})
	}
}

func TestHelpTrigger(t *testing.T) {
	for _, msg := range []bot.MessageReceived{
		message(alice, "what commands"),
		message(alice, "hey <@bot>", bot.User{ID: "bot"}),
	} {
		f := newFixture(t, Config{})
		f.router.Handle(context.Background(), msg)

		sent := contents(f.gw.Sent())
		require.Len(t, sent, 1)
		assert.True(t, strings.HasPrefix(sent[0], "**Commands:**"))
		assert.Contains(t, sent[0], "/kick")
		assert.Contains(t, sent[0], "/leaderboard")
		assert.Contains(t, sent[0], "!lock")
		assert.Contains(t, sent[0], "level? @user, xp left")
	}
}

func TestAtMostOneTriggerFires(t *testing.T) {
	f := newFixture(t, Config{})

	// Matches both the level prefix and the bot-mention help trigger.
	f.router.Handle(context.Background(), message(alice, "level? <@bot>", bot.User{ID: "bot"}))

	sent := contents(f.gw.Sent())
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], "📈"))
}

func TestTextCommandDispatches(t *testing.T) {
	f := newFixture(t, Config{})
	f.gw.Grant(alice.ID, bot.CanManageMessages)

	f.router.Handle(context.Background(), message(alice, "!purge 5"))

	calls := f.gw.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "delete_messages", calls[0].Name)
	assert.Equal(t, 5, calls[0].Count)
	assert.Equal(t, 1, f.usage.Count(alice.ID, "purge"))

	replies := f.gw.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "🧹 Deleted 5 messages.", replies[0].Message.Content)
	assert.Equal(t, "m1", replies[0].Handle.MessageID)
}

func TestTextCommandWithCustomPrefix(t *testing.T) {
	f := newFixture(t, Config{Prefix: "?"})
	f.gw.Grant(alice.ID, bot.CanManageChannels)

	f.router.Handle(context.Background(), message(alice, "!lock"))
	assert.Empty(t, f.gw.Calls())

	f.router.Handle(context.Background(), message(alice, "?lock"))
	require.Len(t, f.gw.Calls(), 1)
	assert.Equal(t, "set_permission", f.gw.Calls()[0].Name)
}

func TestUnknownTextCommandIsIgnored(t *testing.T) {
	f := newFixture(t, Config{})

	f.router.Handle(context.Background(), message(alice, "!foo bar"))

	assert.Empty(t, f.gw.Calls())
	assert.Empty(t, f.gw.Replies())
	assert.Equal(t, 0, f.gw.CapabilityChecks())
}

func TestParseTextCommand(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    moderation.Request
	}{
		{
			name:    "kick with reason",
			content: "!kick <@200> being  rude",
			want:    moderation.Request{Action: "kick", Target: &bob, Reason: "being rude"},
		},
		{
			name:    "ban by nickname mention without reason",
			content: "!BAN <@!200>",
			want:    moderation.Request{Action: "ban", Target: &bob},
		},
		{
			name:    "timeout",
			content: "!timeout <@200> 10m spam",
			want:    moderation.Request{Action: "timeout", Target: &bob, Duration: "10m", Reason: "spam"},
		},
		{
			name:    "untimeout by raw id",
			content: "!untimeout 300",
			want:    moderation.Request{Action: "untimeout", Target: &bot.User{ID: "300"}},
		},
		{
			name:    "purge",
			content: "!purge 50",
			want:    moderation.Request{Action: "purge", Amount: 50},
		},
		{
			name:    "purge garbage amount",
			content: "!purge lots",
			want:    moderation.Request{Action: "purge"},
		},
		{
			name:    "addxp",
			content: "!addxp <@200> 250",
			want:    moderation.Request{Action: "addxp", Target: &bob, Amount: 250},
		},
		{
			name:    "removexp missing amount",
			content: "!removexp <@200>",
			want:    moderation.Request{Action: "removexp", Target: &bob},
		},
		{
			name:    "say keeps inner spacing",
			content: "!say  hello   world ",
			want:    moderation.Request{Action: "say", Text: "hello   world"},
		},
		{
			name:    "kick with a non-mention target",
			content: "!kick bob",
			want:    moderation.Request{Action: "kick"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, ok := parseTextCommand("!", message(alice, tt.content, bob))
			require.True(t, ok)

			assert.Equal(t, tt.want.Action, req.Action)
			assert.Equal(t, tt.want.Target, req.Target)
			assert.Equal(t, tt.want.Reason, req.Reason)
			assert.Equal(t, tt.want.Duration, req.Duration)
			assert.Equal(t, tt.want.Amount, req.Amount)
			assert.Equal(t, tt.want.Text, req.Text)
			assert.Equal(t, alice, req.Invoker)
			assert.Equal(t, bot.Location{GuildID: "g1", ChannelID: "c1"}, req.Where)
		})
	}
}

func TestParseTextCommandRejectsNonCommands(t *testing.T) {
	for _, content := range []string{"hello", "!", "!   ", "kick !"} {
		_, ok := parseTextCommand("!", message(alice, content))
		assert.False(t, ok, content)
	}
}

func TestWelcomeAndFarewell(t *testing.T) {
	f := newFixture(t, Config{WelcomeChannelID: "welcome"})
	guild := bot.Guild{ID: "g1", MemberCount: 42}

	f.router.Handle(context.Background(), bot.MemberJoined{Member: alice, Guild: guild})
	f.router.Handle(context.Background(), bot.MemberLeft{Member: bob, Guild: bot.Guild{ID: "g1", MemberCount: 41}})

	sent := f.gw.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "welcome", sent[0].ChannelID)
	assert.Equal(t, "👋 Welcome <@100>! We now have 42 members.", sent[0].Message.Content)
	assert.Equal(t, "😢 bob has left. We now have 41 members.", sent[1].Message.Content)
}

func TestWelcomeAndFarewellIncludeBots(t *testing.T) {
	f := newFixture(t, Config{WelcomeChannelID: "welcome"})
	helper := bot.User{ID: "999", Username: "helper", Bot: true}

	f.router.Handle(context.Background(), bot.MemberJoined{Member: helper, Guild: bot.Guild{ID: "g1", MemberCount: 7}})
	f.router.Handle(context.Background(), bot.MemberLeft{Member: helper, Guild: bot.Guild{ID: "g1", MemberCount: 6}})

	assert.Equal(t, []string{
		"👋 Welcome <@999>! We now have 7 members.",
		"😢 helper has left. We now have 6 members.",
	}, contents(f.gw.Sent()))
}

func TestFarewellFallsBackToID(t *testing.T) {
	f := newFixture(t, Config{WelcomeChannelID: "welcome"})

	f.router.Handle(context.Background(), bot.MemberLeft{Member: bot.User{ID: "300"}, Guild: bot.Guild{MemberCount: 1}})

	assert.Equal(t, []string{"😢 User ID 300 has left. We now have 1 members."}, contents(f.gw.Sent()))
}

func TestWelcomeWithoutChannelIsNoop(t *testing.T) {
	f := newFixture(t, Config{})

	f.router.Handle(context.Background(), bot.MemberJoined{Member: alice, Guild: bot.Guild{MemberCount: 3}})
	f.router.Handle(context.Background(), bot.MemberLeft{Member: alice, Guild: bot.Guild{MemberCount: 2}})

	assert.Empty(t, f.gw.Sent())
}

func TestWelcomeSendFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, Config{WelcomeChannelID: "gone"})
	f.gw.Err["send"] = bot.Unresolved("channel not found", nil)

	assert.NotPanics(t, func() {
		f.router.Handle(context.Background(), bot.MemberJoined{Member: alice, Guild: bot.Guild{MemberCount: 3}})
	})
}

func TestVoiceJoinMoveLeave(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	f.router.Handle(ctx, bot.VoiceStateChanged{Member: alice, NewChannel: "v1", At: t0})
	f.router.Handle(ctx, bot.VoiceStateChanged{Member: alice, PreviousChannel: "v1", NewChannel: "v2", At: t0.Add(time.Minute)})
	f.router.Handle(ctx, bot.VoiceStateChanged{Member: alice, PreviousChannel: "v2", At: t0.Add(90 * time.Second)})

	assert.Equal(t, int64(90), f.voice.Total(alice.ID))
	_, open := f.voice.Open(alice.ID)
	assert.False(t, open)
}

func slash(name string, opts bot.Options) bot.SlashCommandInvoked {
	return bot.SlashCommandInvoked{
		Invoker:   alice,
		Name:      name,
		Options:   opts,
		GuildID:   "g1",
		ChannelID: "c1",
		Handle:    bot.ReplyHandle{InteractionID: "i1", InteractionToken: "tok", ChannelID: "c1"},
	}
}

func TestSlashCommandsReplyOnce(t *testing.T) {
	tests := []struct {
		name string
		ev   bot.SlashCommandInvoked
		vis  bot.Visibility
	}{
		{"denied moderation", slash("kick", bot.Options{Users: map[string]bot.User{OptionMember: bob}}), bot.Private},
		{"invalid moderation", slash("Purge", bot.Options{Ints: map[string]int64{OptionAmount: 0}}), bot.Private},
		{"level", slash("level", bot.Options{}), bot.Public},
		{"leaderboard", slash("leaderboard", bot.Options{}), bot.Public},
		{"cmdstats", slash("cmdstats", bot.Options{}), bot.Public},
		{"voicetime", slash("voicetime", bot.Options{}), bot.Public},
		{"unknown", slash("nope", bot.Options{}), bot.Private},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.gw.Grant(alice.ID, bot.CanManageMessages)

			f.router.Handle(context.Background(), tt.ev)

			replies := f.gw.Replies()
			require.Len(t, replies, 1)
			assert.Equal(t, tt.vis, replies[0].Visibility)
			assert.Equal(t, "i1", replies[0].Handle.InteractionID)
		})
	}
}

func TestSlashModerationMapsOptions(t *testing.T) {
	f := newFixture(t, Config{})
	f.gw.Grant(alice.ID, bot.CanModerate)

	f.router.Handle(context.Background(), slash("timeout", bot.Options{
		Users:   map[string]bot.User{OptionMember: bob},
		Strings: map[string]string{OptionDuration: "1h", OptionReason: "cool off"},
	}))

	calls := f.gw.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "timeout", calls[0].Name)
	assert.Equal(t, bob.ID, calls[0].Target)
	assert.Equal(t, "cool off", calls[0].Reason)
	require.NotNil(t, calls[0].Until)
	assert.Equal(t, t0.Add(time.Hour), *calls[0].Until)
	assert.Equal(t, 1, f.usage.Count(alice.ID, "timeout"))
}

func TestLevelQuery(t *testing.T) {
	f := newFixture(t, Config{})
	f.engine.AddXP(bob.ID, 620)

	f.router.Handle(context.Background(), slash("level", bot.Options{Users: map[string]bot.User{OptionMember: bob}}))

	replies := f.gw.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, "📈 <@200> is level 1 with 620 XP (380 XP to next level).", replies[0].Message.Content)
}

func TestLeaderboardQuery(t *testing.T) {
	f := newFixture(t, Config{LeaderboardSize: 2})
	f.gw.Names[bob.ID] = "bob"
	f.engine.AddXP(alice.ID, 100)
	f.engine.AddXP(bob.ID, 300)
	f.engine.AddXP("300", 50)

	f.router.Handle(context.Background(), slash("leaderboard", bot.Options{}))

	replies := f.gw.Replies()
	require.Len(t, replies, 1)
	embed := replies[0].Message.Embed
	require.NotNil(t, embed)
	assert.Equal(t, "🏆 XP Leaderboard", embed.Title)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "1. bob", embed.Fields[0].Name)
	assert.Equal(t, "300 XP · level 0", embed.Fields[0].Value)
	assert.Equal(t, "2. User ID 100", embed.Fields[1].Name)
}

func TestLeaderboardEmpty(t *testing.T) {
	f := newFixture(t, Config{})

	f.router.Handle(context.Background(), slash("leaderboard", bot.Options{}))

	embed := f.gw.Replies()[0].Message.Embed
	require.NotNil(t, embed)
	assert.Empty(t, embed.Fields)
	assert.NotEmpty(t, embed.Description)
}

func TestCmdstatsQuery(t *testing.T) {
	f := newFixture(t, Config{})
	f.usage.Record(bob.ID, "kick")
	f.usage.Record(bob.ID, "purge")
	f.usage.Record(bob.ID, "purge")

	f.router.Handle(context.Background(), slash("cmdstats", bot.Options{Users: map[string]bot.User{OptionMember: bob}}))

	assert.Equal(t,
		"📊 Command stats for <@200>:\n• purge: 2\n• kick: 1",
		f.gw.Replies()[0].Message.Content,
	)
}

func TestVoicetimeQuery(t *testing.T) {
	f := newFixture(t, Config{})
	f.voice.Join(alice.ID, t0.Add(-time.Hour))
	f.voice.Leave(alice.ID, t0.Add(-time.Hour+90*time.Second))
	f.voice.Join(alice.ID, t0.Add(-2*time.Minute))

	f.router.Handle(context.Background(), slash("voicetime", bot.Options{}))

	assert.Equal(t,
		"🎙️ <@100> has spent 1m 30s in voice. Currently in voice for 2m.",
		f.gw.Replies()[0].Message.Content,
	)
}

func TestVoicetimeQueryClockBehindSession(t *testing.T) {
	f := newFixture(t, Config{})
	f.voice.Join(alice.ID, t0.Add(time.Minute))

	f.router.Handle(context.Background(), slash("voicetime", bot.Options{}))

	assert.Equal(t,
		"🎙️ <@100> has spent 0s in voice. Currently in voice for 0s.",
		f.gw.Replies()[0].Message.Content,
	)
}

func TestElapsedSeconds(t *testing.T) {
	assert.Equal(t, int64(90), elapsedSeconds(t0, t0.Add(90*time.Second+500*time.Millisecond)))
	assert.Equal(t, int64(0), elapsedSeconds(t0, t0))
	assert.Equal(t, int64(0), elapsedSeconds(t0.Add(time.Minute), t0))
}

// panicGateway blows up on every outbound message.
type panicGateway struct {
	*bottest.Gateway
}

func (panicGateway) SendMessage(context.Context, string, bot.Message) error {
	panic("boom")
}

func TestPanicIsRecovered(t *testing.T) {
	gw := panicGateway{bottest.New()}
	f := newFixtureWith(t, gw, 5, Config{})

	assert.NotPanics(t, func() {
		f.router.Handle(context.Background(), message(alice, "key"))
	})
	// State mutated before the panic stays.
	assert.Equal(t, 5, f.engine.Get(alice.ID).XP)
}

func TestRunContinuesAfterPanic(t *testing.T) {
	gw := panicGateway{bottest.New()}
	f := newFixtureWith(t, gw, 5, Config{})

	events := make(chan bot.Event, 3)
	events <- message(alice, "key")
	events <- message(alice, "hello")
	events <- bot.VoiceStateChanged{Member: bob, NewChannel: "v1", At: t0}
	close(events)

	require.NoError(t, f.router.Run(context.Background(), events))
	assert.Equal(t, 10, f.engine.Get(alice.ID).XP)
	_, open := f.voice.Open(bob.ID)
	assert.True(t, open)
}

// resolvePanicGateway fails every name lookup with a panic.
type resolvePanicGateway struct {
	*bottest.Gateway
}

func (resolvePanicGateway) ResolveDisplayName(context.Context, string) (string, error) {
	panic("resolver boom")
}

func TestLeaderboardSurvivesPanickingResolver(t *testing.T) {
	gw := resolvePanicGateway{bottest.New()}
	f := newFixtureWith(t, gw, 5, Config{})
	f.engine.AddXP(bob.ID, 300)

	assert.NotPanics(t, func() {
		f.router.Handle(context.Background(), slash("leaderboard", bot.Options{}))
	})

	replies := gw.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, bot.Public, replies[0].Visibility)
	require.NotNil(t, replies[0].Message.Embed)
	require.Len(t, replies[0].Message.Embed.Fields, 1)
	assert.Contains(t, replies[0].Message.Embed.Fields[0].Name, "User ID 200")
}

// replyPanicGateway panics on its next `panics` replies, then records them.
type replyPanicGateway struct {
	*bottest.Gateway
	panics int
}

func (g *replyPanicGateway) ReplyToCommand(ctx context.Context, h bot.ReplyHandle, msg bot.Message, vis bot.Visibility) error {
	if g.panics > 0 {
		g.panics--
		panic("reply boom")
	}
	return g.Gateway.ReplyToCommand(ctx, h, msg, vis)
}

func TestSlashPanicStillReplies(t *testing.T) {
	gw := &replyPanicGateway{Gateway: bottest.New(), panics: 1}
	f := newFixtureWith(t, gw, 5, Config{})

	f.router.Handle(context.Background(), slash("leaderboard", bot.Options{}))

	replies := gw.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, bot.Private, replies[0].Visibility)
	assert.Equal(t, "❌ Something went wrong.", replies[0].Message.Content)
	assert.Equal(t, "i1", replies[0].Handle.InteractionID)
}

func TestSlashPanicInFallbackReplyIsContained(t *testing.T) {
	gw := &replyPanicGateway{Gateway: bottest.New(), panics: 2}
	f := newFixtureWith(t, gw, 5, Config{})

	assert.NotPanics(t, func() {
		f.router.Handle(context.Background(), slash("cmdstats", bot.Options{}))
	})
	assert.Empty(t, gw.Replies())
}

func TestSlashPanicAfterReplyDoesNotReplyAgain(t *testing.T) {
	// The level-up follow-up goes through SendMessage, which panics after the
	// confirmation was already delivered.
	gw := panicGateway{bottest.New()}
	gw.Grant(alice.ID, bot.IsAdministrator)
	f := newFixtureWith(t, gw, 5, Config{})

	f.router.Handle(context.Background(), slash("addxp", bot.Options{
		Users: map[string]bot.User{OptionMember: bob},
		Ints:  map[string]int64{OptionAmount: 600},
	}))

	replies := gw.Replies()
	require.Len(t, replies, 1)
	assert.Equal(t, bot.Public, replies[0].Visibility)
	assert.Equal(t, 1, f.engine.Get(bob.ID).Level)
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- f.router.Run(ctx, make(chan bot.Event)) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNilEventIsIgnored(t *testing.T) {
	f := newFixture(t, Config{})
	assert.NotPanics(t, func() { f.router.Handle(context.Background(), nil) })
}
