package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/internal/progression"
	"github.com/keshon/server-warden/pkg/cmd"
	"github.com/keshon/server-warden/pkg/util"
)

// queryCall is the invocation payload for read-only queries. The query sets
// reply; the router delivers it.
type queryCall struct {
	event bot.SlashCommandInvoked
	reply *bot.Message
}

func (q *queryCall) respond(msg bot.Message) { q.reply = &msg }

// subject is the member option if given, otherwise the invoker.
func (q *queryCall) subject() bot.User {
	if u, ok := q.event.Options.User(OptionMember); ok && u.ID != "" {
		return u
	}
	return q.event.Invoker
}

func queryPayload(inv *cmd.Invocation) (*queryCall, error) {
	c, ok := inv.Data.(*queryCall)
	if !ok || c == nil {
		return nil, fmt.Errorf("router: unexpected query payload %T", inv.Data)
	}
	return c, nil
}

func query(name, desc string, run func(ctx context.Context, c *queryCall) error) cmd.Command {
	return &cmd.Func{
		CmdName: name,
		Desc:    desc,
		RunFunc: func(ctx context.Context, inv *cmd.Invocation) error {
			c, err := queryPayload(inv)
			if err != nil {
				return err
			}
			return run(ctx, c)
		},
	}
}

func (r *Router) registerQueries() {
	r.queries.MustRegister(query("level", "Show a member's level and XP", r.levelQuery))
	r.queries.MustRegister(query("leaderboard", "Show the XP leaderboard", r.leaderboardQuery))
	r.queries.MustRegister(query("cmdstats", "View command usage stats for a user", r.cmdstatsQuery))
	r.queries.MustRegister(query("voicetime", "Show time spent in voice channels", r.voicetimeQuery))
}

// Queries lists the read-only query names.
func (r *Router) Queries() []string {
	return r.queries.Names()
}

// QueryCommands returns the query commands, sorted by name.
func (r *Router) QueryCommands() []cmd.Command {
	return r.queries.All()
}

func (r *Router) levelQuery(_ context.Context, c *queryCall) error {
	u := c.subject()
	rec := r.engine.Get(u.ID)
	c.respond(bot.Text(fmt.Sprintf(
		"📈 %s is level %d with %d XP (%d XP to next level).",
		u.Mention(), rec.Level, rec.XP, r.engine.XPToNextLevel(u.ID),
	)))
	return nil
}

func (r *Router) leaderboardQuery(ctx context.Context, c *queryCall) error {
	entries := progression.Resolve(ctx, r.gw, r.ranker.TopN(r.cfg.LeaderboardSize))

	embed := &bot.Embed{Title: "🏆 XP Leaderboard"}
	if len(entries) == 0 {
		embed.Description = "No one has earned XP yet."
	}
	for _, e := range entries {
		embed.Fields = append(embed.Fields, bot.EmbedField{
			Name:  fmt.Sprintf("%d. %s", e.Rank, e.DisplayName),
			Value: fmt.Sprintf("%d XP · level %d", e.XP, e.Level),
		})
	}
	c.respond(bot.Message{Embed: embed})
	return nil
}

func (r *Router) cmdstatsQuery(_ context.Context, c *queryCall) error {
	u := c.subject()

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Command stats for %s:\n", u.Mention())
	stats := r.usage.Sorted(u.ID)
	if len(stats) == 0 {
		b.WriteString("No commands used yet.")
	}
	for _, s := range stats {
		fmt.Fprintf(&b, "• %s: %d\n", s.Command, s.Count)
	}
	c.respond(bot.Text(strings.TrimRight(b.String(), "\n")))
	return nil
}

func (r *Router) voicetimeQuery(_ context.Context, c *queryCall) error {
	u := c.subject()
	total := r.voice.Total(u.ID)

	text := fmt.Sprintf("🎙️ %s has spent %s in voice.", u.Mention(), util.FormatSeconds(total))
	if since, open := r.voice.Open(u.ID); open {
		current := elapsedSeconds(since, r.cfg.Now())
		text += fmt.Sprintf(" Currently in voice for %s.", util.FormatSeconds(current))
	}
	c.respond(bot.Text(text))
	return nil
}

// elapsedSeconds is whole seconds from since to now, never negative.
func elapsedSeconds(since, now time.Time) int64 {
	return max(int64(now.Sub(since)/time.Second), 0)
}

// displayName resolves a user's name for announcements, falling back to the
// ID-derived label.
func (r *Router) displayName(ctx context.Context, userID string) string {
	resolveCtx, cancel := context.WithTimeout(ctx, r.cfg.ReplyTimeout)
	defer cancel()

	name, err := r.gw.ResolveDisplayName(resolveCtx, userID)
	if err != nil || name == "" {
		r.logger.Debug().Err(err).Str("user_id", userID).Msg("Display name not resolved")
		return progression.FallbackName(userID)
	}
	return name
}
