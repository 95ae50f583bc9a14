package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/internal/metrics"
)

// trigger is a canned text response. Triggers are tried in order against the
// lower-cased, trimmed message and the first match wins.
type trigger struct {
	name   string
	match  func(m bot.MessageReceived, content string) bool
	handle func(ctx context.Context, m bot.MessageReceived)
}

const keyResponse = "dumb it's 'vault'. Say 'ok gimme key role' to stop me answering u"

func (r *Router) defaultTriggers() []trigger {
	return []trigger{
		{
			name: "level",
			match: func(_ bot.MessageReceived, content string) bool {
				return strings.HasPrefix(content, "level?")
			},
			handle: r.levelTrigger,
		},
		{
			name: "xp_left",
			match: func(_ bot.MessageReceived, content string) bool {
				return content == "xp left"
			},
			handle: func(ctx context.Context, m bot.MessageReceived) {
				left := r.engine.XPToNextLevel(m.Author.ID)
				r.send(ctx, m.ChannelID, bot.Text(fmt.Sprintf("⏳ %s, you need %d XP to next level.", m.Author.Mention(), left)))
			},
		},
		{
			name: "help",
			match: func(m bot.MessageReceived, content string) bool {
				return content == "what commands" || r.mentionsSelf(m)
			},
			handle: func(ctx context.Context, m bot.MessageReceived) {
				r.send(ctx, m.ChannelID, bot.Text(r.helpText()))
			},
		},
		{
			name: "key",
			match: func(_ bot.MessageReceived, content string) bool {
				return content == "key"
			},
			handle: func(ctx context.Context, m bot.MessageReceived) {
				r.send(ctx, m.ChannelID, bot.Text(keyResponse))
			},
		},
	}
}

func (r *Router) levelTrigger(ctx context.Context, m bot.MessageReceived) {
	target := m.Author
	if len(m.Mentions) > 0 {
		target = m.Mentions[0]
	}
	rec := r.engine.Get(target.ID)
	r.send(ctx, m.ChannelID, bot.Text(fmt.Sprintf("📈 %s is level %d with %d XP.", target.Mention(), rec.Level, rec.XP)))
}

// fireTrigger runs at most one trigger and reports which, if any.
func (r *Router) fireTrigger(ctx context.Context, m bot.MessageReceived) (string, bool) {
	content := strings.ToLower(strings.TrimSpace(m.Content))
	for _, t := range r.triggers {
		if !t.match(m, content) {
			continue
		}
		metrics.TriggersFired.WithLabelValues(t.name).Inc()
		t.handle(ctx, m)
		return t.name, true
	}
	return "", false
}

func (r *Router) mentionsSelf(m bot.MessageReceived) bool {
	self := r.gw.SelfID()
	if self == "" {
		return false
	}
	for _, u := range m.Mentions {
		if u.ID == self {
			return true
		}
	}
	return false
}

func (r *Router) helpText() string {
	var slash, text []string
	for _, name := range r.moderation.Actions() {
		slash = append(slash, "/"+name)
		text = append(text, r.cfg.Prefix+name)
	}
	for _, name := range r.queries.Names() {
		slash = append(slash, "/"+name)
	}

	var b strings.Builder
	b.WriteString("**Commands:**\n")
	b.WriteString(strings.Join(slash, ", "))
	b.WriteString("\n")
	b.WriteString(strings.Join(text, ", "))
	b.WriteString("\nlevel? @user, xp left")
	return b.String()
}
