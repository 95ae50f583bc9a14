package router

import (
	"context"
	"fmt"

	"github.com/keshon/server-warden/internal/bot"
)

func (r *Router) onMemberJoined(ctx context.Context, e bot.MemberJoined) {
	r.announce(ctx, fmt.Sprintf("👋 Welcome %s! We now have %d members.", e.Member.Mention(), e.Guild.MemberCount))
}

func (r *Router) onMemberLeft(ctx context.Context, e bot.MemberLeft) {
	name := e.Member.Username
	if name == "" {
		name = r.displayName(ctx, e.Member.ID)
	}
	r.announce(ctx, fmt.Sprintf("😢 %s has left. We now have %d members.", name, e.Guild.MemberCount))
}

// announce posts to the welcome channel. With no channel configured it does
// nothing; a failed send is logged.
func (r *Router) announce(ctx context.Context, text string) {
	if r.cfg.WelcomeChannelID == "" {
		r.logger.Debug().Msg("No welcome channel configured, skipping announcement")
		return
	}
	r.send(ctx, r.cfg.WelcomeChannelID, bot.Text(text))
}
