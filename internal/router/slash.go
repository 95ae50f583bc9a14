package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/internal/moderation"
	"github.com/keshon/server-warden/pkg/cmd"
)

// Slash option names shared with the command definitions the adapter
// registers.
const (
	OptionMember   = "member"
	OptionReason   = "reason"
	OptionDuration = "duration"
	OptionAmount   = "amount"
	OptionMessage  = "message"
)

// onSlashCommand replies exactly once on every path: the dispatcher replies
// for moderation actions, runQuery for queries, and unknown names get a
// private error.
func (r *Router) onSlashCommand(ctx context.Context, e bot.SlashCommandInvoked) {
	name := strings.ToLower(e.Name)

	if r.moderation.Handles(name) {
		r.moderation.Dispatch(ctx, slashRequest(name, e))
		return
	}
	if q, ok := r.queries.Get(name); ok {
		r.runQuery(ctx, q, e)
		return
	}

	r.logger.Warn().Str("command", e.Name).Str("user_id", e.Invoker.ID).Msg("Unknown slash command")
	r.reply(ctx, e.Handle, bot.Text("❌ Unknown command."), bot.Private)
}

func slashRequest(name string, e bot.SlashCommandInvoked) *moderation.Request {
	req := &moderation.Request{
		Action:  name,
		Invoker: e.Invoker,
		Where:   bot.Location{GuildID: e.GuildID, ChannelID: e.ChannelID},
		Handle:  e.Handle,
	}
	if u, ok := e.Options.User(OptionMember); ok {
		req.Target = &u
	}
	req.Reason, _ = e.Options.String(OptionReason)
	req.Duration, _ = e.Options.String(OptionDuration)
	req.Amount, _ = e.Options.Int(OptionAmount)
	req.Text, _ = e.Options.String(OptionMessage)
	return req
}

func (r *Router) runQuery(ctx context.Context, q cmd.Command, e bot.SlashCommandInvoked) {
	call := &queryCall{event: e}
	err := q.Run(ctx, &cmd.Invocation{
		Name:     q.Name(),
		CallerID: e.Invoker.ID,
		Data:     call,
	})

	switch {
	case err != nil:
		r.logger.Warn().Err(err).Str("command", q.Name()).Str("user_id", e.Invoker.ID).Msg("Query failed")
		r.reply(ctx, e.Handle, bot.Text("❌ "+bot.ReasonOf(err, "Something went wrong.")), bot.Private)
	case call.reply == nil:
		r.reply(ctx, e.Handle, bot.Text(fmt.Sprintf("✅ %s done.", q.Name())), bot.Private)
	default:
		r.reply(ctx, e.Handle, *call.reply, bot.Public)
	}
}
