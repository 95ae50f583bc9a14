package router

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/internal/metrics"
	"github.com/keshon/server-warden/internal/moderation"
)

func (r *Router) onMessage(ctx context.Context, m bot.MessageReceived) {
	if m.Author.Bot {
		return
	}

	if level, up := r.engine.Award(m.Author.ID); up {
		metrics.LevelUps.Inc()
		r.send(ctx, m.ChannelID, bot.Text(fmt.Sprintf("🎉 Congrats %s, you leveled up to level %d!", m.Author.Mention(), level)))
	}

	if name, ok := r.fireTrigger(ctx, m); ok {
		r.logger.Debug().Str("trigger", name).Str("user_id", m.Author.ID).Msg("Text trigger fired")
	}

	req, ok := parseTextCommand(r.cfg.Prefix, m)
	if !ok {
		return
	}
	if !r.moderation.Handles(req.Action) {
		r.logger.Debug().Str("command", req.Action).Str("user_id", m.Author.ID).Msg("Unknown text command")
		return
	}
	r.moderation.Dispatch(ctx, req)
}

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

// parseTextCommand turns "!name args..." into a moderation request. It only
// splits arguments; validation is the dispatcher's job. ok is false when the
// message does not carry the prefix or has no command name.
func parseTextCommand(prefix string, m bot.MessageReceived) (*moderation.Request, bool) {
	body, found := strings.CutPrefix(strings.TrimSpace(m.Content), prefix)
	if !found || prefix == "" {
		return nil, false
	}
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, false
	}

	req := &moderation.Request{
		Action:  strings.ToLower(fields[0]),
		Invoker: m.Author,
		Where:   bot.Location{GuildID: m.GuildID, ChannelID: m.ChannelID},
		Handle: bot.ReplyHandle{
			ChannelID: m.ChannelID,
			MessageID: m.MessageID,
			UserID:    m.Author.ID,
		},
	}
	args := fields[1:]

	switch req.Action {
	case "say":
		req.Text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(body), fields[0]))
	case "purge":
		req.Amount = intArg(args, 0)
	case "kick", "ban":
		req.Target = targetArg(args, m.Mentions)
		req.Reason = joinFrom(args, 1)
	case "timeout":
		req.Target = targetArg(args, m.Mentions)
		if len(args) > 1 {
			req.Duration = args[1]
		}
		req.Reason = joinFrom(args, 2)
	case "untimeout":
		req.Target = targetArg(args, m.Mentions)
	case "addxp", "removexp":
		req.Target = targetArg(args, m.Mentions)
		req.Amount = intArg(args, 1)
	}
	return req, true
}

// targetArg resolves the first argument, a mention or a bare user ID, to a
// user. Mentioned users keep their username.
func targetArg(args []string, mentions []bot.User) *bot.User {
	if len(args) == 0 {
		return nil
	}
	id := args[0]
	if match := mentionPattern.FindStringSubmatch(id); match != nil {
		id = match[1]
	} else if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return nil
	}

	for _, u := range mentions {
		if u.ID == id {
			return &u
		}
	}
	return &bot.User{ID: id}
}

// intArg parses args[i]; anything missing or malformed is 0, which every
// amount check rejects.
func intArg(args []string, i int) int64 {
	if i >= len(args) {
		return 0
	}
	n, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func joinFrom(args []string, i int) string {
	if i >= len(args) {
		return ""
	}
	return strings.Join(args[i:], " ")
}
