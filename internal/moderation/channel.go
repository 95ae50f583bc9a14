package moderation

import (
	"context"
	"strings"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/pkg/cmd"
)

const (
	minPurge = 1
	maxPurge = 100
)

type purgeAction struct{ gw bot.Gateway }

func (a *purgeAction) Name() string               { return "purge" }
func (a *purgeAction) Description() string        { return "Delete messages" }
func (a *purgeAction) Capability() bot.Capability { return bot.CanManageMessages }

func (a *purgeAction) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := request(inv)
	if err != nil {
		return err
	}
	if req.Amount < minPurge || req.Amount > maxPurge {
		return bot.Invalid("Amount must be between 1 and 100.")
	}

	deleted, err := a.gw.DeleteMessages(ctx, req.Where.ChannelID, int(req.Amount))
	if err != nil {
		return bot.Failed("Failed to delete messages.", err)
	}
	req.confirm("🧹 Deleted %d messages.", deleted)
	return nil
}

// lockAction toggles send permission for the guild's default role, whose ID
// equals the guild ID.
type lockAction struct {
	gw   bot.Gateway
	lock bool
}

func (a *lockAction) Name() string {
	if a.lock {
		return "lock"
	}
	return "unlock"
}

func (a *lockAction) Description() string {
	if a.lock {
		return "Stop everyone from sending messages in this channel"
	}
	return "Let everyone send messages in this channel again"
}

func (a *lockAction) Capability() bot.Capability { return bot.CanManageChannels }

func (a *lockAction) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := request(inv)
	if err != nil {
		return err
	}

	if err := a.gw.SetChannelPermission(ctx, req.Where.ChannelID, req.Where.GuildID, !a.lock); err != nil {
		return bot.Failed("Failed to update channel permissions.", err)
	}
	if a.lock {
		req.confirm("🔒 Channel locked.")
	} else {
		req.confirm("🔓 Channel unlocked.")
	}
	return nil
}

// sayAction repeats text as the bot. For a text command the invoking message
// is deleted first.
type sayAction struct{ gw bot.Gateway }

func (a *sayAction) Name() string               { return "say" }
func (a *sayAction) Description() string        { return "Make the bot say something" }
func (a *sayAction) Capability() bot.Capability { return bot.IsAdministrator }

func (a *sayAction) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := request(inv)
	if err != nil {
		return err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return bot.Invalid("Nothing to say.")
	}

	if req.Handle.MessageID != "" {
		if err := a.gw.DeleteMessage(ctx, req.Where.ChannelID, req.Handle.MessageID); err != nil {
			return bot.Failed("Failed to delete the command message.", err)
		}
	}
	msg := bot.Text(text)
	req.confirmation = &msg
	return nil
}
