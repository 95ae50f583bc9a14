package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/server-warden/internal/bot"
)

// bulkDeleteMaxAge is how old a message may be and still go through bulk
// delete; older ones are deleted one by one.
const bulkDeleteMaxAge = 14 * 24 * time.Hour

func (b *Bot) SelfID() string {
	if b.dg.State == nil || b.dg.State.User == nil {
		return ""
	}
	return b.dg.State.User.ID
}

func (b *Bot) HasCapability(ctx context.Context, loc bot.Location, userID string, c bot.Capability) (bool, error) {
	if loc.GuildID == "" {
		return false, nil
	}
	perms, err := b.dg.UserChannelPermissions(userID, loc.ChannelID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("channel permissions for %s: %w", userID, err)
	}
	return grants(perms, c), nil
}

func (b *Bot) SendMessage(ctx context.Context, channelID string, msg bot.Message) error {
	if channelID == "" {
		return bot.Unresolved("no channel", nil)
	}
	_, err := b.dg.ChannelMessageSendComplex(channelID, toMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return bot.Unresolved("channel not found", err)
		}
		return fmt.Errorf("send to %s: %w", channelID, err)
	}
	return nil
}

// ReplyToCommand answers a slash interaction, completing the deferred
// acknowledgement when there is one. For text commands a public reply goes to
// the channel and a private one to the invoker's DMs.
func (b *Bot) ReplyToCommand(ctx context.Context, h bot.ReplyHandle, msg bot.Message, vis bot.Visibility) error {
	if h.IsInteraction() {
		interaction := interactionOf(h)
		if h.Deferred {
			return b.replyDeferred(ctx, interaction, msg, vis)
		}
		if err := b.dg.InteractionRespond(interaction, interactionResponse(msg, vis), discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("interaction response: %w", err)
		}
		return nil
	}

	if vis == bot.Public {
		return b.SendMessage(ctx, h.ChannelID, msg)
	}
	dm, err := b.dg.UserChannelCreate(h.UserID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open DM with %s: %w", h.UserID, err)
	}
	return b.SendMessage(ctx, dm.ID, msg)
}

// replyDeferred completes an acknowledged interaction. A public reply replaces
// the placeholder. A private one removes the placeholder first, since the
// first follow-up would otherwise take over the public placeholder.
func (b *Bot) replyDeferred(ctx context.Context, interaction *discordgo.Interaction, msg bot.Message, vis bot.Visibility) error {
	if vis == bot.Public {
		if _, err := b.dg.InteractionResponseEdit(interaction, webhookEdit(msg), discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("edit interaction response: %w", err)
		}
		return nil
	}

	if err := b.dg.InteractionResponseDelete(interaction, discordgo.WithContext(ctx)); err != nil {
		b.logger.Debug().Err(err).Msg("Failed to remove deferred placeholder")
	}
	if _, err := b.dg.FollowupMessageCreate(interaction, true, followupParams(msg, vis), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("interaction follow-up: %w", err)
	}
	return nil
}

func (b *Bot) Kick(ctx context.Context, guildID, userID, reason string) error {
	return b.dg.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (b *Bot) Ban(ctx context.Context, guildID, userID, reason string) error {
	return b.dg.GuildBanCreateWithReason(guildID, userID, reason, 0, discordgo.WithContext(ctx))
}

// Timeout sets the communication timeout. Discord takes no reason on this
// endpoint, so it is only logged.
func (b *Bot) Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error {
	b.logger.Debug().
		Str("guild_id", guildID).
		Str("user_id", userID).
		Str("reason", reason).
		Bool("clear", until == nil).
		Msg("Updating member timeout")
	return b.dg.GuildMemberTimeout(guildID, userID, until, discordgo.WithContext(ctx))
}

// DeleteMessages removes up to count of the latest messages in channelID and
// returns how many were deleted. Messages too old for bulk delete are removed
// individually, paced by the limiter.
func (b *Bot) DeleteMessages(ctx context.Context, channelID string, count int) (int, error) {
	msgs, err := b.dg.ChannelMessages(channelID, count, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("list messages: %w", err)
	}

	recent, old := splitByAge(msgs, time.Now())
	deleted := 0

	switch len(recent) {
	case 0:
	case 1:
		if err := b.dg.ChannelMessageDelete(channelID, recent[0], discordgo.WithContext(ctx)); err != nil {
			return deleted, fmt.Errorf("delete message: %w", err)
		}
		deleted++
	default:
		if err := b.dg.ChannelMessagesBulkDelete(channelID, recent, discordgo.WithContext(ctx)); err != nil {
			return deleted, fmt.Errorf("bulk delete: %w", err)
		}
		deleted += len(recent)
	}

	for _, id := range old {
		if err := b.limiter.Wait(ctx); err != nil {
			return deleted, err
		}
		if err := b.dg.ChannelMessageDelete(channelID, id, discordgo.WithContext(ctx)); err != nil {
			if statusOf(err) == http.StatusTooManyRequests {
				b.limiter.Pushback()
			}
			return deleted, fmt.Errorf("delete message: %w", err)
		}
		b.limiter.Success()
		deleted++
	}
	return deleted, nil
}

func (b *Bot) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return b.dg.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

// SetChannelPermission flips Send Messages for roleID on channelID and keeps
// the rest of any existing overwrite.
func (b *Bot) SetChannelPermission(ctx context.Context, channelID, roleID string, allowSend bool) error {
	ch, err := b.dg.State.Channel(channelID)
	if err != nil {
		if ch, err = b.dg.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("fetch channel: %w", err)
		}
	}

	allow, deny := overwriteSend(ch.PermissionOverwrites, roleID, allowSend)
	return b.dg.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, allow, deny, discordgo.WithContext(ctx))
}

// ResolveDisplayName answers from the name cache, then from the API.
func (b *Bot) ResolveDisplayName(ctx context.Context, userID string) (string, error) {
	if name, ok := b.names.Get(userID); ok {
		return name, nil
	}
	u, err := b.dg.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", bot.Unresolved("user not found", err)
	}
	name := displayName(u, nil)
	b.names.Add(userID, name)
	return name, nil
}

func splitByAge(msgs []*discordgo.Message, now time.Time) (recent, old []string) {
	for _, m := range msgs {
		if now.Sub(m.Timestamp) < bulkDeleteMaxAge {
			recent = append(recent, m.ID)
		} else {
			old = append(old, m.ID)
		}
	}
	return recent, old
}

func statusOf(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode
	}
	return 0
}

var _ bot.Gateway = (*Bot)(nil)
