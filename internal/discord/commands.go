package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/server-warden/internal/router"
	"github.com/keshon/server-warden/pkg/retrylimit"
)

func defaultPerms(p int64) *int64 { return &p }

func memberOption(desc string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        router.OptionMember,
		Description: desc,
		Required:    required,
	}
}

func reasonOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        router.OptionReason,
		Description: "Reason for the audit log",
	}
}

func amountOption(desc string, lo, hi float64) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        router.OptionAmount,
		Description: desc,
		Required:    true,
		MinValue:    &lo,
		MaxValue:    hi,
	}
}

// slashCommands are the definitions registered in every guild. The default
// permissions only hide commands in the client; the core checks capabilities
// again on every invocation.
func slashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "kick",
			Description:              "Kick a user",
			DefaultMemberPermissions: defaultPerms(discordgo.PermissionKickMembers),
			Options:                  []*discordgo.ApplicationCommandOption{memberOption("Member to kick", true), reasonOption()},
		},
		{
			Name:                     "ban",
			Description:              "Ban a user",
			DefaultMemberPermissions: defaultPerms(discordgo.PermissionBanMembers),
			Options:                  []*discordgo.ApplicationCommandOption{memberOption("Member to ban", true), reasonOption()},
		},
		{
			Name:                     "timeout",
			Description:              "Timeout a user",
			DefaultMemberPermissions: defaultPerms(discordgo.PermissionModerateMembers),
			Options: []*discordgo.ApplicationCommandOption{
				memberOption("Member to time out", true),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        router.OptionDuration,
					Description: "How long, e.g. 5m, 1h, 2d",
					Required:    true,
				},
				reasonOption(),
			},
		},
		{
			Name:                     "untimeout",
			Description:              "Remove timeout",
			DefaultMemberPermissions: defaultPerms(discordgo.PermissionModerateMembers),
			Options:                  []*discordgo.ApplicationCommandOption{memberOption("Member to release", true)},
		},
		{
			Name:                     "purge",
			Description:              "Delete messages",
			DefaultMemberPermissions: defaultPerms(discordgo.PermissionManageMessages),
			Options:                  []*discordgo.ApplicationCommandOption{amountOption("How many messages (1-100)", 1, 100)},
		},
		{
			Name:                     "lock",
			Description:              "Stop everyone from sending messages in this channel",
			DefaultMemberPermissions: defaultPerms(discordgo.PermissionManageChannels),
		},
		{
			Name:                     "unlock",
			Description:              "Let everyone send messages in this channel again",
			DefaultMemberPermissions: defaultPerms(discordgo.PermissionManageChannels),
		},
		{
			Name:                     "say",
			Description:              "Make the bot say something",
			DefaultMemberPermissions: defaultPerms(discordgo.PermissionAdministrator),
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        router.OptionMessage,
				Description: "What to say",
				Required:    true,
			}},
		},
		{
			Name:                     "addxp",
			Description:              "Add XP to a user",
			DefaultMemberPermissions: defaultPerms(discordgo.PermissionAdministrator),
			Options:                  []*discordgo.ApplicationCommandOption{memberOption("Member", true), amountOption("XP to add", 1, 1_000_000)},
		},
		{
			Name:                     "removexp",
			Description:              "Remove XP from a user",
			DefaultMemberPermissions: defaultPerms(discordgo.PermissionAdministrator),
			Options:                  []*discordgo.ApplicationCommandOption{memberOption("Member", true), amountOption("XP to remove", 1, 1_000_000)},
		},
		{
			Name:        "level",
			Description: "Show a member's level and XP",
			Options:     []*discordgo.ApplicationCommandOption{memberOption("Member (defaults to you)", false)},
		},
		{
			Name:        "leaderboard",
			Description: "Show the XP leaderboard",
		},
		{
			Name:        "cmdstats",
			Description: "View command usage stats for a user",
			Options:     []*discordgo.ApplicationCommandOption{memberOption("Member (defaults to you)", false)},
		},
		{
			Name:        "voicetime",
			Description: "Show time spent in voice channels",
			Options:     []*discordgo.ApplicationCommandOption{memberOption("Member (defaults to you)", false)},
		},
	}
}

// commandPlan compares the registered commands with the wanted ones by
// content hash and returns what to create or update and what to delete.
func commandPlan(existing, wanted []*discordgo.ApplicationCommand) (changed, obsolete []*discordgo.ApplicationCommand) {
	have := make(map[string]string, len(existing))
	for _, c := range existing {
		have[c.Name] = hashCommand(c)
	}

	want := make(map[string]bool, len(wanted))
	for _, c := range wanted {
		if c.Type == 0 {
			c.Type = discordgo.ChatApplicationCommand
		}
		want[c.Name] = true
		if h, ok := have[c.Name]; !ok || h != hashCommand(c) {
			changed = append(changed, c)
		}
	}
	for _, c := range existing {
		if !want[c.Name] {
			obsolete = append(obsolete, c)
		}
	}
	return changed, obsolete
}

// registerCommands brings the guild's slash commands in line with
// slashCommands, touching only what differs. Calls are paced and retried;
// creating a command by name is an upsert, so repeating one is harmless.
func (b *Bot) registerCommands(ctx context.Context, guildID string) error {
	appID := b.SelfID()
	if appID == "" {
		user, err := b.dg.User("@me", discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("fetch self: %w", err)
		}
		appID = user.ID
	}

	existing, err := b.dg.ApplicationCommands(appID, guildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("list commands: %w", err)
	}
	changed, obsolete := commandPlan(existing, slashCommands())

	logger := b.logger.With().Str("guild_id", guildID).Logger()
	retry := retrylimit.DefaultConfig()
	retry.StatusOf = statusOf
	retry.Logger = logger

	for _, c := range obsolete {
		err := retrylimit.Do(ctx, b.limiter, retry, func(ctx context.Context) error {
			return b.dg.ApplicationCommandDelete(appID, guildID, c.ID, discordgo.WithContext(ctx))
		})
		if err != nil {
			logger.Error().Err(err).Str("command", c.Name).Msg("Failed to delete obsolete command")
			continue
		}
		logger.Info().Str("command", c.Name).Msg("Deleted obsolete command")
	}

	var failed int
	for _, c := range changed {
		err := retrylimit.Do(ctx, b.limiter, retry, func(ctx context.Context) error {
			_, err := b.dg.ApplicationCommandCreate(appID, guildID, c, discordgo.WithContext(ctx))
			return err
		})
		if err != nil {
			failed++
			logger.Error().Err(err).Str("command", c.Name).Msg("Can't create command")
			continue
		}
		logger.Info().Str("command", c.Name).Msg("Command registered")
	}

	logger.Info().
		Int("changed", len(changed)).
		Int("obsolete", len(obsolete)).
		Int("failed", failed).
		Msg("Slash commands synced")
	if failed > 0 {
		return fmt.Errorf("%d of %d commands failed to register", failed, len(changed))
	}
	return nil
}
