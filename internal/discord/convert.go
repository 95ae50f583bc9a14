package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/server-warden/internal/bot"
)

// EmbedColor is the accent used on every embed the bot sends.
const EmbedColor = 0xb01e66

func toUser(u *discordgo.User) bot.User {
	if u == nil {
		return bot.User{}
	}
	return bot.User{ID: u.ID, Username: u.Username, Bot: u.Bot}
}

// displayName prefers the guild nickname, then the global display name, then
// the username.
func displayName(u *discordgo.User, m *discordgo.Member) string {
	if m != nil && m.Nick != "" {
		return m.Nick
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func messageEvent(m *discordgo.MessageCreate) (bot.MessageReceived, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return bot.MessageReceived{}, false
	}
	ev := bot.MessageReceived{
		Author:    toUser(m.Author),
		Content:   m.Content,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
	}
	for _, u := range m.Mentions {
		ev.Mentions = append(ev.Mentions, toUser(u))
	}
	return ev, true
}

// voiceEvent maps a voice state update. BeforeUpdate is nil when discordgo
// had no earlier state for the member, which means they were not in voice.
func voiceEvent(v *discordgo.VoiceStateUpdate, at time.Time) (bot.VoiceStateChanged, bool) {
	if v == nil || v.VoiceState == nil {
		return bot.VoiceStateChanged{}, false
	}

	member := bot.User{ID: v.UserID}
	if v.Member != nil && v.Member.User != nil {
		member = toUser(v.Member.User)
	}
	if member.ID == "" {
		return bot.VoiceStateChanged{}, false
	}

	ev := bot.VoiceStateChanged{
		Member:     member,
		GuildID:    v.GuildID,
		NewChannel: v.ChannelID,
		At:         at,
	}
	if v.BeforeUpdate != nil {
		ev.PreviousChannel = v.BeforeUpdate.ChannelID
	}
	return ev, true
}

func slashEvent(i *discordgo.InteractionCreate) (bot.SlashCommandInvoked, bool) {
	if i == nil || i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand {
		return bot.SlashCommandInvoked{}, false
	}

	var invoker *discordgo.User
	switch {
	case i.Member != nil && i.Member.User != nil:
		invoker = i.Member.User
	case i.User != nil:
		invoker = i.User
	default:
		return bot.SlashCommandInvoked{}, false
	}

	data := i.ApplicationCommandData()
	user := toUser(invoker)
	return bot.SlashCommandInvoked{
		Invoker:   user,
		Name:      data.Name,
		Options:   slashOptions(data),
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		Handle: bot.ReplyHandle{
			InteractionID:    i.ID,
			InteractionToken: i.Token,
			ApplicationID:    i.AppID,
			ChannelID:        i.ChannelID,
			UserID:           user.ID,
		},
	}, true
}

func slashOptions(data discordgo.ApplicationCommandInteractionData) bot.Options {
	opts := bot.Options{
		Strings: map[string]string{},
		Ints:    map[string]int64{},
		Users:   map[string]bot.User{},
	}
	for _, o := range data.Options {
		switch o.Type {
		case discordgo.ApplicationCommandOptionString:
			opts.Strings[o.Name] = o.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			opts.Ints[o.Name] = o.IntValue()
		case discordgo.ApplicationCommandOptionUser:
			id, _ := o.Value.(string)
			u := bot.User{ID: id}
			if data.Resolved != nil {
				if resolved, ok := data.Resolved.Users[id]; ok {
					u = toUser(resolved)
				}
			}
			opts.Users[o.Name] = u
		}
	}
	return opts
}

func toMessageSend(msg bot.Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{Content: msg.Content}
	if msg.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toEmbed(msg.Embed)}
	}
	return send
}

func toEmbed(e *bot.Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       EmbedColor,
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return embed
}

func interactionResponse(msg bot.Message, vis bot.Visibility) *discordgo.InteractionResponse {
	send := toMessageSend(msg)
	data := &discordgo.InteractionResponseData{
		Content: send.Content,
		Embeds:  send.Embeds,
	}
	if vis == bot.Private {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}

// deferredResponse acknowledges an interaction with a public "thinking"
// placeholder that a later edit or follow-up completes.
func deferredResponse() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
}

func webhookEdit(msg bot.Message) *discordgo.WebhookEdit {
	send := toMessageSend(msg)
	content := send.Content
	embeds := send.Embeds
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	return &discordgo.WebhookEdit{Content: &content, Embeds: &embeds}
}

func followupParams(msg bot.Message, vis bot.Visibility) *discordgo.WebhookParams {
	send := toMessageSend(msg)
	params := &discordgo.WebhookParams{Content: send.Content, Embeds: send.Embeds}
	if vis == bot.Private {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	return params
}

func interactionOf(h bot.ReplyHandle) *discordgo.Interaction {
	return &discordgo.Interaction{ID: h.InteractionID, AppID: h.ApplicationID, Token: h.InteractionToken}
}

var capabilityPermissions = map[bot.Capability]int64{
	bot.CanKick:           discordgo.PermissionKickMembers,
	bot.CanBan:            discordgo.PermissionBanMembers,
	bot.CanModerate:       discordgo.PermissionModerateMembers,
	bot.CanManageMessages: discordgo.PermissionManageMessages,
	bot.CanManageChannels: discordgo.PermissionManageChannels,
	bot.IsAdministrator:   discordgo.PermissionAdministrator,
}

// permissionFor maps a capability to its Discord permission bit.
func permissionFor(c bot.Capability) (int64, bool) {
	p, ok := capabilityPermissions[c]
	return p, ok
}

// grants reports whether computed channel permissions include c. Discord
// already folds administrator and ownership into PermissionAll.
func grants(perms int64, c bot.Capability) bool {
	bit, ok := permissionFor(c)
	if !ok {
		return false
	}
	return perms&bit == bit
}

// overwriteSend returns the allow/deny pair for role with the send bit set
// as requested and every other bit of the existing overwrite kept.
func overwriteSend(existing []*discordgo.PermissionOverwrite, roleID string, allowSend bool) (allow, deny int64) {
	for _, o := range existing {
		if o.ID == roleID && o.Type == discordgo.PermissionOverwriteTypeRole {
			allow, deny = o.Allow, o.Deny
			break
		}
	}
	if allowSend {
		allow |= discordgo.PermissionSendMessages
		deny &^= discordgo.PermissionSendMessages
	} else {
		deny |= discordgo.PermissionSendMessages
		allow &^= discordgo.PermissionSendMessages
	}
	return allow, deny
}
