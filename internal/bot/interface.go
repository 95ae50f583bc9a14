// Package bot holds the contract between the event-processing core and the chat
// platform: normalized inbound events, the Gateway the core talks back through,
// capability tags and the error taxonomy.
package bot

import (
	"context"
	"time"
)

// Gateway is everything the core needs from the chat platform. The Discord
// adapter implements it; tests use bottest.Gateway.
type Gateway interface {
	// SelfID is the bot's own user ID, used to detect mentions.
	SelfID() string

	HasCapability(ctx context.Context, loc Location, userID string, capability Capability) (bool, error)

	SendMessage(ctx context.Context, channelID string, msg Message) error
	ReplyToCommand(ctx context.Context, handle ReplyHandle, msg Message, vis Visibility) error

	Kick(ctx context.Context, guildID, userID, reason string) error
	Ban(ctx context.Context, guildID, userID, reason string) error
	// Timeout sets or clears (until == nil) a member's communication timeout.
	Timeout(ctx context.Context, guildID, userID string, until *time.Time, reason string) error

	DeleteMessages(ctx context.Context, channelID string, count int) (int, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SetChannelPermission(ctx context.Context, channelID, roleID string, allowSend bool) error

	ResolveDisplayName(ctx context.Context, userID string) (string, error)
}

// Location is the guild/channel pair an event or invocation happened in.
type Location struct {
	GuildID   string
	ChannelID string
}

// Visibility of a command reply.
type Visibility int

const (
	Public Visibility = iota
	Private
)

func (v Visibility) String() string {
	if v == Private {
		return "private"
	}
	return "public"
}

// Message is an outbound message: plain text, an embed, or both.
type Message struct {
	Content string
	Embed   *Embed
}

// Text is shorthand for a content-only message.
func Text(content string) Message { return Message{Content: content} }

type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// ReplyHandle identifies what a command reply answers. Slash invocations fill
// the interaction fields; legacy text commands fill MessageID.
type ReplyHandle struct {
	InteractionID    string
	InteractionToken string
	ApplicationID    string
	// Deferred is set once the platform has been told a reply is coming, so
	// the reply completes the acknowledgement instead of answering fresh.
	Deferred  bool
	ChannelID string
	MessageID string
	UserID    string
}

// IsInteraction reports whether the handle refers to a slash interaction.
func (h ReplyHandle) IsInteraction() bool {
	return h.InteractionID != "" && h.InteractionToken != ""
}
