package bot

import "time"

// Event is one normalized inbound event. The concrete types below are the only
// implementations.
type Event interface {
	Kind() string
}

type User struct {
	ID       string
	Username string
	Bot      bool
}

// Mention renders the platform mention markup for the user.
func (u User) Mention() string { return "<@" + u.ID + ">" }

type Guild struct {
	ID          string
	MemberCount int
}

type MessageReceived struct {
	Author    User
	Content   string
	Mentions  []User
	GuildID   string
	ChannelID string
	MessageID string
}

type MemberJoined struct {
	Member User
	Guild  Guild
}

type MemberLeft struct {
	Member User
	Guild  Guild
}

// VoiceStateChanged carries the channel the member was in before the update
// and the one they are in now. An empty channel means "not in voice".
type VoiceStateChanged struct {
	Member          User
	GuildID         string
	PreviousChannel string
	NewChannel      string
	At              time.Time
}

type SlashCommandInvoked struct {
	Invoker   User
	Name      string
	Options   Options
	GuildID   string
	ChannelID string
	Handle    ReplyHandle
}

func (MessageReceived) Kind() string     { return "message" }
func (MemberJoined) Kind() string        { return "member_join" }
func (MemberLeft) Kind() string          { return "member_leave" }
func (VoiceStateChanged) Kind() string   { return "voice_state" }
func (SlashCommandInvoked) Kind() string { return "slash_command" }

// Options are the typed arguments of a slash invocation.
type Options struct {
	Strings map[string]string
	Ints    map[string]int64
	Users   map[string]User
}

func (o Options) String(name string) (string, bool) {
	v, ok := o.Strings[name]
	return v, ok
}

func (o Options) Int(name string) (int64, bool) {
	v, ok := o.Ints[name]
	return v, ok
}

func (o Options) User(name string) (User, bool) {
	v, ok := o.Users[name]
	return v, ok
}
