// Package bottest provides an in-memory bot.Gateway that records every call.
package bottest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/keshon/server-warden/internal/bot"
)

type Sent struct {
	ChannelID string
	Message   bot.Message
}

type Reply struct {
	Handle     bot.ReplyHandle
	Message    bot.Message
	Visibility bot.Visibility
}

// Call is one platform-effect call (kick, ban, timeout, delete, permission).
type Call struct {
	Name    string
	GuildID string
	Target  string
	Reason  string
	Until   *time.Time
	Count   int
	Allow   bool
}

// Gateway is a fake bot.Gateway built with New. Capabilities default to denied
// unless granted.
type Gateway struct {
	Self string

	// Err, when set for a call name ("kick", "ban", "timeout", "delete_messages",
	// "delete_message", "set_permission", "send"), is returned by that call.
	Err map[string]error
	// Deleted overrides the count DeleteMessages reports; -1 means "as requested".
	Deleted int
	// Names maps user IDs to display names; missing IDs fail resolution.
	Names map[string]string

	mu           sync.Mutex
	capabilities map[string]map[bot.Capability]bool
	sent         []Sent
	replies      []Reply
	calls        []Call
	capChecks    int
}

func New() *Gateway {
	return &Gateway{
		Self:    "bot",
		Err:     map[string]error{},
		Deleted: -1,
		Names:   map[string]string{},
	}
}

// Grant gives userID the listed capabilities.
func (g *Gateway) Grant(userID string, caps ...bot.Capability) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.capabilities == nil {
		g.capabilities = map[string]map[bot.Capability]bool{}
	}
	if g.capabilities[userID] == nil {
		g.capabilities[userID] = map[bot.Capability]bool{}
	}
	for _, c := range caps {
		g.capabilities[userID][c] = true
	}
}

func (g *Gateway) SelfID() string { return g.Self }

func (g *Gateway) HasCapability(_ context.Context, _ bot.Location, userID string, c bot.Capability) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.capChecks++
	if err := g.Err["capability"]; err != nil {
		return false, err
	}
	return g.capabilities[userID][c], nil
}

func (g *Gateway) SendMessage(_ context.Context, channelID string, msg bot.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.Err["send"]; err != nil {
		return err
	}
	g.sent = append(g.sent, Sent{ChannelID: channelID, Message: msg})
	return nil
}

func (g *Gateway) ReplyToCommand(_ context.Context, h bot.ReplyHandle, msg bot.Message, vis bot.Visibility) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.Err["reply"]; err != nil {
		return err
	}
	g.replies = append(g.replies, Reply{Handle: h, Message: msg, Visibility: vis})
	return nil
}

func (g *Gateway) record(c Call) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
	return g.Err[c.Name]
}

func (g *Gateway) Kick(_ context.Context, guildID, userID, reason string) error {
	return g.record(Call{Name: "kick", GuildID: guildID, Target: userID, Reason: reason})
}

func (g *Gateway) Ban(_ context.Context, guildID, userID, reason string) error {
	return g.record(Call{Name: "ban", GuildID: guildID, Target: userID, Reason: reason})
}

func (g *Gateway) Timeout(_ context.Context, guildID, userID string, until *time.Time, reason string) error {
	return g.record(Call{Name: "timeout", GuildID: guildID, Target: userID, Until: until, Reason: reason})
}

func (g *Gateway) DeleteMessages(_ context.Context, channelID string, count int) (int, error) {
	if err := g.record(Call{Name: "delete_messages", Target: channelID, Count: count}); err != nil {
		return 0, err
	}
	if g.Deleted >= 0 {
		return g.Deleted, nil
	}
	return count, nil
}

func (g *Gateway) DeleteMessage(_ context.Context, channelID, messageID string) error {
	return g.record(Call{Name: "delete_message", Target: channelID, Reason: messageID})
}

func (g *Gateway) SetChannelPermission(_ context.Context, channelID, roleID string, allowSend bool) error {
	return g.record(Call{Name: "set_permission", GuildID: roleID, Target: channelID, Allow: allowSend})
}

func (g *Gateway) ResolveDisplayName(_ context.Context, userID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if name, ok := g.Names[userID]; ok {
		return name, nil
	}
	return "", bot.Unresolved("unknown user", fmt.Errorf("user %s not found", userID))
}

func (g *Gateway) Sent() []Sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Sent(nil), g.sent...)
}

func (g *Gateway) Replies() []Reply {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Reply(nil), g.replies...)
}

func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

func (g *Gateway) CapabilityChecks() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.capChecks
}

var _ bot.Gateway = (*Gateway)(nil)
