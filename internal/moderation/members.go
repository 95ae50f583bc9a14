package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/pkg/cmd"
	"github.com/keshon/server-warden/pkg/util"
)

// MaxTimeout is the longest communication timeout the platform accepts.
const MaxTimeout = 28 * 24 * time.Hour

type kickAction struct{ gw bot.Gateway }

func (a *kickAction) Name() string               { return "kick" }
func (a *kickAction) Description() string        { return "Kick a user" }
func (a *kickAction) Capability() bot.Capability { return bot.CanKick }

func (a *kickAction) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := request(inv)
	if err != nil {
		return err
	}
	target, err := req.requireTarget()
	if err != nil {
		return err
	}

	if err := a.gw.Kick(ctx, req.Where.GuildID, target.ID, req.reason()); err != nil {
		return bot.Failed("Failed to kick.", err)
	}
	req.confirm("✅ %s kicked. Reason: %s", displayTarget(target), req.reason())
	return nil
}

type banAction struct{ gw bot.Gateway }

func (a *banAction) Name() string               { return "ban" }
func (a *banAction) Description() string        { return "Ban a user" }
func (a *banAction) Capability() bot.Capability { return bot.CanBan }

func (a *banAction) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := request(inv)
	if err != nil {
		return err
	}
	target, err := req.requireTarget()
	if err != nil {
		return err
	}

	if err := a.gw.Ban(ctx, req.Where.GuildID, target.ID, req.reason()); err != nil {
		return bot.Failed("Failed to ban.", err)
	}
	req.confirm("✅ %s banned. Reason: %s", displayTarget(target), req.reason())
	return nil
}

type timeoutAction struct {
	gw  bot.Gateway
	now func() time.Time
}

func (a *timeoutAction) Name() string               { return "timeout" }
func (a *timeoutAction) Description() string        { return "Timeout a user" }
func (a *timeoutAction) Capability() bot.Capability { return bot.CanModerate }

func (a *timeoutAction) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := request(inv)
	if err != nil {
		return err
	}
	target, err := req.requireTarget()
	if err != nil {
		return err
	}

	d, ok := util.ParseDurationValue(req.Duration)
	if !ok {
		return bot.Invalid("Invalid duration! Use 5m, 1h, 2d format.")
	}
	if d > MaxTimeout {
		return bot.Invalid(fmt.Sprintf("Timeout can be at most %s.", util.FormatSeconds(int64(MaxTimeout/time.Second))))
	}

	until := a.now().UTC().Add(d)
	if err := a.gw.Timeout(ctx, req.Where.GuildID, target.ID, &until, req.reason()); err != nil {
		return bot.Failed("Timeout failed.", err)
	}
	req.confirm("⏳ %s timed out for %s.", target.Mention(), req.Duration)
	return nil
}

type untimeoutAction struct{ gw bot.Gateway }

func (a *untimeoutAction) Name() string               { return "untimeout" }
func (a *untimeoutAction) Description() string        { return "Remove timeout" }
func (a *untimeoutAction) Capability() bot.Capability { return bot.CanModerate }

func (a *untimeoutAction) Run(ctx context.Context, inv *cmd.Invocation) error {
	req, err := request(inv)
	if err != nil {
		return err
	}
	target, err := req.requireTarget()
	if err != nil {
		return err
	}

	if err := a.gw.Timeout(ctx, req.Where.GuildID, target.ID, nil, ""); err != nil {
		return bot.Failed("Failed to remove timeout.", err)
	}
	req.confirm("✅ Timeout removed for %s.", target.Mention())
	return nil
}

func displayTarget(u *bot.User) string {
	if u.Username != "" {
		return "**" + u.Username + "**"
	}
	return u.Mention()
}
