package moderation

import (
	"context"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/internal/metrics"
	"github.com/keshon/server-warden/internal/progression"
	"github.com/keshon/server-warden/pkg/cmd"
)

const maxXPAmount = 1_000_000

// xpAction adds or removes XP. Removal never lowers the level (see
// progression's high-water policy).
type xpAction struct {
	engine *progression.Engine
	remove bool
}

func (a *xpAction) Name() string {
	if a.remove {
		return "removexp"
	}
	return "addxp"
}

func (a *xpAction) Description() string {
	if a.remove {
		return "Remove XP from a user"
	}
	return "Add XP to a user"
}

func (a *xpAction) Capability() bot.Capability { return bot.IsAdministrator }

func (a *xpAction) Run(_ context.Context, inv *cmd.Invocation) error {
	req, err := request(inv)
	if err != nil {
		return err
	}
	target, err := req.requireTarget()
	if err != nil {
		return err
	}
	if req.Amount <= 0 {
		return bot.Invalid("Amount must be positive.")
	}
	if req.Amount > maxXPAmount {
		return bot.Invalid("Amount is too large.")
	}

	if a.remove {
		a.engine.AddXP(target.ID, -int(req.Amount))
		req.confirm("✅ Removed %d XP from %s.", req.Amount, target.Mention())
		return nil
	}

	level, up := a.engine.AddXP(target.ID, int(req.Amount))
	req.confirm("✅ Added %d XP to %s.", req.Amount, target.Mention())
	if up {
		metrics.LevelUps.Inc()
		req.followup("🎉 %s leveled up to level %d!", target.Mention(), level)
	}
	return nil
}
