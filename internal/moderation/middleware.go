package moderation

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/internal/usage"
	"github.com/keshon/server-warden/pkg/cmd"
	"github.com/rs/zerolog"
)

// Action is a moderation command gated by a capability.
type Action interface {
	cmd.Command
	Capability() bot.Capability
}

func request(inv *cmd.Invocation) (*Request, error) {
	req, ok := inv.Data.(*Request)
	if !ok || req == nil {
		return nil, fmt.Errorf("moderation: unexpected invocation payload %T", inv.Data)
	}
	return req, nil
}

// withCapability denies the invocation unless the invoker holds the action's
// capability. A failed lookup also denies.
func withCapability(gw bot.Gateway, logger zerolog.Logger) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			action, ok := cmd.As[Action](c)
			if !ok {
				return c.Run(ctx, inv)
			}
			req, err := request(inv)
			if err != nil {
				return err
			}

			capability := action.Capability()
			has, err := gw.HasCapability(ctx, req.Where, req.Invoker.ID, capability)
			if err != nil {
				logger.Warn().Err(err).
					Str("user_id", req.Invoker.ID).
					Str("capability", string(capability)).
					Msg("Capability lookup failed")
			}
			if err != nil || !has {
				return bot.Denied(fmt.Sprintf(
					"You need the following permission to run this command:\n`%s`",
					capability.DisplayName(),
				))
			}
			return c.Run(ctx, inv)
		})
	}
}

// withUsage records the invocation once the wrapped command succeeded.
func withUsage(tracker *usage.Tracker) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if err := c.Run(ctx, inv); err != nil {
				return err
			}
			tracker.Record(inv.CallerID, strings.ToLower(c.Name()))
			return nil
		})
	}
}

// withLogging logs every outcome; failures at warn, successes at info.
func withLogging(logger zerolog.Logger) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			err := c.Run(ctx, inv)

			ev := logger.Info()
			if err != nil {
				ev = logger.Warn().Err(err)
			}
			if req, rerr := request(inv); rerr == nil {
				ev = ev.Str("channel_id", req.Where.ChannelID)
				if req.Target != nil {
					ev = ev.Str("target_id", req.Target.ID)
				}
			}
			ev.Str("action", c.Name()).
				Str("user_id", inv.CallerID).
				Msg("Moderation action")
			return err
		})
	}
}
