// Package moderation validates and executes moderation actions: capability
// check, argument validation, the platform effect, then usage recording and
// a public confirmation. Every failure becomes a private reply; nothing is
// retried, since kick/ban/delete are not safe to repeat.
package moderation

import (
	"context"
	"errors"
	"time"

	"github.com/keshon/server-warden/internal/bot"
	"github.com/keshon/server-warden/internal/metrics"
	"github.com/keshon/server-warden/internal/progression"
	"github.com/keshon/server-warden/internal/usage"
	"github.com/keshon/server-warden/pkg/cmd"
	"github.com/rs/zerolog"
)

// DefaultActionTimeout bounds one action's platform calls.
const DefaultActionTimeout = 10 * time.Second

type Config struct {
	ActionTimeout time.Duration
	// Now is the clock used for timeout deadlines; time.Now when nil.
	Now func() time.Time
}

type Dispatcher struct {
	gw       bot.Gateway
	registry *cmd.Registry
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewDispatcher(gw bot.Gateway, engine *progression.Engine, tracker *usage.Tracker, cfg Config, logger zerolog.Logger) *Dispatcher {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultActionTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	d := &Dispatcher{
		gw:       gw,
		registry: cmd.NewRegistry(),
		timeout:  cfg.ActionTimeout,
		logger:   logger.With().Str("component", "moderation").Logger(),
	}

	mws := []cmd.Middleware{
		withLogging(d.logger),
		withCapability(gw, d.logger),
		withUsage(tracker),
	}
	for _, a := range []Action{
		&kickAction{gw: gw},
		&banAction{gw: gw},
		&timeoutAction{gw: gw, now: cfg.Now},
		&untimeoutAction{gw: gw},
		&purgeAction{gw: gw},
		&lockAction{gw: gw, lock: true},
		&lockAction{gw: gw, lock: false},
		&sayAction{gw: gw},
		&xpAction{engine: engine},
		&xpAction{engine: engine, remove: true},
	} {
		d.registry.MustRegister(a, mws...)
	}
	return d
}

// Handles reports whether name is a moderation action.
func (d *Dispatcher) Handles(name string) bool {
	_, ok := d.registry.Get(name)
	return ok
}

// Actions lists the registered action names.
func (d *Dispatcher) Actions() []string {
	return d.registry.Names()
}

// Commands returns the registered actions, sorted by name.
func (d *Dispatcher) Commands() []cmd.Command {
	return d.registry.All()
}

// Dispatch runs req through the action pipeline and delivers the replies:
// failures privately to the invoker, the confirmation publicly, and any
// follow-ups to the channel.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) Result {
	res := d.execute(ctx, req)

	label := "unknown"
	if c, ok := d.registry.Get(req.Action); ok {
		label = c.Name()
	}
	metrics.ModerationActions.WithLabelValues(label, metrics.Outcome(res.Err)).Inc()
	d.deliver(ctx, req, res)
	return res
}

func (d *Dispatcher) execute(ctx context.Context, req *Request) Result {
	res := Result{Action: req.Action}

	c, ok := d.registry.Get(req.Action)
	if !ok {
		res.Err = bot.Invalid("Unknown command.")
		return res
	}

	runCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := c.Run(runCtx, &cmd.Invocation{
		Name:     c.Name(),
		CallerID: req.Invoker.ID,
		Data:     req,
	})
	if err != nil && bot.KindOf(err) == nil {
		err = bot.Failed("Something went wrong.", err)
	}

	res.Err = err
	if err == nil {
		res.Confirmation = req.confirmation
		res.Followups = req.followups
	}
	return res
}

func (d *Dispatcher) deliver(ctx context.Context, req *Request, res Result) {
	if res.Err != nil {
		msg := bot.Text("❌ " + bot.ReasonOf(res.Err, "Something went wrong."))
		d.reply(ctx, req, msg, bot.Private)
		return
	}

	if res.Confirmation != nil {
		d.reply(ctx, req, *res.Confirmation, bot.Public)
	}
	for _, msg := range res.Followups {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		if err := d.gw.SendMessage(sendCtx, req.Where.ChannelID, msg); err != nil {
			d.logger.Warn().Err(err).Str("channel_id", req.Where.ChannelID).Msg("Failed to send follow-up")
		}
		cancel()
	}
}

func (d *Dispatcher) reply(ctx context.Context, req *Request, msg bot.Message, vis bot.Visibility) {
	replyCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.gw.ReplyToCommand(replyCtx, req.Handle, msg, vis)
	bot.MarkReplied(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = bot.Failed("reply timed out", err)
		}
		d.logger.Warn().Err(err).
			Str("action", req.Action).
			Str("visibility", vis.String()).
			Msg("Failed to reply to command")
	}
}
