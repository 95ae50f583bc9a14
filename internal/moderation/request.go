package moderation

import (
	"fmt"

	"github.com/keshon/server-warden/internal/bot"
)

const defaultReason = "No reason provided"

// Request is one moderation invocation, already normalized by the router.
type Request struct {
	Action  string
	Invoker bot.User
	Where   bot.Location
	Handle  bot.ReplyHandle

	Target   *bot.User
	Reason   string
	Duration string
	Amount   int64
	Text     string

	// Filled by the action on success.
	confirmation *bot.Message
	followups    []bot.Message
}

// Result is the outcome of a dispatch. Err is nil on success.
type Result struct {
	Action       string
	Err          error
	Confirmation *bot.Message
	Followups    []bot.Message
}

// OK reports whether the action succeeded.
func (r Result) OK() bool { return r.Err == nil }

func (r *Request) confirm(format string, args ...any) {
	msg := bot.Text(fmt.Sprintf(format, args...))
	r.confirmation = &msg
}

func (r *Request) followup(format string, args ...any) {
	r.followups = append(r.followups, bot.Text(fmt.Sprintf(format, args...)))
}

func (r *Request) reason() string {
	if r.Reason == "" {
		return defaultReason
	}
	return r.Reason
}

func (r *Request) requireTarget() (*bot.User, error) {
	if r.Target == nil || r.Target.ID == "" {
		return nil, bot.Invalid("Please specify a member.")
	}
	return r.Target, nil
}
