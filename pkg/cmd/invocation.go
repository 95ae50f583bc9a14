// Package cmd provides a transport-agnostic command core: a command has a name,
// a description and Run(ctx, invocation). Where the invocation came from (a
// slash interaction, a prefixed text message, a test) is the caller's concern;
// it travels in Invocation.Data.
package cmd

import "context"

// Invocation carries what every runner can supply: the command name as typed,
// the calling user, and an opaque payload the command type-asserts.
type Invocation struct {
	Name     string
	CallerID string
	Data     interface{}
}

// Command is the universal contract: identity plus execution.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Func adapts a plain function into a Command.
type Func struct {
	CmdName string
	Desc    string
	RunFunc func(ctx context.Context, inv *Invocation) error
}

func (f *Func) Name() string        { return f.CmdName }
func (f *Func) Description() string { return f.Desc }

func (f *Func) Run(ctx context.Context, inv *Invocation) error {
	return f.RunFunc(ctx, inv)
}
