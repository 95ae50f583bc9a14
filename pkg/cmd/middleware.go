package cmd

// Middleware wraps a command (capability check, usage recording, logging).
type Middleware func(Command) Command

// Apply wraps c so that the first middleware in mws runs first. A call runs
// mws[0], then mws[1], ..., then c.
func Apply(c Command, mws ...Middleware) Command {
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}
