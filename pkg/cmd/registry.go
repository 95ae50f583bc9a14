package cmd

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry stores commands by lower-cased name. It does not dispatch; callers
// look commands up and run them with their own invocation.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds commands, each optionally wrapped by mws. A duplicate name is
// an error and leaves the registry unchanged for that command.
func (r *Registry) Register(c Command, mws ...Middleware) error {
	key := strings.ToLower(c.Name())

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[key]; exists {
		return fmt.Errorf("command %q already registered", c.Name())
	}
	r.commands[key] = Apply(c, mws...)
	return nil
}

// MustRegister is Register that panics on duplicates; for wiring at startup.
func (r *Registry) MustRegister(c Command, mws ...Middleware) {
	if err := r.Register(c, mws...); err != nil {
		panic(err)
	}
}

// Get returns the command with the given name (case-insensitive).
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[strings.ToLower(name)]
	return c, ok
}

// All returns every registered command, sorted by name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = c.Name()
	}
	return names
}
