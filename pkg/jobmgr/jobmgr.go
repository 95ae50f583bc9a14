// Package jobmgr runs the process's long-lived jobs (event loop, gateway
// session, HTTP server) under one parent context and tracks which are still
// running.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(ctx, logger)
//	_ = jm.Start("router", r.Run)
//	_ = jm.Start("keepalive", srv.Run)
//	err := jm.Wait()
//
// A job that fails cancels every other job; a job that returns nil just
// leaves the set.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	mu   sync.Mutex
	jobs map[string]context.CancelFunc
	errs []error
	wg   sync.WaitGroup
}

func NewManager(ctx context.Context, logger zerolog.Logger) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With().Str("component", "jobs").Logger(),
		jobs:   make(map[string]context.CancelFunc),
	}
}

// Start runs job in its own goroutine. Names must be unique among running
// jobs, and no job can start once the manager is shutting down.
func (m *Manager) Start(name string, job func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return fmt.Errorf("job %q: manager is shutting down", name)
	}
	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("job %q is already running", name)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.jobs[name] = cancel
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer cancel()

		m.logger.Debug().Str("job", name).Msg("Job started")
		err := job(ctx)

		m.mu.Lock()
		delete(m.jobs, name)
		if err != nil {
			m.errs = append(m.errs, fmt.Errorf("%s: %w", name, err))
		}
		m.mu.Unlock()

		if err != nil {
			m.logger.Error().Err(err).Str("job", name).Msg("Job failed, stopping the others")
			m.cancel()
			return
		}
		m.logger.Debug().Str("job", name).Msg("Job finished")
	}()
	return nil
}

// Stop cancels one running job.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancel, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job %q is not running", name)
	}
	cancel()
	return nil
}

// Shutdown cancels every job. Wait still has to be called to join them.
func (m *Manager) Shutdown() {
	m.cancel()
}

// Wait blocks until every job has returned and reports their failures.
func (m *Manager) Wait() error {
	m.wg.Wait()
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.errs...)
}

// List returns the running job names, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Status is a one-line summary such as "Running jobs: keepalive, router".
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return "Running jobs: " + strings.Join(active, ", ")
}
