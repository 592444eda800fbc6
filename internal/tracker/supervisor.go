package tracker

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc"
)

// Supervisor owns at most one running task per key.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	// spawnMu serializes Spawn and Cancel so a key never has two tasks.
	spawnMu sync.Mutex
	mu      sync.Mutex
	tasks   map[string]*task

	onChange func(running int)
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor creates a supervisor. onChange, if set, is called with the
// number of running tasks after every spawn and exit.
func NewSupervisor(onChange func(running int)) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		ctx:      ctx,
		cancel:   cancel,
		tasks:    make(map[string]*task),
		onChange: onChange,
	}
}

// Spawn starts run for key. A task already running for key is cancelled and
// awaited first. The context passed to run is independent of any request.
func (s *Supervisor) Spawn(key string, run func(ctx context.Context)) {
	s.spawnMu.Lock()
	defer s.spawnMu.Unlock()

	s.stop(key)

	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.tasks[key] = t
	running := len(s.tasks)
	s.mu.Unlock()
	s.notify(running)

	s.wg.Go(func() {
		defer close(t.done)
		defer cancel()
		run(ctx)

		s.mu.Lock()
		if s.tasks[key] == t {
			delete(s.tasks, key)
		}
		running := len(s.tasks)
		s.mu.Unlock()
		s.notify(running)
	})
}

// Cancel stops the task for key and waits for it to exit.
// Reports whether a task was running.
func (s *Supervisor) Cancel(key string) bool {
	s.spawnMu.Lock()
	defer s.spawnMu.Unlock()

	return s.stop(key)
}

func (s *Supervisor) stop(key string) bool {
	s.mu.Lock()
	t, ok := s.tasks[key]
	if ok {
		delete(s.tasks, key)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	t.cancel()
	<-t.done
	return true
}

// Running reports whether a task is running for key.
func (s *Supervisor) Running(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Count returns the number of running tasks.
func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Context returns the supervisor's root context, cancelled by Shutdown.
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Go runs fn as an untracked background job bound to the supervisor
// lifetime. Shutdown waits for it.
func (s *Supervisor) Go(fn func(ctx context.Context)) {
	s.wg.Go(func() { fn(s.ctx) })
}

// Shutdown cancels every task and background job and waits for them.
func (s *Supervisor) Shutdown() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.tasks = make(map[string]*task)
	s.mu.Unlock()
	s.notify(0)
}

func (s *Supervisor) notify(running int) {
	if s.onChange != nil {
		s.onChange(running)
	}
}
