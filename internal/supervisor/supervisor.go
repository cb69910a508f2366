// Package supervisor launches one process per agent variant on a
// staggered schedule and restarts crashed children with capped
// exponential backoff, propagating SIGINT/SIGTERM to the whole fleet and
// printing a periodic roll-up status line.
//
// No teacher package supervises multiple processes — BratKogut-MMH is a
// single-binary-per-role architecture. The periodic-ticker loop shape is
// grounded on internal/observability/health.go's HealthMonitor.Start, and
// each child's supervising goroutine reuses internal/market/service.go's
// Start/context-cancellation idiom.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Spec is one entry in the static agent roster.
type Spec struct {
	Name    string
	Path    string
	DelayMs int64
	Env     map[string]string
}

const (
	baseBackoff = 5 * time.Second
	maxBackoff  = 5 * time.Minute
	gracePeriod = 2 * time.Second
	statusEvery = 60 * time.Second
)

// ChildStatus is the supervisor's point-in-time view of one child, used
// by the status table and exposed for tests.
type ChildStatus struct {
	Name       string
	Path       string
	Running    bool
	PID        int
	Restarts   int
	LastExit   string
	StartedAt  time.Time
}

type child struct {
	spec Spec

	mu        sync.Mutex
	cmd       *exec.Cmd
	restarts  int
	running   bool
	lastExit  string
	startedAt time.Time
}

// Supervisor owns the whole fleet's lifecycle.
type Supervisor struct {
	children []*child
	env      []string
}

// New creates a Supervisor over the given roster. env is appended to
// os.Environ() for every launched child; pass nil to inherit the
// supervisor's own environment unmodified.
func New(roster []Spec, env []string) *Supervisor {
	children := make([]*child, 0, len(roster))
	for _, spec := range roster {
		children = append(children, &child{spec: spec})
	}
	return &Supervisor{children: children, env: env}
}

// Run launches the full roster on its staggered schedule and blocks until
// ctx is cancelled (typically by a SIGINT/SIGTERM handler installed by the
// caller), at which point it sends SIGTERM to every running child, waits
// up to the grace period, and returns.
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, c := range s.children {
		wg.Add(1)
		go func(c *child) {
			defer wg.Done()
			s.superviseChild(ctx, c)
		}(c)
	}

	go s.printStatusLoop(ctx)

	<-ctx.Done()
	s.terminateAll()
	wg.Wait()
	return nil
}

// RunSingle launches exactly one known agent (by path, ignoring its
// configured delay) and blocks until it exits or ctx is cancelled.
// Returns an error if path does not match any roster entry.
func (s *Supervisor) RunSingle(ctx context.Context, path string) error {
	for _, c := range s.children {
		if c.spec.Path == path {
			s.superviseChild(ctx, c)
			return nil
		}
	}
	return fmt.Errorf("supervisor: unknown agent path %q (known: %s)", path, s.knownPaths())
}

func (s *Supervisor) knownPaths() string {
	out := ""
	for i, c := range s.children {
		if i > 0 {
			out += ", "
		}
		out += c.spec.Path
	}
	return out
}

// superviseChild waits out the initial stagger delay, then launches and
// relaunches the child with capped exponential backoff until ctx is
// cancelled.
func (s *Supervisor) superviseChild(ctx context.Context, c *child) {
	select {
	case <-time.After(time.Duration(c.spec.DelayMs) * time.Millisecond):
	case <-ctx.Done():
		return
	}

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.launchAndWait(ctx, c)

		if ctx.Err() != nil {
			return
		}

		if err == nil {
			log.Info().Str("agent", c.spec.Name).Msg("supervisor: child exited cleanly, not restarting")
			return
		}

		c.mu.Lock()
		c.restarts++
		k := c.restarts
		c.mu.Unlock()

		delay := backoffFor(k)
		log.Warn().Str("agent", c.spec.Name).Err(err).Dur("nextRestartIn", delay).Int("attempt", k).Msg("supervisor: child crashed, restarting")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// backoffFor returns min(5s*2^(k-1), 5min) for the k-th consecutive crash.
func backoffFor(k int) time.Duration {
	if k < 1 {
		k = 1
	}
	d := baseBackoff
	for i := 1; i < k; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// launchAndWait starts the child process and blocks until it exits or ctx
// is cancelled (in which case SIGTERM is sent and we wait up to the grace
// period before returning). A clean exit (status 0) returns nil.
func (s *Supervisor) launchAndWait(ctx context.Context, c *child) error {
	cmd := exec.Command(c.spec.Path)
	cmd.Env = append(os.Environ(), s.env...)
	for k, v := range c.spec.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	c.mu.Lock()
	c.cmd = cmd
	c.running = true
	c.startedAt = time.Now()
	c.mu.Unlock()

	log.Info().Str("agent", c.spec.Name).Int("pid", cmd.Process.Pid).Msg("supervisor: child started")

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	var err error
	select {
	case err = <-waitErr:
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case err = <-waitErr:
		case <-time.After(gracePeriod):
			_ = cmd.Process.Kill()
			err = <-waitErr
		}
	}

	c.mu.Lock()
	c.running = false
	if err != nil {
		c.lastExit = err.Error()
	} else {
		c.lastExit = "exit status 0"
	}
	c.mu.Unlock()

	return err
}

// terminateAll sends SIGTERM to every still-running child.
func (s *Supervisor) terminateAll() {
	for _, c := range s.children {
		c.mu.Lock()
		cmd := c.cmd
		running := c.running
		c.mu.Unlock()
		if running && cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
		}
	}
}

func (s *Supervisor) printStatusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.printStatus()
		}
	}
}

func (s *Supervisor) printStatus() {
	for _, status := range s.Status() {
		state := "down"
		if status.Running {
			state = fmt.Sprintf("up (pid %d, uptime %s)", status.PID, time.Since(status.StartedAt).Round(time.Second))
		}
		log.Info().Str("agent", status.Name).Int("restarts", status.Restarts).Msg("supervisor: " + state)
	}
}

// Status returns a point-in-time snapshot of every child, for the status
// table and for tests.
func (s *Supervisor) Status() []ChildStatus {
	out := make([]ChildStatus, 0, len(s.children))
	for _, c := range s.children {
		c.mu.Lock()
		pid := 0
		if c.cmd != nil && c.cmd.Process != nil {
			pid = c.cmd.Process.Pid
		}
		out = append(out, ChildStatus{
			Name:      c.spec.Name,
			Path:      c.spec.Path,
			Running:   c.running,
			PID:       pid,
			Restarts:  c.restarts,
			LastExit:  c.lastExit,
			StartedAt: c.startedAt,
		})
		c.mu.Unlock()
	}
	return out
}
