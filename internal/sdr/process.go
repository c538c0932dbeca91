package sdr

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/sdr/driver"
)

// DefaultStopTimeout is how long Stop waits after the polite termination
// signal before escalating to a forced kill.
const DefaultStopTimeout = time.Second

// Process is an external tool running in its own process group.
type Process struct {
	cmd *exec.Cmd

	exited  chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
}

// StartProcess starts cmd in a new process group. Pipes must be set up
// on cmd before calling. The returned error wraps driver.ErrSpawnFailed.
func StartProcess(cmd *exec.Cmd) (*Process, error) {
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", driver.ErrSpawnFailed, cmd.Path, err)
	}

	p := &Process{
		cmd:    cmd,
		exited: make(chan struct{}),
	}

	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	return p, nil
}

// Pid returns the process id, which is also the process group id
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Exited is closed once the process has been reaped
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// WaitErr returns the exit error. Only valid after Exited is closed.
func (p *Process) WaitErr() error {
	<-p.exited
	return p.waitErr
}

// Running reports whether the process has not been reaped yet
func (p *Process) Running() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Stop terminates the process group, waits up to timeout and then force
// kills it. A process that already exited counts as stopped. Stop is
// idempotent; later calls return the first result.
func (p *Process) Stop(timeout time.Duration) error {
	p.stopOnce.Do(func() {
		p.stopErr = p.stop(timeout)
	})
	return p.stopErr
}

func (p *Process) stop(timeout time.Duration) error {
	if !p.Running() {
		return nil
	}

	if err := p.Terminate(); err != nil && !errors.Is(err, driver.ErrProcessGone) {
		return fmt.Errorf("terminating process %d: %w", p.Pid(), err)
	}

	select {
	case <-p.exited:
		return nil
	case <-time.After(timeout):
	}

	if err := p.ForceKill(); err != nil && !errors.Is(err, driver.ErrProcessGone) {
		return fmt.Errorf("killing process %d: %w", p.Pid(), err)
	}

	select {
	case <-p.exited:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("process %d did not exit after kill", p.Pid())
	}
}
