package sdr

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session is one run of the capture tool. It is created by Manager.Start
// and destroyed by Stop, by its duration elapsing or by the tool exiting.
type Session struct {
	ID        string
	Mode      Mode
	Frequency float64       // MHz
	Duration  time.Duration // zero means unbounded
	StartedAt time.Time
	ChunkSize int

	proc        *Process
	stdout      *os.File
	stopTimeout time.Duration
	timer       *time.Timer

	running  atomic.Bool
	stopOnce sync.Once
	stopErr  error
	done     chan struct{}

	logger *slog.Logger
}

func newSession(h Handler, duration time.Duration, proc *Process, stdout *os.File, stopTimeout time.Duration, logger *slog.Logger) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		Mode:        h.Mode(),
		Frequency:   h.Frequency(),
		Duration:    duration,
		StartedAt:   time.Now(),
		ChunkSize:   h.ChunkSize(),
		proc:        proc,
		stdout:      stdout,
		stopTimeout: stopTimeout,
		done:        make(chan struct{}),
	}
	s.logger = logger.With(slog.String("session", s.ID))
	s.running.Store(true)

	if duration > 0 {
		s.timer = time.AfterFunc(duration, func() {
			s.logger.Info("session duration elapsed")
			_ = s.Stop()
		})
	}

	return s
}

// Stream returns the capture tool's stdout. It yields io.EOF once the tool
// exits, or os.ErrClosed after Stop.
func (s *Session) Stream() io.Reader {
	return s.stdout
}

// Running reports whether the session has not been stopped and the tool is alive
func (s *Session) Running() bool {
	return s.running.Load()
}

// Done is closed once Stop has completed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Elapsed returns the time since the session started
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.StartedAt)
}

// Progress returns elapsed/duration as a percentage in [0, 100]. The second
// value is false for unbounded sessions.
func (s *Session) Progress() (float64, bool) {
	if s.Duration <= 0 {
		return 0, false
	}
	p := float64(s.Elapsed()) / float64(s.Duration) * 100
	return min(max(p, 0), 100), true
}

// Stop terminates the capture tool and releases the stream. It is safe to
// call from any goroutine and any number of times.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		s.running.Store(false)
		if s.timer != nil {
			s.timer.Stop()
		}

		s.stopErr = s.proc.Stop(s.stopTimeout)
		_ = s.stdout.Close()

		if s.stopErr != nil {
			s.logger.Error(s.stopErr.Error())
		} else {
			s.logger.Info("capture stopped", slog.Duration("elapsed", s.Elapsed().Round(time.Millisecond)))
		}

		close(s.done)
	})

	<-s.done
	return s.stopErr
}

// monitor flips the running flag when the tool exits on its own and stops the
// session when ctx is cancelled.
func (s *Session) monitor(ctx context.Context) {
	select {
	case <-ctx.Done():
		_ = s.Stop()

	case <-s.proc.Exited():
		// Swap returns false when Stop got there first
		if s.running.Swap(false) {
			if err := s.proc.WaitErr(); err != nil {
				s.logger.Warn("capture tool exited", slog.String("error", err.Error()))
			} else {
				s.logger.Info("capture tool exited")
			}
		}
	}
}
