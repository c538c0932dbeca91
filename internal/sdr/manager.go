package sdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/sdr/driver"
)

// WithLogger sets the logger for the manager
func WithLogger(logger *slog.Logger) func(m *Manager) {
	return func(m *Manager) {
		m.logger = logger.With(slog.String("component", "capture"))
	}
}

// WithStopTimeout sets how long a stop waits before escalating to a kill
func WithStopTimeout(timeout time.Duration) func(m *Manager) {
	return func(m *Manager) {
		m.stopTimeout = timeout
	}
}

// Manager owns at most one running capture process.
type Manager struct {
	mu      sync.Mutex
	session *Session

	stopTimeout time.Duration
	logger      *slog.Logger
}

// NewManager creates a new Manager instance with a discard logger
func NewManager(options ...func(m *Manager)) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	m := Manager{
		stopTimeout: DefaultStopTimeout,
		logger:      logger,
	}

	for _, option := range options {
		option(&m)
	}

	return &m
}

// Start spawns the capture tool described by h. If a session is already
// running it is returned as is and nothing is spawned. A positive duration
// bounds the session; the process is stopped when it elapses. Cancelling ctx
// stops the session as well.
func (m *Manager) Start(ctx context.Context, h Handler, duration time.Duration) (*Session, error) {
	if err := validateHandler(h, duration); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil && m.session.Running() {
		return m.session, nil
	}

	logger := m.logger.With(
		slog.String("device", h.Device()),
		slog.String("mode", h.Mode().String()),
		slog.Float64("frequency", h.Frequency()),
	)

	cmd := h.Cmd()

	stdout, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: creating stdout pipe: %w", driver.ErrSpawnFailed, err)
	}
	cmd.Stdout = pw

	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		_ = pw.Close()
		return nil, fmt.Errorf("%w: creating stderr pipe: %w", driver.ErrSpawnFailed, err)
	}

	proc, err := StartProcess(cmd)
	_ = pw.Close() // the child owns the write end now
	if err != nil {
		_ = stdout.Close()
		logger.Error(err.Error())
		return nil, err
	}

	s := newSession(h, duration, proc, stdout, m.stopTimeout, logger)

	go handleStderr(stderr, h.Device(), logger)
	go s.monitor(ctx)

	m.session = s

	logger.Info("capture started", slog.String("session", s.ID), slog.Int("pid", proc.Pid()))

	return s, nil
}

// Stop stops the current session, if any. Stopping an idle manager succeeds.
func (m *Manager) Stop() error {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Stop()
}

// Session returns the current session or nil
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Running returns true if a capture process is alive
func (m *Manager) Running() bool {
	s := m.Session()
	return s != nil && s.Running()
}

func validateHandler(h Handler, duration time.Duration) error {
	if h == nil {
		return driver.NewValidationError("capture handler is required")
	}
	if !h.Mode().Valid() {
		return driver.NewValidationError(fmt.Sprintf("invalid mode: %s", h.Mode()))
	}
	if h.Frequency() <= 0 {
		return driver.NewValidationError(fmt.Sprintf("frequency must be positive: %f", h.Frequency()))
	}
	if h.ChunkSize() <= 0 {
		return driver.NewValidationError(fmt.Sprintf("chunk size must be positive: %d", h.ChunkSize()))
	}
	if duration < 0 {
		return driver.NewValidationError(fmt.Sprintf("duration must not be negative: %s", duration))
	}
	return nil
}

// handleStderr reads from stderr and logs it.
func handleStderr(stderr io.Reader, device string, logger *slog.Logger) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		logger.Warn(fmt.Sprintf("%s >> %s", device, line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		logger.Error(fmt.Sprintf("error reading stderr: %s", err))
	}
}
