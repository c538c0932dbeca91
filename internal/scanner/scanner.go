// Package scanner sweeps a frequency range, listening to each channel for a
// dwell period and classifying it as active by its signal quality.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/quality"
	"github.com/roman-kulish/radio-receiver/internal/sdr"
	"github.com/roman-kulish/radio-receiver/internal/sdr/driver"
	"github.com/roman-kulish/radio-receiver/internal/sdr/rtl"
)

// ErrRunning is returned by Start while a sweep is in progress
var ErrRunning = errors.New("scan already running")

// Channel is a frequency found active during a sweep
type Channel struct {
	Frequency float64   `json:"frequency"` // MHz
	Quality   float64   `json:"quality"`
	Timestamp time.Time `json:"timestamp"`
}

// HandlerFactory returns the capture handler for one frequency
type HandlerFactory func(frequency float64) (sdr.Handler, error)

// Monitor plays the channel being scanned
type Monitor interface {
	Start(ctx context.Context, frequency float64) error
	Stop() error
	Play(pcm []byte) error
}

// ChannelSink receives every newly active channel.
type ChannelSink interface {
	ActiveChannel(ctx context.Context, ch Channel) error
}

// ResultRecorder is implemented by sinks that also want the quality of every
// visited frequency.
type ResultRecorder interface {
	ScanResult(ctx context.Context, result Channel) error
}

// NewRTLHandlerFactory returns a factory tuning base to each frequency in
// scan-audio mode.
func NewRTLHandlerFactory(base rtl.Config) HandlerFactory {
	return func(frequency float64) (sdr.Handler, error) {
		cfg := base
		cfg.Mode = sdr.ModeScanAudio
		cfg.Frequency = frequency
		return rtl.New(&cfg)
	}
}

// WithLogger sets the logger for the scanner
func WithLogger(logger *slog.Logger) func(s *Scanner) {
	return func(s *Scanner) {
		s.logger = logger.With(slog.String("component", "scanner"))
	}
}

// WithMonitor plays every scanned channel through m
func WithMonitor(m Monitor) func(s *Scanner) {
	return func(s *Scanner) {
		s.monitor = m
	}
}

// WithChannelSink adds a sink for active channels
func WithChannelSink(sink ChannelSink) func(s *Scanner) {
	return func(s *Scanner) {
		s.sinks = append(s.sinks, sink)
	}
}

// WithStatus registers a callback for status messages
func WithStatus(fn func(message string)) func(s *Scanner) {
	return func(s *Scanner) {
		s.onStatus = fn
	}
}

// WithCapture replaces the capture manager
func WithCapture(m *sdr.Manager) func(s *Scanner) {
	return func(s *Scanner) {
		s.capture = m
	}
}

// Scanner runs one sweep at a time.
type Scanner struct {
	handlers HandlerFactory
	capture  *sdr.Manager
	monitor  Monitor
	sinks    []ChannelSink
	onStatus func(message string)

	mu          sync.Mutex
	frequencies []float64
	index       int
	qualities   map[float64]float64
	active      []Channel
	cancel      context.CancelFunc
	done        chan struct{}

	running atomic.Bool
	logger  *slog.Logger
}

// New creates a new Scanner building capture handlers with handlers
func New(handlers HandlerFactory, options ...func(s *Scanner)) *Scanner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Scanner{
		handlers:  handlers,
		qualities: make(map[float64]float64),
		logger:    logger,
	}

	for _, option := range options {
		option(&s)
	}

	if s.capture == nil {
		s.capture = sdr.NewManager(sdr.WithLogger(s.logger))
	}

	return &s
}

// Start validates cfg and starts sweeping in the background. Invalid
// parameters are reported before anything is spawned.
func (s *Scanner) Start(ctx context.Context, cfg Config) error {
	if s.handlers == nil {
		return driver.NewValidationError("capture handler factory is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return ErrRunning
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithCancel(ctx)

	s.frequencies = Frequencies(cfg.Start, cfg.End, cfg.Step)
	s.index = 0
	s.qualities = make(map[float64]float64, len(s.frequencies))
	s.active = nil
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	s.logger.Info("scan started",
		slog.Float64("start", cfg.Start),
		slog.Float64("end", cfg.End),
		slog.Float64("step", cfg.Step),
		slog.Int("frequencies", len(s.frequencies)),
		slog.String("dwell", cfg.Dwell.String()),
	)

	go s.run(ctx, cfg, s.done)

	return nil
}

// Stop stops the sweep and waits until the in-flight capture and monitor
// are torn down. Stopping an idle scanner does nothing.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}

	s.running.Store(false)
	cancel()

	err := s.capture.Stop()
	<-done

	s.mu.Lock()
	s.frequencies = nil
	s.index = 0
	s.qualities = make(map[float64]float64)
	s.mu.Unlock()

	s.logger.Info("scan stopped")

	return err
}

// Running reports whether a sweep is in progress
func (s *Scanner) Running() bool {
	return s.running.Load()
}

// Index returns the position of the frequency being scanned
func (s *Scanner) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Frequencies returns the frequencies of the current sweep
func (s *Scanner) Frequencies() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.frequencies)
}

// Active returns a copy of the active channel list. The list is sorted by
// quality, best first, after each complete sweep.
func (s *Scanner) Active() []Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.active)
}

// Qualities returns the last quality seen on every visited frequency
func (s *Scanner) Qualities() map[float64]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[float64]float64, len(s.qualities))
	for f, q := range s.qualities {
		out[f] = q
	}
	return out
}

func (s *Scanner) run(ctx context.Context, cfg Config, done chan struct{}) {
	defer close(done)
	defer s.running.Store(false)

	for s.running.Load() && ctx.Err() == nil {
		frequency, ok := s.current()
		if !ok {
			return
		}

		s.dwell(ctx, cfg, frequency)

		if !s.running.Load() || ctx.Err() != nil {
			return
		}

		if s.advance() {
			s.status(fmt.Sprintf("Sweep complete, %d active channel(s)", len(s.Active())))

			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.WrapPause.Duration()):
			}
		}
	}
}

func (s *Scanner) current() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index < 0 || s.index >= len(s.frequencies) {
		return 0, false
	}
	return s.frequencies[s.index], true
}

// advance moves to the next frequency. Passing the last one resets the index
// and sorts the active list; it then returns true.
func (s *Scanner) advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index++
	if s.index < len(s.frequencies) {
		return false
	}

	s.index = 0
	slices.SortStableFunc(s.active, func(a, b Channel) int {
		switch {
		case a.Quality > b.Quality:
			return -1
		case a.Quality < b.Quality:
			return 1
		}
		return 0
	})

	return true
}

// dwell listens to one frequency. Capture and monitor are always stopped
// before it returns.
func (s *Scanner) dwell(ctx context.Context, cfg Config, frequency float64) {
	if ctx.Err() != nil {
		return
	}

	logger := s.logger.With(slog.Float64("frequency", frequency))

	h, err := s.handlers(frequency)
	if err != nil {
		s.fail(logger, frequency, err)
		return
	}

	session, err := s.capture.Start(ctx, h, cfg.Dwell.Duration())
	if err != nil {
		s.fail(logger, frequency, err)
		return
	}
	defer func() {
		if err := s.capture.Stop(); err != nil {
			logger.Warn(fmt.Sprintf("stopping capture: %s", err))
		}
	}()

	collector := dwellCollector{}

	if s.monitor != nil {
		if err := s.monitor.Start(ctx, frequency); err != nil {
			s.status(fmt.Sprintf("Audio unavailable on %.4f MHz: %s", frequency, err))
		} else {
			collector.monitor = s.monitor
			defer func() {
				if err := s.monitor.Stop(); err != nil {
					logger.Warn(fmt.Sprintf("stopping audio: %s", err))
				}
			}()
		}
	}

	reader := sdr.NewReader(sdr.WithPlayer(&collector), sdr.WithReaderLogger(logger))
	if err := reader.Run(ctx, session); err != nil &&
		!errors.Is(err, driver.ErrStreamClosed) && !errors.Is(err, context.Canceled) {
		s.fail(logger, frequency, err)
		return
	}

	if !s.running.Load() || ctx.Err() != nil {
		return
	}

	s.record(ctx, frequency, quality.EstimatePCM(collector.pcm, quality.ReferenceScanner), cfg.Threshold)
}

func (s *Scanner) record(ctx context.Context, frequency, q, threshold float64) {
	result := Channel{Frequency: frequency, Quality: q, Timestamp: time.Now()}

	s.mu.Lock()
	s.qualities[frequency] = q

	var added bool
	if q >= threshold && !slices.ContainsFunc(s.active, func(ch Channel) bool { return ch.Frequency == frequency }) {
		s.active = append(s.active, result)
		added = true
	}
	s.mu.Unlock()

	s.logger.Debug("frequency scanned", slog.Float64("frequency", frequency), slog.Float64("quality", q))

	for _, sink := range s.sinks {
		if r, ok := sink.(ResultRecorder); ok {
			if err := r.ScanResult(ctx, result); err != nil {
				s.logger.Error(fmt.Sprintf("recording scan result: %s", err))
			}
		}

		if !added {
			continue
		}
		if err := sink.ActiveChannel(ctx, result); err != nil {
			s.logger.Error(fmt.Sprintf("publishing active channel: %s", err))
		}
	}

	if added {
		s.status(fmt.Sprintf("Active channel %.4f MHz, quality %.1f", frequency, q))
	}
}

func (s *Scanner) fail(logger *slog.Logger, frequency float64, err error) {
	logger.Error(err.Error())
	s.status(fmt.Sprintf("Scan error on %.4f MHz: %s", frequency, err))
}

func (s *Scanner) status(message string) {
	if s.onStatus != nil {
		s.onStatus(message)
	}
}

// dwellCollector keeps every chunk read during a dwell and forwards it to
// the monitor.
type dwellCollector struct {
	pcm     []byte
	monitor Monitor
}

func (c *dwellCollector) Play(pcm []byte) error {
	c.pcm = append(c.pcm, pcm...)
	if c.monitor == nil {
		return nil
	}
	return c.monitor.Play(pcm)
}
