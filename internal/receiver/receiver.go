// Package receiver runs one reception at a time: it starts the capture tool,
// reads its stream and feeds either a telemetry decoder or the audio output,
// publishing everything the presentation side needs on a bridge.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/bridge"
	"github.com/roman-kulish/radio-receiver/internal/decoder"
	"github.com/roman-kulish/radio-receiver/internal/sdr"
	"github.com/roman-kulish/radio-receiver/internal/sdr/driver"
	"github.com/roman-kulish/radio-receiver/internal/sdr/rtl"
	"github.com/roman-kulish/radio-receiver/internal/storage"
)

// HandlerFactory returns the capture handler for a mode and frequency (MHz)
type HandlerFactory func(mode sdr.Mode, frequency float64) (sdr.Handler, error)

// AudioOutput plays audio modes
type AudioOutput interface {
	Start(ctx context.Context, frequency float64) error
	Stop() error
	Play(pcm []byte) error
}

// Recorder persists the start and end of every reception
type Recorder interface {
	CreateSession(ctx context.Context, session *storage.Session, config any) error
	EndSession(ctx context.Context, id string, summary storage.SessionSummary) error
}

// Config describes one reception
type Config struct {
	Mode      sdr.Mode
	Frequency float64       // MHz
	Duration  time.Duration // zero means until stopped

	// Decoder options for telemetry modes
	Decoder []decoder.Option
}

// NewRTLHandlerFactory returns a factory tuning base to the requested mode and
// frequency.
func NewRTLHandlerFactory(base rtl.Config) HandlerFactory {
	return func(mode sdr.Mode, frequency float64) (sdr.Handler, error) {
		cfg := base
		cfg.Mode = mode
		cfg.Frequency = frequency
		return rtl.New(&cfg)
	}
}

// WithLogger sets the logger for the receiver
func WithLogger(logger *slog.Logger) func(r *Receiver) {
	return func(r *Receiver) {
		r.logger = logger.With(slog.String("component", "receiver"))
	}
}

// WithCapture replaces the capture manager
func WithCapture(m *sdr.Manager) func(r *Receiver) {
	return func(r *Receiver) {
		r.capture = m
	}
}

// WithAudio sets the output used by audio modes
func WithAudio(out AudioOutput) func(r *Receiver) {
	return func(r *Receiver) {
		r.audio = out
	}
}

// WithRecorder persists sessions with rec
func WithRecorder(rec Recorder) func(r *Receiver) {
	return func(r *Receiver) {
		r.recorder = rec
	}
}

// WithBufferCapacity sets how many blocks may wait for the decoder
func WithBufferCapacity(capacity int) func(r *Receiver) {
	return func(r *Receiver) {
		r.bufferCapacity = capacity
	}
}

// Receiver owns at most one reception.
type Receiver struct {
	handlers HandlerFactory
	capture  *sdr.Manager
	audio    AudioOutput
	recorder Recorder
	bridge   *bridge.Bridge

	bufferCapacity int

	mu      sync.Mutex
	current *reception

	logger *slog.Logger
}

// New creates a new Receiver publishing to b
func New(handlers HandlerFactory, b *bridge.Bridge, options ...func(r *Receiver)) *Receiver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	r := Receiver{
		handlers:       handlers,
		bridge:         b,
		bufferCapacity: sdr.DefaultBufferCapacity,
		logger:         logger,
	}

	for _, option := range options {
		option(&r)
	}

	if r.capture == nil {
		r.capture = sdr.NewManager(sdr.WithLogger(r.logger))
	}
	if r.bridge == nil {
		r.bridge = bridge.New(bridge.WithLogger(r.logger))
	}

	return &r
}

// Bridge returns the bridge the receiver publishes to
func (r *Receiver) Bridge() *bridge.Bridge {
	return r.bridge
}

// Start begins a reception. Invalid configurations are rejected before the
// capture tool is spawned. While a reception is running it is returned as is.
func (r *Receiver) Start(ctx context.Context, cfg Config) (*sdr.Session, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if cfg.Mode.IsAudio() && r.audio == nil {
		return nil, driver.NewValidationError(fmt.Sprintf("mode %s requires an audio output", cfg.Mode))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil && r.current.running.Load() {
		return r.current.session, nil
	}

	h, err := r.handlers(cfg.Mode, cfg.Frequency)
	if err != nil {
		if driver.IsValidation(err) {
			return nil, err
		}
		err = fmt.Errorf("%w: %w", driver.ErrSpawnFailed, err)
		r.bridge.Status(fmt.Sprintf("Failed to start capture: %s", err))
		return nil, err
	}

	rc := &reception{
		cfg:        cfg,
		readerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}

	if !cfg.Mode.IsAudio() {
		opts := append([]decoder.Option{
			decoder.WithFrequency(cfg.Frequency),
			decoder.WithLogger(r.logger),
		}, cfg.Decoder...)

		if rc.decoder, err = decoder.New(cfg.Mode, opts...); err != nil {
			return nil, fmt.Errorf("creating decoder: %w", err)
		}
		if rc.buffer, err = sdr.NewBlockBuffer(r.bufferCapacity); err != nil {
			return nil, err
		}
	}

	session, err := r.capture.Start(ctx, h, cfg.Duration)
	if err != nil {
		r.bridge.Status(fmt.Sprintf("Failed to start capture: %s", err))
		return nil, err
	}
	rc.session = session
	rc.logger = r.logger.With(slog.String("session", session.ID), slog.String("mode", cfg.Mode.String()))

	if cfg.Mode.IsAudio() {
		if err = r.audio.Start(ctx, cfg.Frequency); err != nil {
			_ = r.capture.Stop()
			r.bridge.Status(fmt.Sprintf("Failed to start audio: %s", err))
			return nil, fmt.Errorf("starting audio: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	rc.cancel = cancel
	rc.running.Store(true)

	r.record(rc, h.Device())

	rc.wg.Add(1)
	go r.read(runCtx, rc)

	if rc.decoder != nil {
		rc.wg.Add(1)
		go r.decode(rc)
	}

	r.current = rc
	r.bridge.Status(fmt.Sprintf("Receiving %s on %.4f MHz", cfg.Mode, cfg.Frequency))

	return session, nil
}

// Stop ends the current reception and waits for its workers to exit.
// Stopping an idle receiver does nothing.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	rc := r.current
	r.mu.Unlock()

	if rc == nil {
		return nil
	}

	err := r.finish(rc, "Reception stopped")
	rc.wg.Wait()
	return err
}

// Running reports whether a reception is in progress
func (r *Receiver) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil && r.current.running.Load()
}

// Done is closed when the current reception has stopped. It is nil when
// nothing was started.
func (r *Receiver) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return nil
	}
	return r.current.done
}

// reception is the state of one Start call
type reception struct {
	cfg     Config
	session *sdr.Session
	decoder decoder.Decoder
	buffer  *sdr.BlockBuffer

	running    atomic.Bool
	cancel     context.CancelFunc
	readerDone chan struct{}
	wg         sync.WaitGroup

	frames  atomic.Int64
	quality atomic.Uint64 // math.Float64bits

	stopOnce sync.Once
	stopErr  error
	done     chan struct{}

	logger *slog.Logger
}

func (rc *reception) setQuality(q float64) {
	rc.quality.Store(math.Float64bits(q))
}

// Quality returns the quality of the last decoded block
func (rc *reception) Quality() float64 {
	return math.Float64frombits(rc.quality.Load())
}

func validate(cfg Config) error {
	if !cfg.Mode.Valid() {
		return driver.NewValidationError(fmt.Sprintf("invalid mode: %s", cfg.Mode))
	}
	if math.IsNaN(cfg.Frequency) || cfg.Frequency <= 0 {
		return driver.NewValidationError(fmt.Sprintf("frequency must be positive: %f", cfg.Frequency))
	}
	if cfg.Duration < 0 {
		return driver.NewValidationError(fmt.Sprintf("duration must not be negative: %s", cfg.Duration))
	}
	return nil
}

func (r *Receiver) read(ctx context.Context, rc *reception) {
	defer rc.wg.Done()
	defer close(rc.readerDone)

	options := []sdr.ReaderOption{
		sdr.WithReaderLogger(rc.logger),
		sdr.WithProgress(r.bridge.ReceptionProgress),
	}
	if rc.cfg.Mode.IsAudio() {
		options = append(options, sdr.WithPlayer(r.audio))
	} else {
		options = append(options, sdr.WithBuffer(rc.buffer))
	}

	err := sdr.NewReader(options...).Run(ctx, rc.session)

	switch {
	case errors.Is(err, driver.ErrStreamClosed):
		if rc.running.Load() && rc.cfg.Mode.IsAudio() {
			_ = r.finish(rc, "Reception complete")
		}
		// telemetry modes finish once the decoder has drained the buffer

	case errors.Is(err, context.Canceled):
		_ = r.finish(rc, "Reception stopped")

	case err != nil:
		rc.logger.Error(err.Error())
		_ = r.finish(rc, fmt.Sprintf("Reception failed: %s", err))
	}
}

func (r *Receiver) decode(rc *reception) {
	defer rc.wg.Done()

	for rc.running.Load() {
		block, ok := rc.buffer.Pop(sdr.PopTimeout)
		if !ok {
			select {
			case <-rc.readerDone:
				if rc.buffer.Size() == 0 {
					r.flush(rc)
					_ = r.finish(rc, "Reception complete")
					return
				}
			default:
			}
			continue
		}

		res := rc.decoder.Decode(block)
		rc.setQuality(res.Quality)

		r.bridge.SetQuality(res.Quality)
		r.bridge.DecodingProgress(res.Progress)
		r.publish(rc, res.Frame)
	}
}

// flush publishes the rows a decoder held back once the stream has ended
func (r *Receiver) flush(rc *reception) {
	if f, ok := rc.decoder.(decoder.Flusher); ok {
		r.publish(rc, f.Flush())
	}
}

func (r *Receiver) publish(rc *reception, f *decoder.Frame) {
	if f == nil {
		return
	}
	rc.frames.Add(1)
	r.bridge.PublishFrame(f)
}

// finish runs the stop path of a reception exactly once.
func (r *Receiver) finish(rc *reception, status string) error {
	rc.stopOnce.Do(func() {
		rc.running.Store(false)
		if rc.cancel != nil {
			rc.cancel()
		}

		var errs []error
		if err := rc.session.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping capture: %w", err))
		}
		if rc.cfg.Mode.IsAudio() {
			if err := r.audio.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stopping audio: %w", err))
			}
		}
		rc.stopErr = errors.Join(errs...)

		if rc.buffer != nil {
			if n := len(rc.buffer.DrainAll()); n > 0 {
				rc.logger.Debug("discarded undecoded blocks", slog.Int("blocks", n))
			}
		}

		r.endRecord(rc)
		r.bridge.Status(status)

		close(rc.done)
	})

	return rc.stopErr
}

func (r *Receiver) record(rc *reception, device string) {
	if r.recorder == nil {
		return
	}

	sess := storage.Session{
		ID:        rc.session.ID,
		Mode:      rc.cfg.Mode.String(),
		Device:    device,
		Frequency: rc.cfg.Frequency,
		Duration:  rc.cfg.Duration,
		StartTime: rc.session.StartedAt,
	}
	if err := r.recorder.CreateSession(context.Background(), &sess, nil); err != nil {
		rc.logger.Error(fmt.Sprintf("recording session: %s", err))
	}
}

func (r *Receiver) endRecord(rc *reception) {
	if r.recorder == nil {
		return
	}

	summary := storage.SessionSummary{
		EndTime: time.Now(),
		Frames:  int(rc.frames.Load()),
		Quality: rc.Quality(),
	}
	if err := r.recorder.EndSession(context.Background(), rc.session.ID, summary); err != nil {
		rc.logger.Error(fmt.Sprintf("recording session end: %s", err))
	}
}
