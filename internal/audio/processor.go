package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

const DefaultRate = 44100

// ErrNotStarted is returned by Play when no output is open
var ErrNotStarted = errors.New("audio output not started")

// WithLogger sets the logger for the processor
func WithLogger(logger *slog.Logger) func(p *Processor) {
	return func(p *Processor) {
		p.logger = logger.With(slog.String("component", "audio"))
	}
}

// WithSinkFactory replaces the external player
func WithSinkFactory(factory SinkFactory) func(p *Processor) {
	return func(p *Processor) {
		p.open = factory
	}
}

// WithRate sets the output sample rate in Hz
func WithRate(rate int) func(p *Processor) {
	return func(p *Processor) {
		p.rate = rate
	}
}

// Processor gates PCM blocks and writes them to an audio output.
type Processor struct {
	gate *GateConfig
	open SinkFactory
	rate int

	mu        sync.Mutex
	sink      io.WriteCloser
	frequency float64

	logger *slog.Logger
}

// NewProcessor creates a processor reading its gate settings from gate
func NewProcessor(gate *GateConfig, options ...func(p *Processor)) *Processor {
	p := Processor{
		gate:   gate,
		open:   NewPlayerFactory(""),
		rate:   DefaultRate,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	if p.gate == nil {
		p.gate = NewGateConfig(DefaultThreshold, false)
	}

	return &p
}

// Gate returns the live gate configuration
func (p *Processor) Gate() *GateConfig {
	return p.gate
}

// Start opens the audio output for a channel at frequency MHz. An output
// that is already open is closed first.
func (p *Processor) Start(ctx context.Context, frequency float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sink != nil {
		if err := p.closeLocked(); err != nil {
			p.logger.Warn(fmt.Sprintf("closing previous output: %s", err))
		}
	}

	sink, err := p.open(ctx, p.rate)
	if err != nil {
		return fmt.Errorf("opening audio output: %w", err)
	}

	p.sink = sink
	p.frequency = frequency
	p.logger.Info("audio started", slog.Float64("frequency", frequency), slog.Int("rate", p.rate))

	return nil
}

// Stop closes the output. It is idempotent and safe without an open output.
func (p *Processor) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sink == nil {
		return nil
	}
	return p.closeLocked()
}

func (p *Processor) closeLocked() error {
	err := p.sink.Close()
	p.sink = nil
	p.logger.Info("audio stopped", slog.Float64("frequency", p.frequency))
	return err
}

// Running reports whether an output is open
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sink != nil
}

// Play writes one s16le block, gated when the gate is enabled.
func (p *Processor) Play(pcm []byte) error {
	out := p.Process(pcm)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sink == nil {
		return ErrNotStarted
	}
	if _, err := p.sink.Write(out); err != nil {
		return fmt.Errorf("writing audio: %w", err)
	}
	return nil
}

// Process applies the current gate settings to a block without playing it
func (p *Processor) Process(pcm []byte) []byte {
	settings := p.gate.Settings()
	if !settings.Enabled {
		return pcm
	}
	return Encode(Gate(Decode(pcm), settings.Threshold, FadeLength(p.rate)))
}
