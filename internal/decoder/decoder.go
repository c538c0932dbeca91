// Package decoder turns normalized sample blocks into progressively built
// telemetry imagery. The decoders are placeholder visualizations driven by
// the signal quality of each block.
package decoder

import (
	"fmt"
	"image"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/sdr"
)

// Frame is a rendered image handed to the presentation side. The image is a
// copy; the decoder never touches it again.
type Frame struct {
	Mode      sdr.Mode
	Image     *image.RGBA
	Quality   float64
	Seq       uint64
	Rows      int
	Timestamp time.Time
}

// Result is the outcome of decoding one block. Frame is nil when the
// decoder withheld output for the block.
type Result struct {
	Quality  float64
	Progress float64 // decoding progress in [0, 100)
	Frame    *Frame
}

// Decoder consumes sample blocks of one session.
type Decoder interface {
	Mode() sdr.Mode
	Decode(block sdr.SampleBlock) Result
	Reset()
}

// Flusher is implemented by decoders that may hold rows back between frames.
// Flush is called once the stream has ended.
type Flusher interface {
	Flush() *Frame
}

// Option configures a decoder
type Option func(o *options)

type options struct {
	frequency float64
	theme     ColorTheme
	cadence   CadencePolicy
	width     int
	size      int
	seed      uint64
	now       func() time.Time
	logger    *slog.Logger
}

// WithFrequency sets the tuned frequency shown in overlays (MHz)
func WithFrequency(mhz float64) Option {
	return func(o *options) {
		o.frequency = mhz
	}
}

// WithTheme sets the Telemetry-A row palette
func WithTheme(theme ColorTheme) Option {
	return func(o *options) {
		o.theme = theme
	}
}

// WithCadence sets when Telemetry-A emits frames
func WithCadence(policy CadencePolicy) Option {
	return func(o *options) {
		o.cadence = policy
	}
}

// WithRowWidth sets the Telemetry-A image width in pixels
func WithRowWidth(width int) Option {
	return func(o *options) {
		o.width = width
	}
}

// WithFrameSize sets the Telemetry-B square frame size in pixels
func WithFrameSize(size int) Option {
	return func(o *options) {
		o.size = size
	}
}

// WithSeed makes the synthetic noise reproducible
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger for the decoder
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates the decoder of a telemetry mode. Audio modes have no decoder.
func New(mode sdr.Mode, opts ...Option) (Decoder, error) {
	o := options{
		theme:   GrayscaleTheme,
		cadence: DefaultCadence,
		width:   DefaultRowWidth,
		size:    DefaultFrameSize,
		seed:    uint64(time.Now().UnixNano()),
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	annotator, err := NewAnnotator()
	if err != nil {
		return nil, err
	}

	o.logger = o.logger.With(slog.String("component", "decoder"), slog.String("mode", mode.String()))
	rng := rand.New(rand.NewPCG(o.seed, o.seed>>1|1))

	switch mode {
	case sdr.ModeTelemetryA:
		if o.width <= 0 {
			return nil, fmt.Errorf("invalid row width: %d", o.width)
		}
		return newTelemetryA(o, annotator, rng), nil

	case sdr.ModeTelemetryB:
		if o.size <= 0 {
			return nil, fmt.Errorf("invalid frame size: %d", o.size)
		}
		return newTelemetryB(o, annotator, rng), nil

	case sdr.ModeAudio, sdr.ModeScanAudio:
		return nil, fmt.Errorf("mode %s has no image decoder", mode)

	default:
		return nil, fmt.Errorf("unknown mode %s", mode)
	}
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}
