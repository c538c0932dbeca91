// Package bridge carries decoded frames, quality and status events from the
// pipeline workers to a presentation layer that polls at its own pace.
package bridge

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/decoder"
)

const (
	DefaultFrameCapacity = 10
	DefaultEventCapacity = 100
)

// Kind is the type of an Event
type Kind int

const (
	KindReceptionProgress Kind = iota + 1
	KindDecodingProgress
	KindStatus
)

var kindNames = map[Kind]string{
	KindReceptionProgress: "reception-progress",
	KindDecodingProgress:  "decoding-progress",
	KindStatus:            "status-message",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown event kind: %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind: %q", s)
}

// Event is a progress update or a status message. Progress events carry a
// percentage in Value, status events carry Message.
type Event struct {
	Kind      Kind      `json:"kind"`
	Value     float64   `json:"value,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WithLogger sets the logger for the bridge
func WithLogger(logger *slog.Logger) func(b *Bridge) {
	return func(b *Bridge) {
		b.logger = logger.With(slog.String("component", "bridge"))
	}
}

// WithFrameCapacity sets how many undrained frames are kept
func WithFrameCapacity(capacity int) func(b *Bridge) {
	return func(b *Bridge) {
		b.frameCapacity = capacity
	}
}

// WithEventCapacity sets how many undrained events are kept
func WithEventCapacity(capacity int) func(b *Bridge) {
	return func(b *Bridge) {
		b.eventCapacity = capacity
	}
}

// Bridge is safe for concurrent use by any number of producers and
// consumers.
type Bridge struct {
	frames *Queue[*decoder.Frame]
	events *Queue[Event]

	latest  atomic.Pointer[decoder.Frame]
	quality atomic.Uint64 // math.Float64bits

	frameCapacity int
	eventCapacity int

	logger *slog.Logger
}

// New creates a new Bridge with a discard logger
func New(options ...func(b *Bridge)) *Bridge {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	b := Bridge{
		frameCapacity: DefaultFrameCapacity,
		eventCapacity: DefaultEventCapacity,
		logger:        logger,
	}

	for _, option := range options {
		option(&b)
	}

	b.frames = NewQueue[*decoder.Frame](b.frameCapacity)
	b.events = NewQueue[Event](b.eventCapacity)

	return &b
}

// PublishFrame queues a decoded frame. The frame must not be modified
// afterwards.
func (b *Bridge) PublishFrame(f *decoder.Frame) {
	if f == nil {
		return
	}

	b.latest.Store(f)
	b.SetQuality(f.Quality)

	if b.frames.Push(f) {
		b.logger.Debug("frame queue full, oldest frame dropped", slog.Uint64("seq", f.Seq))
	}
}

// SetQuality records the latest quality sample
func (b *Bridge) SetQuality(q float64) {
	b.quality.Store(math.Float64bits(q))
}

// Quality returns the latest quality sample
func (b *Bridge) Quality() float64 {
	return math.Float64frombits(b.quality.Load())
}

// LatestFrame returns the most recent frame, drained or not, or nil
func (b *Bridge) LatestFrame() *decoder.Frame {
	return b.latest.Load()
}

// ReceptionProgress reports how much of a bounded session has elapsed
func (b *Bridge) ReceptionProgress(percent float64) {
	b.publish(Event{Kind: KindReceptionProgress, Value: percent})
}

// DecodingProgress reports decoder progress
func (b *Bridge) DecodingProgress(percent float64) {
	b.publish(Event{Kind: KindDecodingProgress, Value: percent})
}

// Status reports a human readable status message
func (b *Bridge) Status(message string) {
	b.logger.Info(message)
	b.publish(Event{Kind: KindStatus, Message: message})
}

func (b *Bridge) publish(e Event) {
	e.Timestamp = time.Now()
	if b.events.Push(e) {
		b.logger.Debug("event queue full, oldest event dropped", slog.String("kind", e.Kind.String()))
	}
}

// DrainFrames returns all queued frames without blocking
func (b *Bridge) DrainFrames() []*decoder.Frame {
	return b.frames.Drain()
}

// DrainEvents returns all queued events without blocking
func (b *Bridge) DrainEvents() []Event {
	return b.events.Drain()
}

// Dropped returns how many frames and events were evicted unread
func (b *Bridge) Dropped() (frames, events uint64) {
	return b.frames.Dropped(), b.events.Dropped()
}
