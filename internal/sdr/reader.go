package sdr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/radio-receiver/internal/sdr/driver"
)

const progressInterval = time.Second

// AudioPlayer consumes raw PCM chunks for playback
type AudioPlayer interface {
	Play(pcm []byte) error
}

// ReaderOption configures a Reader
type ReaderOption func(r *Reader)

// WithReaderLogger sets the logger for the reader
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger.With(slog.String("component", "reader"))
	}
}

// WithBuffer sets the buffer decoded modes push normalized blocks to
func WithBuffer(buffer *BlockBuffer) ReaderOption {
	return func(r *Reader) {
		r.buffer = buffer
	}
}

// WithPlayer sets the sink audio modes forward raw chunks to
func WithPlayer(player AudioPlayer) ReaderOption {
	return func(r *Reader) {
		r.player = player
	}
}

// WithProgress registers a callback receiving reception progress in percent
// for bounded sessions, at most once per second.
func WithProgress(fn func(percent float64)) ReaderOption {
	return func(r *Reader) {
		r.onProgress = fn
	}
}

// WithPushTimeout overrides the slice a single blocking push waits for
func WithPushTimeout(timeout time.Duration) ReaderOption {
	return func(r *Reader) {
		r.pushTimeout = timeout
	}
}

// Reader turns the capture stream into sample blocks.
type Reader struct {
	buffer     *BlockBuffer
	player     AudioPlayer
	onProgress func(percent float64)

	pushTimeout time.Duration
	logger      *slog.Logger
}

// NewReader creates a new Reader instance with a discard logger
func NewReader(options ...ReaderOption) *Reader {
	r := Reader{
		pushTimeout: PushTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Run reads the session stream until it closes, fails or ctx is cancelled.
func (r *Reader) Run(ctx context.Context, s *Session) error {
	return r.ReadStream(ctx, s.Stream(), s.Mode, s.ChunkSize, s.Progress)
}

// ReadStream reads chunkSize byte chunks from src. Audio modes forward raw
// bytes to the player; other modes push normalized blocks to the buffer,
// waiting for space rather than dropping. A closed stream returns
// driver.ErrStreamClosed and any other failure wraps driver.ErrReadFailed.
// progress may be nil.
func (r *Reader) ReadStream(ctx context.Context, src io.Reader, mode Mode, chunkSize int, progress func() (float64, bool)) error {
	if chunkSize <= 0 {
		return driver.NewValidationError(fmt.Sprintf("chunk size must be positive: %d", chunkSize))
	}
	if mode.IsAudio() && r.player == nil {
		return driver.NewValidationError(fmt.Sprintf("mode %s requires an audio player", mode))
	}
	if !mode.IsAudio() && r.buffer == nil {
		return driver.NewValidationError(fmt.Sprintf("mode %s requires a block buffer", mode))
	}

	var (
		seq          uint64
		total        uint64
		lastProgress time.Time
	)

	defer func() {
		r.logger.Info("stream reader stopped",
			slog.String("received", humanize.Bytes(total)),
			slog.String("blocks", humanize.Comma(int64(seq))),
		)
	}()

	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(src, chunk)
		if n > 0 {
			seq++
			total += uint64(n)

			if dErr := r.deliver(ctx, mode, seq, chunk[:n]); dErr != nil {
				return dErr
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, fs.ErrClosed) {
				return driver.ErrStreamClosed
			}
			return fmt.Errorf("%w: %w", driver.ErrReadFailed, err)
		}

		if progress != nil && r.onProgress != nil && time.Since(lastProgress) >= progressInterval {
			if p, ok := progress(); ok {
				r.onProgress(p)
			}
			lastProgress = time.Now()
			r.logger.Debug("reception", slog.String("received", humanize.Bytes(total)))
		}
	}
}

func (r *Reader) deliver(ctx context.Context, mode Mode, seq uint64, p []byte) error {
	if mode.IsAudio() {
		pcm := make([]byte, len(p))
		copy(pcm, p)

		if err := r.player.Play(pcm); err != nil {
			r.logger.Warn(fmt.Sprintf("audio playback failed: %s", err))
		}
		return nil
	}

	block := SampleBlock{
		Seq:       seq,
		Timestamp: time.Now(),
		Samples:   Normalize(p),
	}

	for {
		err := r.buffer.Push(ctx, block, r.pushTimeout)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrBufferTimeout) {
			return err
		}
		r.logger.Debug("block buffer full, waiting", slog.Uint64("seq", seq))
	}
}
