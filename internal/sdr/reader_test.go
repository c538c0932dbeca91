package sdr

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/radio-receiver/internal/sdr/driver"
)

type recordingPlayer struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (p *recordingPlayer) Play(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chunks = append(p.chunks, pcm)
	return nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("device unplugged")
}

func TestReader_NormalizesBlocks(t *testing.T) {
	bb, _ := NewBlockBuffer(10)
	r := NewReader(WithBuffer(bb))

	src := bytes.NewReader([]byte{0, 255, 128, 127})
	err := r.ReadStream(context.Background(), src, ModeTelemetryA, 4, nil)
	if !errors.Is(err, driver.ErrStreamClosed) {
		t.Fatalf("Expected ErrStreamClosed, got %v", err)
	}

	block, ok := bb.Pop(PopTimeout)
	if !ok {
		t.Fatal("Expected one block")
	}

	for i, v := range block.Samples {
		if v < -0.5 || v > 0.5 {
			t.Errorf("Sample %d: expected value in [-0.5, 0.5], got %f", i, v)
		}
	}
	if math.Abs(block.Samples[0]+0.5) > 1e-9 {
		t.Errorf("Expected first sample -0.5, got %f", block.Samples[0])
	}
	if block.Seq != 1 {
		t.Errorf("Expected sequence 1, got %d", block.Seq)
	}
}

func TestReader_AudioPassthrough(t *testing.T) {
	player := &recordingPlayer{}
	r := NewReader(WithPlayer(player))

	payload := []byte{1, 2, 3, 4, 5, 6}
	err := r.ReadStream(context.Background(), bytes.NewReader(payload), ModeAudio, 4, nil)
	if !errors.Is(err, driver.ErrStreamClosed) {
		t.Fatalf("Expected ErrStreamClosed, got %v", err)
	}

	if len(player.chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(player.chunks))
	}
	if !bytes.Equal(player.chunks[0], []byte{1, 2, 3, 4}) || !bytes.Equal(player.chunks[1], []byte{5, 6}) {
		t.Errorf("Expected raw bytes forwarded unchanged, got %v", player.chunks)
	}
}

func TestReader_EmptyStream(t *testing.T) {
	bb, _ := NewBlockBuffer(10)
	r := NewReader(WithBuffer(bb))

	err := r.ReadStream(context.Background(), bytes.NewReader(nil), ModeTelemetryB, 16, nil)
	if !errors.Is(err, driver.ErrStreamClosed) {
		t.Errorf("Expected ErrStreamClosed, got %v", err)
	}
	if bb.Size() != 0 {
		t.Errorf("Expected no blocks, got %d", bb.Size())
	}
}

func TestReader_ReadFailure(t *testing.T) {
	bb, _ := NewBlockBuffer(10)
	r := NewReader(WithBuffer(bb))

	err := r.ReadStream(context.Background(), failingReader{}, ModeTelemetryA, 16, nil)
	if !errors.Is(err, driver.ErrReadFailed) {
		t.Errorf("Expected ErrReadFailed, got %v", err)
	}
}

func TestReader_BackpressureNoDrops(t *testing.T) {
	bb, _ := NewBlockBuffer(2)
	r := NewReader(WithBuffer(bb), WithPushTimeout(10*time.Millisecond))

	payload := bytes.Repeat([]byte{200}, 4*20)

	done := make(chan error, 1)
	go func() {
		done <- r.ReadStream(context.Background(), bytes.NewReader(payload), ModeTelemetryA, 4, nil)
	}()

	var seqs []uint64
	for len(seqs) < 20 {
		block, ok := bb.Pop(time.Second)
		if !ok {
			t.Fatalf("Expected 20 blocks, got %d", len(seqs))
		}
		seqs = append(seqs, block.Seq)
		time.Sleep(2 * time.Millisecond) // slow consumer
	}

	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Errorf("Block %d: expected sequence %d, got %d", i, i+1, seq)
		}
	}

	if err := <-done; !errors.Is(err, driver.ErrStreamClosed) {
		t.Errorf("Expected ErrStreamClosed, got %v", err)
	}
}

func TestReader_CancelWhileBlocked(t *testing.T) {
	bb, _ := NewBlockBuffer(1)
	r := NewReader(WithBuffer(bb), WithPushTimeout(20*time.Millisecond))

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.ReadStream(ctx, pr, ModeTelemetryA, 4, nil)
	}()

	_, _ = pw.Write(bytes.Repeat([]byte{1}, 8)) // second block blocks on the full buffer
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Reader did not observe cancellation")
	}
}

func TestReader_Progress(t *testing.T) {
	bb, _ := NewBlockBuffer(10)

	var reported []float64
	r := NewReader(WithBuffer(bb), WithProgress(func(p float64) {
		reported = append(reported, p)
	}))

	progress := func() (float64, bool) { return 42, true }
	_ = r.ReadStream(context.Background(), bytes.NewReader(make([]byte, 32)), ModeTelemetryA, 4, progress)

	if len(reported) != 1 || reported[0] != 42 {
		t.Errorf("Expected a single progress report of 42, got %v", reported)
	}
}

func TestReader_Validation(t *testing.T) {
	r := NewReader()

	testCases := []struct {
		name  string
		mode  Mode
		chunk int
	}{
		{"zero chunk", ModeTelemetryA, 0},
		{"decoder without buffer", ModeTelemetryA, 16},
		{"audio without player", ModeAudio, 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.ReadStream(context.Background(), bytes.NewReader(nil), tc.mode, tc.chunk, nil)
			if !driver.IsValidation(err) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}
