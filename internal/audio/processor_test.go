package audio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
)

type memorySink struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closed int
}

func (s *memorySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func memoryFactory(sink *memorySink) SinkFactory {
	return func(context.Context, int) (io.WriteCloser, error) {
		return sink, nil
	}
}

func TestProcessor_PassThroughWhenDisabled(t *testing.T) {
	sink := &memorySink{}
	p := NewProcessor(NewGateConfig(0.9, false), WithSinkFactory(memoryFactory(sink)))

	if err := p.Start(context.Background(), 98.5); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}

	block := []byte{1, 2, 3, 4, 5}
	if err := p.Play(block); err != nil {
		t.Fatalf("Failed to play: %v", err)
	}

	if !bytes.Equal(sink.buf.Bytes(), block) {
		t.Errorf("Expected block unchanged, got %v", sink.buf.Bytes())
	}
}

func TestProcessor_GatesWhenEnabled(t *testing.T) {
	sink := &memorySink{}
	p := NewProcessor(NewGateConfig(0.5, true), WithSinkFactory(memoryFactory(sink)), WithRate(100))

	if err := p.Start(context.Background(), 460.5); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}

	// 100 Hz gives a zero sample fade, so only the threshold applies
	if err := p.Play(Encode([]int16{1000, 100, -1000, -400})); err != nil {
		t.Fatalf("Failed to play: %v", err)
	}

	got := Decode(sink.buf.Bytes())
	if !slices.Equal(got, []int16{1000, 0, -1000, 0}) {
		t.Errorf("Expected [1000 0 -1000 0], got %v", got)
	}
}

func TestProcessor_StopIdempotent(t *testing.T) {
	sink := &memorySink{}
	p := NewProcessor(nil, WithSinkFactory(memoryFactory(sink)))

	if err := p.Stop(); err != nil {
		t.Errorf("Expected stop without output to succeed, got %v", err)
	}

	if err := p.Start(context.Background(), 98.5); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := p.Stop(); err != nil {
			t.Errorf("Stop %d: expected success, got %v", i, err)
		}
	}

	if sink.closed != 1 {
		t.Errorf("Expected sink closed once, got %d", sink.closed)
	}
	if p.Running() {
		t.Error("Processor should not be running")
	}
}

func TestProcessor_PlayWithoutStart(t *testing.T) {
	p := NewProcessor(nil, WithSinkFactory(memoryFactory(&memorySink{})))

	if err := p.Play([]byte{0, 0}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted, got %v", err)
	}
}

func TestProcessor_StartFailure(t *testing.T) {
	failing := func(context.Context, int) (io.WriteCloser, error) {
		return nil, errors.New("no audio device")
	}
	p := NewProcessor(nil, WithSinkFactory(failing))

	if err := p.Start(context.Background(), 98.5); err == nil {
		t.Error("Expected start error")
	}
	if p.Running() {
		t.Error("Processor should not be running after a failed start")
	}
}

func TestPlayerArgs(t *testing.T) {
	expected := []string{"-r", "32000", "-t", "raw", "-e", "s", "-b", "16", "-c", "1", "-V1", "-"}
	if got := PlayerArgs(32000); !slices.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}
