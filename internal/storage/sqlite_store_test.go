package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "receiver.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return s
}

func TestSqliteStore_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := &Session{
		ID:        "a5b0c6f2-1111-4222-8333-944455556666",
		Mode:      "telemetry-a",
		Device:    "RTL-SDR",
		Frequency: 137.5,
		Duration:  90 * time.Second,
		StartTime: start,
	}

	if err := s.CreateSession(ctx, sess, map[string]any{"gain": 30}); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	got, err := s.Session(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Failed to read session: %v", err)
	}
	if got.Mode != "telemetry-a" || got.Frequency != 137.5 || got.Duration != 90*time.Second {
		t.Errorf("Expected stored session fields, got %+v", got)
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("Expected start time %s, got %s", start, got.StartTime)
	}
	if got.EndTime != nil || got.Quality != nil {
		t.Errorf("Expected open session, got end %v quality %v", got.EndTime, got.Quality)
	}
	if got.Config == nil || *got.Config != `{"gain":30}` {
		t.Errorf("Expected JSON config, got %v", got.Config)
	}

	end := start.Add(90 * time.Second)
	if err := s.EndSession(ctx, sess.ID, SessionSummary{EndTime: end, Frames: 42, Quality: 63.5}); err != nil {
		t.Fatalf("Failed to end session: %v", err)
	}

	got, err = s.Session(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Failed to read session: %v", err)
	}
	if got.EndTime == nil || !got.EndTime.Equal(end) {
		t.Errorf("Expected end time %s, got %v", end, got.EndTime)
	}
	if got.Frames != 42 || got.Quality == nil || *got.Quality != 63.5 {
		t.Errorf("Expected 42 frames at 63.5, got %d at %v", got.Frames, got.Quality)
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("Expected 1 session, got %d", len(sessions))
	}
}

func TestSqliteStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Session(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := s.EndSession(ctx, "missing", SessionSummary{EndTime: time.Now()}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := s.CreateSession(ctx, &Session{}, nil); err == nil {
		t.Error("Expected error for a session without ID")
	}
}

func TestSqliteStore_ActiveChannels(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CreateSession(ctx, &Session{ID: "scan-1", Mode: "scan-audio", Device: "RTL-SDR", Frequency: 450}, nil); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	readings := []ChannelReading{
		{Frequency: 450.0125, Quality: 31},
		{Frequency: 450.025, Quality: 63},
		{Frequency: 450.0125, Quality: 90}, // duplicate keeps the first
	}
	for _, r := range readings {
		if err := s.StoreScanResult(ctx, "scan-1", r); err != nil {
			t.Fatalf("Failed to store scan result: %v", err)
		}
		if err := s.StoreActiveChannel(ctx, "scan-1", r); err != nil {
			t.Fatalf("Failed to store active channel: %v", err)
		}
	}

	channels, err := s.ActiveChannels(ctx, "scan-1")
	if err != nil {
		t.Fatalf("Failed to read active channels: %v", err)
	}

	if len(channels) != 2 {
		t.Fatalf("Expected 2 channels, got %d: %v", len(channels), channels)
	}
	if channels[0].Frequency != 450.025 || channels[1].Frequency != 450.0125 {
		t.Errorf("Expected channels best first, got %v", channels)
	}
	if channels[1].Quality != 31 {
		t.Errorf("Expected first reading kept, got quality %f", channels[1].Quality)
	}
	if channels[0].Timestamp.IsZero() {
		t.Error("Expected a timestamp")
	}

	other, err := s.ActiveChannels(ctx, "scan-2")
	if err != nil {
		t.Fatalf("Failed to read active channels: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no channels for another session, got %v", other)
	}
}

func TestSqliteStore_CloseTwice(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "receiver.db"))
	if _, err := s.Sessions(context.Background()); err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Expected close to succeed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Expected second close to succeed, got %v", err)
	}
}
