package bridge

import (
	"encoding/json"
	"slices"
	"sync"
	"testing"

	"github.com/roman-kulish/radio-receiver/internal/decoder"
)

func TestQueue(t *testing.T) {
	q := NewQueue[int](3)

	for i := 1; i <= 5; i++ {
		q.Push(i)
	}

	if q.Len() != 3 {
		t.Errorf("Expected len 3, got %d", q.Len())
	}
	if q.Dropped() != 2 {
		t.Errorf("Expected 2 dropped, got %d", q.Dropped())
	}

	if got := q.Drain(); !slices.Equal(got, []int{3, 4, 5}) {
		t.Errorf("Expected [3 4 5], got %v", got)
	}
	if got := q.Drain(); got != nil {
		t.Errorf("Expected nil from an empty queue, got %v", got)
	}
}

func TestQueue_MinimumCapacity(t *testing.T) {
	q := NewQueue[string](0)
	q.Push("a")
	if !q.Push("b") {
		t.Error("Expected second push to evict")
	}
	if got := q.Drain(); !slices.Equal(got, []string{"b"}) {
		t.Errorf("Expected [b], got %v", got)
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := NewQueue[int](10)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				q.Push(i)
			}
		}()
	}

	var drained int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			drained += len(q.Drain())
		}
	}()

	wg.Wait()
	<-done
	drained += len(q.Drain())

	if uint64(drained)+q.Dropped() != 4000 {
		t.Errorf("Expected drained + dropped = 4000, got %d + %d", drained, q.Dropped())
	}
}

func TestBridge_Events(t *testing.T) {
	b := New(WithEventCapacity(2))

	b.ReceptionProgress(10)
	b.DecodingProgress(20)
	b.Status("Decoding complete")

	events := b.DrainEvents()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Kind != KindDecodingProgress || events[0].Value != 20 {
		t.Errorf("Expected decoding progress 20, got %+v", events[0])
	}
	if events[1].Kind != KindStatus || events[1].Message != "Decoding complete" {
		t.Errorf("Expected status message, got %+v", events[1])
	}
	if _, dropped := b.Dropped(); dropped != 1 {
		t.Errorf("Expected 1 dropped event, got %d", dropped)
	}
}

func TestBridge_Frames(t *testing.T) {
	b := New(WithFrameCapacity(1))

	if b.LatestFrame() != nil {
		t.Error("Expected no latest frame")
	}

	b.PublishFrame(&decoder.Frame{Seq: 1, Quality: 10})
	b.PublishFrame(&decoder.Frame{Seq: 2, Quality: 42})
	b.PublishFrame(nil)

	if b.Quality() != 42 {
		t.Errorf("Expected quality 42, got %f", b.Quality())
	}

	frames := b.DrainFrames()
	if len(frames) != 1 || frames[0].Seq != 2 {
		t.Errorf("Expected only frame 2, got %v", frames)
	}

	if latest := b.LatestFrame(); latest == nil || latest.Seq != 2 {
		t.Errorf("Expected latest frame 2 after drain, got %v", latest)
	}
}

func TestKind_JSON(t *testing.T) {
	data, err := json.Marshal(Event{Kind: KindReceptionProgress, Value: 50})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if e.Kind != KindReceptionProgress {
		t.Errorf("Expected %s, got %s", KindReceptionProgress, e.Kind)
	}

	if _, err := json.Marshal(Event{Kind: Kind(9)}); err == nil {
		t.Error("Expected error for unknown kind")
	}
}
