package sdr

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBlockBuffer_Ordering(t *testing.T) {
	bb, err := NewBlockBuffer(10)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	ctx := context.Background()
	for i := uint64(1); i <= 5; i++ {
		if err := bb.Push(ctx, SampleBlock{Seq: i}, PushTimeout); err != nil {
			t.Errorf("Failed to push block %d: %v", i, err)
		}
	}

	if size := bb.Size(); size != 5 {
		t.Errorf("Expected buffer size 5, got %d", size)
	}

	for i := uint64(1); i <= 5; i++ {
		block, ok := bb.Pop(PopTimeout)
		if !ok {
			t.Fatalf("Expected block %d, got timeout", i)
		}
		if block.Seq != i {
			t.Errorf("Expected sequence %d, got %d", i, block.Seq)
		}
	}
}

func TestBlockBuffer_Backpressure(t *testing.T) {
	bb, err := NewBlockBuffer(2)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	ctx := context.Background()
	_ = bb.Push(ctx, SampleBlock{Seq: 1}, PushTimeout)
	_ = bb.Push(ctx, SampleBlock{Seq: 2}, PushTimeout)

	if !bb.IsFull() {
		t.Error("Buffer should be full")
	}

	start := time.Now()
	err = bb.Push(ctx, SampleBlock{Seq: 3}, 50*time.Millisecond)
	if !errors.Is(err, ErrBufferTimeout) {
		t.Errorf("Expected ErrBufferTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Expected push to wait for the timeout, returned after %s", elapsed)
	}

	// a consumer freeing a slot unblocks the producer
	go func() {
		time.Sleep(20 * time.Millisecond)
		bb.Pop(PopTimeout)
	}()

	if err = bb.Push(ctx, SampleBlock{Seq: 3}, time.Second); err != nil {
		t.Errorf("Expected push to succeed after pop, got %v", err)
	}

	blocks := bb.DrainAll()
	if len(blocks) != 2 || blocks[0].Seq != 2 || blocks[1].Seq != 3 {
		t.Errorf("Expected blocks [2 3], got %v", blocks)
	}
}

func TestBlockBuffer_Cancellation(t *testing.T) {
	bb, _ := NewBlockBuffer(1)
	_ = bb.Push(context.Background(), SampleBlock{Seq: 1}, PushTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := bb.Push(ctx, SampleBlock{Seq: 2}, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestBlockBuffer_EdgeCases(t *testing.T) {
	bb, err := NewBlockBuffer(5)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	start := time.Now()
	if _, ok := bb.Pop(30 * time.Millisecond); ok {
		t.Error("Pop on empty buffer should time out")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Pop on empty buffer took too long: %s", elapsed)
	}
	if bb.DrainAll() != nil {
		t.Error("DrainAll on empty buffer should return nil")
	}
	if bb.IsFull() {
		t.Error("Empty buffer should not be full")
	}
	if bb.Capacity() != 5 {
		t.Errorf("Expected capacity 5, got %d", bb.Capacity())
	}

	testCases := []struct {
		name     string
		capacity int
	}{
		{"zero capacity", 0},
		{"negative capacity", -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewBlockBuffer(tc.capacity); err == nil {
				t.Error("Expected error for invalid parameters")
			}
		})
	}
}
