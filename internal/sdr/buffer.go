package sdr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultBufferCapacity is the number of blocks held between the stream
	// reader and the decoder.
	DefaultBufferCapacity = 100

	// PushTimeout bounds each blocking push attempt so the reader can observe
	// cancellation while the consumer is slow.
	PushTimeout = 200 * time.Millisecond

	// PopTimeout bounds each pop so consumers can observe cancellation.
	PopTimeout = 100 * time.Millisecond
)

// ErrBufferTimeout is returned by Push when no slot freed up in time
var ErrBufferTimeout = errors.New("buffer push timed out")

// BlockBuffer is a bounded FIFO of sample blocks shared by one producer and
// one consumer. Ownership of a block passes to the consumer on Pop.
type BlockBuffer struct {
	blocks chan SampleBlock
}

// NewBlockBuffer creates a buffer holding at most capacity blocks.
func NewBlockBuffer(capacity int) (*BlockBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid buffer capacity: %d", capacity)
	}
	return &BlockBuffer{blocks: make(chan SampleBlock, capacity)}, nil
}

// Push appends block, waiting up to timeout for a free slot. It returns
// ErrBufferTimeout when the buffer stayed full, or the context error.
func (b *BlockBuffer) Push(ctx context.Context, block SampleBlock, timeout time.Duration) error {
	select {
	case b.blocks <- block:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case b.blocks <- block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrBufferTimeout
	}
}

// Pop removes the oldest block, waiting up to timeout. The second value is
// false when nothing arrived in time.
func (b *BlockBuffer) Pop(timeout time.Duration) (SampleBlock, bool) {
	select {
	case block := <-b.blocks:
		return block, true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case block := <-b.blocks:
		return block, true
	case <-timer.C:
		return SampleBlock{}, false
	}
}

// IsFull returns true if the buffer has reached its capacity.
func (b *BlockBuffer) IsFull() bool {
	return len(b.blocks) == cap(b.blocks)
}

// Size returns the current number of blocks in the buffer.
func (b *BlockBuffer) Size() int {
	return len(b.blocks)
}

// Capacity returns the maximum number of blocks
func (b *BlockBuffer) Capacity() int {
	return cap(b.blocks)
}

// DrainAll removes and returns all blocks without waiting.
// Returns nil if the buffer is empty.
func (b *BlockBuffer) DrainAll() []SampleBlock {
	var results []SampleBlock
	for {
		select {
		case block := <-b.blocks:
			results = append(results, block)
		default:
			return results
		}
	}
}
