package player

import (
	"context"
	"sync"

	"github.com/averon/playback/media"
)

// frameQueue is a bounded FIFO of decoded frames with exactly one producer
// (a decoder worker) and one consumer (the polling API). Push blocks when
// full but always yields to context cancellation so a pending Stop is never
// held up by a full queue. tryPop and peekPTS never block, because the
// polling API must return immediately.
type frameQueue struct {
	slots chan struct{} // free-capacity tokens

	mu     sync.Mutex
	frames []media.Frame
}

func newFrameQueue(capacity int) *frameQueue {
	q := &frameQueue{slots: make(chan struct{}, capacity)}
	for i := 0; i < capacity; i++ {
		q.slots <- struct{}{}
	}
	return q
}

// push appends f, waiting for a free slot or ctx cancellation.
func (q *frameQueue) push(ctx context.Context, f media.Frame) error {
	select {
	case <-q.slots:
	case <-ctx.Done():
		return ctx.Err()
	}
	q.mu.Lock()
	q.frames = append(q.frames, f)
	q.mu.Unlock()
	return nil
}

// tryPop removes and returns the head frame, or reports false immediately.
func (q *frameQueue) tryPop() (media.Frame, bool) {
	q.mu.Lock()
	if len(q.frames) == 0 {
		q.mu.Unlock()
		return media.Frame{}, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	q.mu.Unlock()

	// A popped frame always frees exactly one slot, so this never blocks.
	q.slots <- struct{}{}
	return f, true
}

// peekPTS returns the head frame's timestamp without consuming it.
func (q *frameQueue) peekPTS() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.frames) == 0 {
		return 0, false
	}
	return q.frames[0].PTS, true
}

// len reports the number of queued frames.
func (q *frameQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// drain removes and returns all queued frames, used on Stop to hand
// texture-backed buffers back to the deallocator.
func (q *frameQueue) drain() []media.Frame {
	var out []media.Frame
	for {
		f, ok := q.tryPop()
		if !ok {
			return out
		}
		out = append(out, f)
	}
}
