package player

import (
	"context"
	"testing"
	"time"

	"github.com/averon/playback/media"
)

func TestFrameQueueFIFO(t *testing.T) {
	t.Parallel()

	q := newFrameQueue(4)
	ctx := context.Background()
	for _, pts := range []int64{10, 20, 30} {
		if err := q.push(ctx, media.Frame{PTS: pts}); err != nil {
			t.Fatalf("push(%d): %v", pts, err)
		}
	}

	if pts, ok := q.peekPTS(); !ok || pts != 10 {
		t.Errorf("peekPTS = %d, %v; want 10, true", pts, ok)
	}
	if q.len() != 3 {
		t.Errorf("len = %d, want 3", q.len())
	}

	for _, want := range []int64{10, 20, 30} {
		f, ok := q.tryPop()
		if !ok || f.PTS != want {
			t.Fatalf("tryPop = %d, %v; want %d, true", f.PTS, ok, want)
		}
	}
	if _, ok := q.tryPop(); ok {
		t.Error("tryPop on empty queue should report false")
	}
	if _, ok := q.peekPTS(); ok {
		t.Error("peekPTS on empty queue should report false")
	}
}

func TestFrameQueuePushBlocksUntilPop(t *testing.T) {
	t.Parallel()

	q := newFrameQueue(1)
	ctx := context.Background()
	if err := q.push(ctx, media.Frame{PTS: 1}); err != nil {
		t.Fatal(err)
	}

	pushed := make(chan error, 1)
	go func() { pushed <- q.push(ctx, media.Frame{PTS: 2}) }()

	select {
	case err := <-pushed:
		t.Fatalf("push on full queue returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	if _, ok := q.tryPop(); !ok {
		t.Fatal("tryPop failed")
	}
	select {
	case err := <-pushed:
		if err != nil {
			t.Fatalf("push after pop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("push did not complete after a slot freed")
	}
}

func TestFrameQueuePushInterruptible(t *testing.T) {
	t.Parallel()

	q := newFrameQueue(1)
	if err := q.push(context.Background(), media.Frame{PTS: 1}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pushed := make(chan error, 1)
	go func() { pushed <- q.push(ctx, media.Frame{PTS: 2}) }()

	cancel()
	select {
	case err := <-pushed:
		if err == nil {
			t.Fatal("push on full queue should fail after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled push did not return")
	}
}

func TestFrameQueueDrain(t *testing.T) {
	t.Parallel()

	q := newFrameQueue(4)
	ctx := context.Background()
	for pts := int64(0); pts < 4; pts++ {
		if err := q.push(ctx, media.Frame{PTS: pts}); err != nil {
			t.Fatal(err)
		}
	}

	frames := q.drain()
	if len(frames) != 4 {
		t.Fatalf("drained %d frames, want 4", len(frames))
	}
	// Capacity is fully restored afterwards.
	for pts := int64(0); pts < 4; pts++ {
		if err := q.push(ctx, media.Frame{PTS: pts}); err != nil {
			t.Fatalf("push after drain: %v", err)
		}
	}
}
