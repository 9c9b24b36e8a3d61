package player

import (
	"sync"

	"github.com/averon/playback/media"
)

// streamTable maps stream indexes to their descriptors and enabled flags.
// The controller mutates it on Enable/DisableStream while the demuxer
// worker consults it for every packet, so all access goes through the lock.
type streamTable struct {
	mu      sync.RWMutex
	streams []media.StreamDescriptor
	enabled []bool
}

// reset replaces the table contents with a freshly enumerated stream set.
// All streams start disabled; the caller opts in per stream.
func (t *streamTable) reset(descs []media.StreamDescriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streams = descs
	t.enabled = make([]bool, len(descs))
}

// clear empties the table when the source is released.
func (t *streamTable) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streams = nil
	t.enabled = nil
}

// count returns the number of enumerated streams.
func (t *streamTable) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.streams)
}

// get returns the descriptor and enabled flag for index i.
func (t *streamTable) get(i int) (media.StreamDescriptor, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.streams) {
		return media.StreamDescriptor{}, false, ErrInvalidStreamIndex
	}
	return t.streams[i], t.enabled[i], nil
}

// setEnabled flips the enabled flag for index i. Disabling takes effect for
// the next packet the demuxer reads; packets already routed to a decoder
// still drain.
func (t *streamTable) setEnabled(i int, enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.streams) {
		return ErrInvalidStreamIndex
	}
	t.enabled[i] = enabled
	return nil
}

// routable reports whether packets for stream i should reach a decoder.
// Unknown indexes are not routable.
func (t *streamTable) routable(i int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return i >= 0 && i < len(t.enabled) && t.enabled[i]
}

// anyEnabled reports whether any stream of the given kind is enabled, used
// to pick the AV-sync clock master.
func (t *streamTable) anyEnabled(kind media.Kind) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, d := range t.streams {
		if d.Kind == kind && t.enabled[i] {
			return true
		}
	}
	return false
}
