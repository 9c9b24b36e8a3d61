package player

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handle is the opaque token the entry-point surface hands to callers in
// place of a raw engine pointer. The zero value is never valid.
type Handle string

// NoHandle is returned when initialization fails.
const NoHandle Handle = ""

// Registry is the entry-point facade: it maps opaque handles to engine
// instances and performs handle and out-pointer validation before touching
// any player state. Every status-returning operation maps engine errors to
// the fixed status codes; GetAudioData and GetVideoData return presence
// flags instead.
type Registry struct {
	log *slog.Logger

	mu      sync.RWMutex
	players map[Handle]*Player
}

// NewRegistry creates an empty handle registry. If log is nil,
// slog.Default() is used.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:     log.With("component", "registry"),
		players: make(map[Handle]*Player),
	}
}

// lookup resolves a handle, reporting false for unknown or closed handles.
func (r *Registry) lookup(h Handle) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[h]
	return p, ok
}

// Init creates a player and returns its handle, or NoHandle when the init
// data is rejected (a missing allocator callback, most commonly).
func (r *Registry) Init(data InitData) Handle {
	p, err := New(data, r.log)
	if err != nil {
		r.log.Error("init rejected", "error", err)
		return NoHandle
	}
	return r.register(p)
}

// InitEx creates a player with explicit scheduling overrides, storing the
// new handle through out.
func (r *Registry) InitEx(data InitDataEx, out *Handle) Status {
	if out == nil {
		return StatusInvalidParams
	}
	p, err := NewEx(data, r.log)
	if err != nil {
		r.log.Error("init rejected", "error", err)
		return statusOf(err)
	}
	*out = r.register(p)
	return StatusOK
}

func (r *Registry) register(p *Player) Handle {
	h := Handle(uuid.NewString())
	r.mu.Lock()
	r.players[h] = p
	r.mu.Unlock()
	r.log.Debug("player registered", "handle", string(h))
	return h
}

// Close tears down the player and invalidates its handle.
func (r *Registry) Close(h Handle) Status {
	r.mu.Lock()
	p, ok := r.players[h]
	if ok {
		delete(r.players, h)
	}
	r.mu.Unlock()

	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.Close())
}

// PostInit forwards backend memory sizing to the player.
func (r *Registry) PostInit(h Handle, data *PostInitData) Status {
	p, ok := r.lookup(h)
	if !ok || data == nil {
		return StatusInvalidParams
	}
	return statusOf(p.PostInit(*data))
}

// AddSource opens and probes uri on the player.
func (r *Registry) AddSource(h Handle, uri string) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.AddSource(uri))
}

// AddSourceEx is accepted but not implemented.
func (r *Registry) AddSourceEx(h Handle, uri string) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.acceptStub("add-source-ex"))
}

// Start begins playback.
func (r *Registry) Start(h Handle) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.Start())
}

// Stop halts playback. Stopping twice is a no-op success.
func (r *Registry) Stop(h Handle) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.Stop())
}

// IsActive reports whether playback is running on the player. Unknown
// handles report false.
func (r *Registry) IsActive(h Handle) bool {
	p, ok := r.lookup(h)
	return ok && p.IsActive()
}

// CurrentTime returns the player's AV-sync clock in milliseconds, or zero
// for an unknown handle.
func (r *Registry) CurrentTime(h Handle) int64 {
	p, ok := r.lookup(h)
	if !ok {
		return 0
	}
	return p.CurrentTime()
}

// EnableStream marks a stream for decoding.
func (r *Registry) EnableStream(h Handle, index int) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.EnableStream(index))
}

// DisableStream stops decoding a stream.
func (r *Registry) DisableStream(h Handle, index int) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.DisableStream(index))
}

// StreamCount stores the enumerated stream count through out.
func (r *Registry) StreamCount(h Handle, out *int) Status {
	p, ok := r.lookup(h)
	if !ok || out == nil {
		return StatusInvalidParams
	}
	n, err := p.StreamCount()
	if err != nil {
		return statusOf(err)
	}
	*out = n
	return StatusOK
}

// GetStreamInfo stores the descriptor for the indexed stream through out.
func (r *Registry) GetStreamInfo(h Handle, index int, out *StreamInfo) Status {
	p, ok := r.lookup(h)
	if !ok || out == nil {
		return StatusInvalidParams
	}
	info, err := p.GetStreamInfo(index)
	if err != nil {
		return statusOf(err)
	}
	*out = info
	return StatusOK
}

// GetAudioData polls for a decoded audio frame; the bool is a presence
// flag, not a status code.
func (r *Registry) GetAudioData(h Handle, out *AudioFrameInfo) bool {
	p, ok := r.lookup(h)
	if !ok || out == nil {
		return false
	}
	return p.GetAudioData(out)
}

// GetVideoData polls for a due decoded video frame; the bool is a presence
// flag, not a status code.
func (r *Registry) GetVideoData(h Handle, out *VideoFrameInfo) bool {
	p, ok := r.lookup(h)
	if !ok || out == nil {
		return false
	}
	return p.GetVideoData(out)
}

// GetVideoDataEx is GetVideoData with extended display metadata.
func (r *Registry) GetVideoDataEx(h Handle, out *VideoFrameInfoEx) bool {
	p, ok := r.lookup(h)
	if !ok || out == nil {
		return false
	}
	return p.GetVideoDataEx(out)
}

// ReleaseVideoFrame hands a delivered texture buffer back to the caller's
// deallocator.
func (r *Registry) ReleaseVideoFrame(h Handle, pts int64) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.ReleaseVideoFrame(pts))
}

// JumpToTime is accepted but not implemented.
func (r *Registry) JumpToTime(h Handle, ms uint64) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.JumpToTime(ms))
}

// Pause is accepted but not implemented.
func (r *Registry) Pause(h Handle) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.Pause())
}

// Resume is accepted but not implemented.
func (r *Registry) Resume(h Handle) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.Resume())
}

// SetLooping is accepted but not implemented.
func (r *Registry) SetLooping(h Handle, loop bool) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.SetLooping(loop))
}

// SetTrickSpeed is accepted but not implemented.
func (r *Registry) SetTrickSpeed(h Handle, speed int) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.SetTrickSpeed(speed))
}

// SetAvSyncMode is accepted but not implemented.
func (r *Registry) SetAvSyncMode(h Handle, mode AvSyncMode) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.SetAvSyncMode(mode))
}

// ChangeStream is accepted but not implemented.
func (r *Registry) ChangeStream(h Handle) Status {
	p, ok := r.lookup(h)
	if !ok {
		return StatusInvalidParams
	}
	return statusOf(p.ChangeStream())
}
