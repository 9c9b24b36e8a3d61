// Package sched derives per-role scheduling priorities for the playback
// engine's worker threads and applies them to the OS threads the workers
// run on.
package sched

// Engine priority domain. Larger values mean lower scheduling urgency, so
// the demuxer (largest offset) yields CPU to the decoders it feeds while
// the controller (smallest offset) stays responsive for state transitions
// and AV-sync decisions.
const (
	DefaultBasePriority = 700

	minBasePriority = 637
	maxBasePriority = 764
	maxPriority     = 767

	OffsetController   = 2
	OffsetVideoDecoder = 5
	OffsetAudioDecoder = 6
	OffsetDemuxer      = 9
)

// Role identifies which worker a priority applies to.
type Role int

const (
	RoleController Role = iota
	RoleVideoDecoder
	RoleAudioDecoder
	RoleDemuxer
)

// String returns the role name for logging.
func (r Role) String() string {
	switch r {
	case RoleController:
		return "controller"
	case RoleVideoDecoder:
		return "video-decoder"
	case RoleAudioDecoder:
		return "audio-decoder"
	case RoleDemuxer:
		return "demuxer"
	default:
		return "unknown"
	}
}

// ThreadPriority is the resolved priority and optional CPU affinity mask
// for one worker role. A zero Affinity means no pinning.
type ThreadPriority struct {
	Role     Role
	Priority uint32
	Affinity uint64
}

// ThreadPriorities holds the resolved scheduling parameters for all four
// worker roles. Computed once at Init and immutable afterwards.
type ThreadPriorities struct {
	Controller   ThreadPriority
	VideoDecoder ThreadPriority
	AudioDecoder ThreadPriority
	Demuxer      ThreadPriority
}

// Derive maps a caller-supplied base priority and a role offset to the
// worker's priority: the base is clamped into [637, 764], the offset added,
// and the sum capped at 767. A zero base means "use the platform default".
func Derive(base, offset uint32) uint32 {
	if base == 0 {
		base = DefaultBasePriority
	}
	if base < minBasePriority {
		base = minBasePriority
	}
	if base > maxBasePriority {
		base = maxBasePriority
	}
	p := base + offset
	if p > maxPriority {
		p = maxPriority
	}
	return p
}

// DerivePriorities computes all four role priorities from a single base.
func DerivePriorities(base uint32) ThreadPriorities {
	return ThreadPriorities{
		Controller:   ThreadPriority{Role: RoleController, Priority: Derive(base, OffsetController)},
		VideoDecoder: ThreadPriority{Role: RoleVideoDecoder, Priority: Derive(base, OffsetVideoDecoder)},
		AudioDecoder: ThreadPriority{Role: RoleAudioDecoder, Priority: Derive(base, OffsetAudioDecoder)},
		Demuxer:      ThreadPriority{Role: RoleDemuxer, Priority: Derive(base, OffsetDemuxer)},
	}
}

// Override applies explicit per-role priority and affinity values on top of
// derived ones. A zero priority keeps the derived value; affinity is taken
// as given (zero means no pinning).
func (tp ThreadPriorities) Override(controller, video, audio, demuxer ThreadPriority) ThreadPriorities {
	out := tp
	if controller.Priority != 0 {
		out.Controller.Priority = controller.Priority
	}
	out.Controller.Affinity = controller.Affinity
	if video.Priority != 0 {
		out.VideoDecoder.Priority = video.Priority
	}
	out.VideoDecoder.Affinity = video.Affinity
	if audio.Priority != 0 {
		out.AudioDecoder.Priority = audio.Priority
	}
	out.AudioDecoder.Affinity = audio.Affinity
	if demuxer.Priority != 0 {
		out.Demuxer.Priority = demuxer.Priority
	}
	out.Demuxer.Affinity = demuxer.Affinity
	return out
}
