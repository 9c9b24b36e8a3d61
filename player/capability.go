package player

import (
	"github.com/averon/playback/decode"
	"github.com/averon/playback/demux"
	"github.com/averon/playback/media"
	"github.com/averon/playback/source"
)

// MemoryReplacement is the caller-supplied allocation capability. All four
// callbacks are mandatory: generic memory holds decoded audio samples,
// texture memory backs decoded video frames handed to the renderer.
type MemoryReplacement struct {
	Allocate          func(size int, alignment int) []byte
	Deallocate        func(buf []byte)
	AllocateTexture   func(size int, alignment int) []byte
	DeallocateTexture func(buf []byte)
}

// Valid reports whether all four allocators are present.
func (m MemoryReplacement) Valid() bool {
	return m.Allocate != nil && m.Deallocate != nil &&
		m.AllocateTexture != nil && m.DeallocateTexture != nil
}

// EventType identifies a lifecycle notification delivered through the
// caller's event capability.
type EventType int

const (
	// EventSourceReady fires once a source's streams have been enumerated.
	EventSourceReady EventType = iota + 1
	// EventPlaying fires when playback workers have started.
	EventPlaying
	// EventStopped fires when playback has stopped, including natural
	// end of stream.
	EventStopped
)

// EventReplacement is the optional caller-supplied event capability.
type EventReplacement struct {
	Callback func(event EventType, sourceID int)
}

// InitData configures a new player instance. Memory is mandatory; File and
// Event are optional capabilities; zero values elsewhere pick engine
// defaults.
type InitData struct {
	Memory MemoryReplacement
	File   source.Replacement
	Event  EventReplacement

	// DefaultLanguage selects among multiple streams of the same kind
	// carrying language tags.
	DefaultLanguage string

	// NumOutputVideoFramebuffers bounds the decoded-video queue. Zero
	// picks the engine default.
	NumOutputVideoFramebuffers int

	// AutoStart begins playback as soon as a source is added.
	AutoStart bool

	// BasePriority seeds per-role worker priorities; zero derives from
	// the platform default.
	BasePriority uint32

	// DemuxerOpener and DecoderFactory plug in container and codec
	// backends. Nil selects the built-in MPEG-TS adapter and the
	// passthrough decoder.
	DemuxerOpener  demux.Opener
	DecoderFactory decode.Factory
}

// RoleParams carries an explicit priority/affinity override for one worker
// role in InitDataEx. Zero priority derives from the base; zero affinity
// leaves the worker unpinned.
type RoleParams struct {
	Priority uint32
	Affinity uint64
}

// InitDataEx extends InitData with explicit per-role scheduling overrides.
type InitDataEx struct {
	InitData

	Controller   RoleParams
	VideoDecoder RoleParams
	AudioDecoder RoleParams
	Demuxer      RoleParams
}

// PostInitData sizes the working memory the demuxer and decoder backends
// may use. Accepted after Init, before AddSource.
type PostInitData struct {
	DemuxerHeapSize      int
	VideoDecoderHeapSize int
	AudioDecoderHeapSize int
}

// AudioFrameInfo describes one decoded audio frame returned to the caller.
// Data is valid until the next GetAudioData call on the same player.
type AudioFrameInfo struct {
	PTS        int64
	Data       []byte
	SampleRate int
	Channels   int
}

// VideoFrameInfo describes one decoded video frame returned to the caller.
// Texture-backed Data stays valid until released via ReleaseVideoFrame.
type VideoFrameInfo struct {
	PTS    int64
	Data   []byte
	Width  int
	Height int
	Format media.PixelFormat
}

// VideoFrameInfoEx extends VideoFrameInfo with display metadata.
type VideoFrameInfoEx struct {
	VideoFrameInfo

	AspectRatio float64
	Duration    int64
	Language    string
}

// StreamInfo describes one enumerated elementary stream.
type StreamInfo struct {
	media.StreamDescriptor
	Enabled bool
}
