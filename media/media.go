// Package media defines the packet, frame, and stream-descriptor types that
// flow through the playback engine, from demuxing through frame delivery.
package media

import "time"

// Channel buffer sizes used between the demuxer (producer) and the decoder
// workers (consumers) to decouple packet production from decode. Sized to
// absorb jitter without excessive memory.
const (
	VideoPacketBufferSize = 60
	AudioPacketBufferSize = 120

	// AudioFrameQueueCapacity bounds the decoded-audio queue. Video queue
	// capacity comes from the caller's framebuffer count instead.
	AudioFrameQueueCapacity = 8
)

// Kind identifies the elementary stream type a packet or frame belongs to.
type Kind int

const (
	KindUnknown Kind = iota
	KindVideo
	KindAudio
)

// String returns the lowercase kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// PixelFormat identifies the layout of a decoded video frame's pixel buffer.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatNV12
	PixelFormatYUV420P
	PixelFormatRGBA
)

// StreamDescriptor describes one elementary stream discovered while probing
// a source. Index is assigned in demux order and is stable for the lifetime
// of the source.
type StreamDescriptor struct {
	Index    int
	Kind     Kind
	Codec    string
	Language string

	// Video only.
	Width  int
	Height int
	Format PixelFormat

	// Audio only.
	SampleRate int
	Channels   int
}

// Packet is one demuxed access unit, still encoded, tagged with the stream
// it belongs to. PTS and Duration are in milliseconds of presentation time.
type Packet struct {
	StreamIndex int
	Kind        Kind
	PTS         int64
	Duration    int64
	Data        []byte
	Keyframe    bool
}

// Frame is one decoded audio or video frame ready for delivery to the
// caller. Data is engine-owned; delivery copies it into a caller-allocated
// buffer.
type Frame struct {
	StreamIndex int
	Kind        Kind
	PTS         int64
	Duration    int64
	Data        []byte

	// Video only.
	Width  int
	Height int
	Format PixelFormat

	// Audio only.
	SampleRate int
	Channels   int
}

// DurationTime returns the frame duration as a time.Duration.
func (f *Frame) DurationTime() time.Duration {
	return time.Duration(f.Duration) * time.Millisecond
}
