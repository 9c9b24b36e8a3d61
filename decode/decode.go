// Package decode defines the codec-decoder capability consumed by the
// playback engine. Real codec backends live outside this module; the
// Passthrough decoder here gives tests and demos a working end-to-end
// pipeline without one.
package decode

import (
	"github.com/averon/playback/media"
)

// Decoder turns encoded packets of one elementary stream into decoded
// frames. A packet may yield zero frames (codec delay) or several (flush).
// A per-packet error marks only that packet malformed; the engine skips it
// and keeps decoding. Implementations are used by a single goroutine.
type Decoder interface {
	Decode(pkt media.Packet) ([]media.Frame, error)
	Close() error
}

// Factory constructs a Decoder for one enumerated stream. An error means
// the stream's codec is unsupported, which the engine treats the same as
// the stream being disabled.
type Factory func(desc media.StreamDescriptor) (Decoder, error)

// Passthrough is a Decoder that emits each packet's payload as a single
// frame, carrying timing and format metadata through from the descriptor.
// It stands in for a codec backend in tests and the demo binary.
type Passthrough struct {
	desc media.StreamDescriptor
}

// NewPassthrough returns a Passthrough decoder for desc.
func NewPassthrough(desc media.StreamDescriptor) (Decoder, error) {
	return &Passthrough{desc: desc}, nil
}

// Decode wraps the packet payload in a frame without transforming it.
func (p *Passthrough) Decode(pkt media.Packet) ([]media.Frame, error) {
	f := media.Frame{
		StreamIndex: pkt.StreamIndex,
		Kind:        pkt.Kind,
		PTS:         pkt.PTS,
		Duration:    pkt.Duration,
		Data:        pkt.Data,
		Width:       p.desc.Width,
		Height:      p.desc.Height,
		Format:      p.desc.Format,
		SampleRate:  p.desc.SampleRate,
		Channels:    p.desc.Channels,
	}
	return []media.Frame{f}, nil
}

// Close releases nothing; Passthrough holds no codec state.
func (p *Passthrough) Close() error { return nil }
