// Package demux defines the container-demuxer capability consumed by the
// playback engine. Concrete backends (such as the MPEG-TS adapter in the
// mpegts subpackage) probe a source, enumerate its elementary streams, and
// split the container into per-stream packets; the engine only ever sees
// this interface.
package demux

import (
	"context"

	"github.com/averon/playback/media"
	"github.com/averon/playback/source"
)

// Demuxer reads a probed container one packet at a time. ReadPacket returns
// io.EOF when the source is exhausted; any other error is a malformed unit
// the caller may skip. Implementations are used by a single goroutine.
type Demuxer interface {
	// Streams returns the descriptors enumerated while probing, indexed by
	// demux order. The slice is stable for the lifetime of the demuxer.
	Streams() []media.StreamDescriptor

	// ReadPacket returns the next packet in container order.
	ReadPacket(ctx context.Context) (media.Packet, error)

	// Close releases the demuxer and the source it was opened on.
	Close() error
}

// Opener probes a source and constructs a Demuxer for it. An error means
// the container could not be probed, which the engine reports as a
// source-open failure.
type Opener func(ctx context.Context, src source.Source) (Demuxer, error)
