// Package mpegts adapts an MPEG transport stream to the engine's Demuxer
// capability using go-astits. It enumerates the PMT's elementary streams as
// stream descriptors and maps PES units onto packets; it contains no codec
// logic of its own.
package mpegts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/asticode/go-astits"

	"github.com/averon/playback/demux"
	"github.com/averon/playback/media"
	"github.com/averon/playback/source"
)

const (
	streamTypeMPEG1Audio = 0x03
	streamTypeMPEG2Audio = 0x04
	streamTypeAAC        = 0x0F
	streamTypeH264       = 0x1B
	streamTypeH265       = 0x24
)

// probeLimit bounds how many demuxed units we inspect while waiting for the
// first PMT before declaring the container unprobeable.
const probeLimit = 512

// ErrNoProgramMap is returned when the stream ends or the probe limit is
// reached before a PMT describes any elementary streams.
var ErrNoProgramMap = errors.New("mpegts: no program map found")

// Demuxer reads an MPEG-TS source packet by packet. It implements
// demux.Demuxer and is driven by a single goroutine.
type Demuxer struct {
	log     *slog.Logger
	src     source.Source
	dmx     *astits.Demuxer
	streams []media.StreamDescriptor
	byPID   map[uint16]int

	// Durations come from the PTS delta to the next unit on the same PID,
	// so each PID buffers one unit until its successor arrives.
	pending   map[uint16]media.Packet
	lastDelta map[uint16]int64
	flush     []media.Packet
	eof       bool
}

// Open probes src as an MPEG transport stream, enumerating its elementary
// streams from the first PMT. It satisfies demux.Opener.
func Open(ctx context.Context, src source.Source) (demux.Demuxer, error) {
	d := &Demuxer{
		log:       slog.With("component", "mpegts-demux"),
		src:       src,
		dmx:       astits.NewDemuxer(ctx, src, astits.DemuxerOptPacketSize(188)),
		byPID:     make(map[uint16]int),
		pending:   make(map[uint16]media.Packet),
		lastDelta: make(map[uint16]int64),
	}
	if err := d.probe(); err != nil {
		return nil, err
	}
	return d, nil
}

// probe reads demuxed units until the first PMT arrives, then builds the
// stream table. PES units seen before the PMT cannot be attributed to a
// stream and are dropped.
func (d *Demuxer) probe() error {
	for i := 0; i < probeLimit; i++ {
		data, err := d.dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				return ErrNoProgramMap
			}
			return fmt.Errorf("mpegts probe: %w", err)
		}
		if data.PMT == nil {
			continue
		}
		for _, es := range data.PMT.ElementaryStreams {
			desc, ok := describe(es)
			if !ok {
				d.log.Debug("skipping unsupported elementary stream",
					"pid", es.ElementaryPID, "stream_type", uint8(es.StreamType))
				continue
			}
			desc.Index = len(d.streams)
			d.byPID[es.ElementaryPID] = desc.Index
			d.streams = append(d.streams, desc)
		}
		if len(d.streams) == 0 {
			return ErrNoProgramMap
		}
		d.log.Info("program map parsed", "streams", len(d.streams))
		return nil
	}
	return ErrNoProgramMap
}

// describe maps a PMT elementary stream entry onto a stream descriptor,
// reporting false for stream types the engine does not route.
func describe(es *astits.PMTElementaryStream) (media.StreamDescriptor, bool) {
	var desc media.StreamDescriptor
	switch uint8(es.StreamType) {
	case streamTypeH264:
		desc.Kind = media.KindVideo
		desc.Codec = "h264"
	case streamTypeH265:
		desc.Kind = media.KindVideo
		desc.Codec = "h265"
	case streamTypeAAC:
		desc.Kind = media.KindAudio
		desc.Codec = "aac"
	case streamTypeMPEG1Audio, streamTypeMPEG2Audio:
		desc.Kind = media.KindAudio
		desc.Codec = "mp2"
	default:
		return desc, false
	}
	for _, dsc := range es.ElementaryStreamDescriptors {
		if dsc.ISO639LanguageAndAudioType != nil {
			desc.Language = string(dsc.ISO639LanguageAndAudioType.Language)
		}
	}
	return desc, true
}

// Streams returns the descriptors enumerated from the PMT.
func (d *Demuxer) Streams() []media.StreamDescriptor {
	return d.streams
}

// ReadPacket returns the next PES unit belonging to an enumerated stream.
// Units on unknown PIDs (PSI repeats, unrouted stream types) are skipped.
// Each unit is held back until its successor on the same PID arrives so
// its duration can be set from the PTS delta; at end of stream the held
// units are emitted with their stream's last observed duration.
func (d *Demuxer) ReadPacket(ctx context.Context) (media.Packet, error) {
	for {
		if err := ctx.Err(); err != nil {
			return media.Packet{}, err
		}

		if len(d.flush) > 0 {
			pkt := d.flush[0]
			d.flush = d.flush[1:]
			return pkt, nil
		}
		if d.eof {
			return media.Packet{}, io.EOF
		}

		data, err := d.dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				d.eof = true
				d.flushPending()
				continue
			}
			return media.Packet{}, fmt.Errorf("mpegts read: %w", err)
		}
		if data.PES == nil {
			continue
		}
		idx, ok := d.byPID[data.PID]
		if !ok {
			continue
		}

		desc := d.streams[idx]
		pkt := media.Packet{
			StreamIndex: idx,
			Kind:        desc.Kind,
			Data:        data.PES.Data,
		}
		if oh := data.PES.Header.OptionalHeader; oh != nil && oh.PTS != nil {
			pkt.PTS = oh.PTS.Base / 90 // 90 kHz ticks to milliseconds
		}
		if fp := data.FirstPacket; fp != nil && fp.AdaptationField != nil {
			pkt.Keyframe = fp.AdaptationField.RandomAccessIndicator
		}

		prev, held := d.pending[data.PID]
		d.pending[data.PID] = pkt
		if !held {
			continue
		}
		if delta := pkt.PTS - prev.PTS; delta > 0 {
			prev.Duration = delta
			d.lastDelta[data.PID] = delta
		} else {
			prev.Duration = d.lastDelta[data.PID]
		}
		return prev, nil
	}
}

// flushPending queues the last held unit of each PID for emission in
// timestamp order once the stream ends.
func (d *Demuxer) flushPending() {
	for pid, pkt := range d.pending {
		pkt.Duration = d.lastDelta[pid]
		d.flush = append(d.flush, pkt)
		delete(d.pending, pid)
	}
	sort.Slice(d.flush, func(i, j int) bool { return d.flush[i].PTS < d.flush[j].PTS })
}

// Close releases the underlying source. The astits demuxer itself holds no
// resources beyond the reader.
func (d *Demuxer) Close() error {
	return d.src.Close()
}
