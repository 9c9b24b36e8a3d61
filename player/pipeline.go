package player

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/averon/playback/decode"
	"github.com/averon/playback/media"
	"github.com/averon/playback/sched"
)

// maxConsecutiveDemuxErrors caps how many malformed container units the
// demuxer worker skips back-to-back before treating the source as
// exhausted, so a corrupt tail cannot spin the worker.
const maxConsecutiveDemuxErrors = 64

// runDemuxer reads container packets from the active source and routes
// them to the decoder matching the stream's kind. Packets for disabled or
// unknown streams are discarded. Presentation timestamps are rebased so
// the first packet of the source starts the timeline at zero.
func (p *Player) runDemuxer(ctx context.Context) error {
	sched.Apply(p.priorities.Demuxer, p.log)
	log := p.log.With("worker", "demuxer")

	defer close(p.videoPkts)
	defer close(p.audioPkts)

	var (
		ptsBase    int64
		ptsBaseSet bool
		errRun     int
	)

	for {
		pkt, err := p.dmx.ReadPacket(ctx)
		switch {
		case err == nil:
			errRun = 0
		case errors.Is(err, io.EOF):
			log.Info("end of stream")
			return nil
		case ctx.Err() != nil:
			return nil
		default:
			errRun++
			if errRun >= maxConsecutiveDemuxErrors {
				log.Error("giving up after repeated demux errors", "error", err)
				return nil
			}
			log.Warn("skipping malformed container unit", "error", err)
			continue
		}

		if !ptsBaseSet {
			ptsBase = pkt.PTS
			ptsBaseSet = true
		}
		if pkt.PTS -= ptsBase; pkt.PTS < 0 {
			pkt.PTS = 0
		}

		if !p.table.routable(pkt.StreamIndex) {
			continue
		}

		var out chan media.Packet
		switch pkt.Kind {
		case media.KindVideo:
			out = p.videoPkts
		case media.KindAudio:
			out = p.audioPkts
		default:
			continue
		}

		select {
		case out <- pkt:
		case <-ctx.Done():
			return nil
		}
	}
}

// runDecoder pulls packets of one kind, decodes them, and pushes the
// resulting frames into the kind's frame queue. Decoders are created
// lazily per stream index; a stream whose codec has no decoder is disabled
// so the demuxer stops routing it. A malformed packet is skipped and
// decoding continues.
func (p *Player) runDecoder(ctx context.Context, kind media.Kind, in <-chan media.Packet, q *frameQueue, tp sched.ThreadPriority) error {
	sched.Apply(tp, p.log)
	log := p.log.With("worker", kind.String()+"-decoder")

	decoders := make(map[int]decode.Decoder)
	defer func() {
		for _, d := range decoders {
			d.Close()
		}
	}()

	for {
		var (
			pkt media.Packet
			ok  bool
		)
		select {
		case <-ctx.Done():
			return nil
		case pkt, ok = <-in:
			if !ok {
				log.Debug("packet channel closed")
				return nil
			}
		}

		dec, exists := decoders[pkt.StreamIndex]
		if !exists {
			desc, _, err := p.table.get(pkt.StreamIndex)
			if err != nil {
				continue
			}
			dec, err = p.newDecoder(desc)
			if err != nil {
				log.Warn("no decoder for stream, disabling",
					"index", pkt.StreamIndex, "codec", desc.Codec, "error", err)
				p.table.setEnabled(pkt.StreamIndex, false)
				continue
			}
			decoders[pkt.StreamIndex] = dec
		}

		frames, err := dec.Decode(pkt)
		if err != nil {
			log.Debug("skipping malformed frame", "pts", pkt.PTS, "error", err)
			continue
		}
		for _, f := range frames {
			if err := q.push(ctx, f); err != nil {
				return nil
			}
		}
	}
}

// runSyncLoop is the controller's AV-sync worker. With an audio-driven
// clock it only parks at the controller priority; otherwise it paces the
// free-running clock with wall time so queued video frames become due.
func (p *Player) runSyncLoop(ctx context.Context) error {
	sched.Apply(p.priorities.Controller, p.log)

	if p.clock.audioDriven {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(syncTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.clock.advanceTo(time.Since(p.startedAt).Milliseconds())
		}
	}
}
