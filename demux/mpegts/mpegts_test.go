package mpegts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/asticode/go-astits"

	"github.com/averon/playback/media"
	"github.com/averon/playback/source"
)

const (
	testVideoPID = 256
	testAudioPID = 257
)

// muxClip builds a small transport stream with one H.264 and one AAC
// elementary stream carrying the given 90kHz timestamps.
func muxClip(t *testing.T, videoPTS, audioPTS []int64) []byte {
	t.Helper()

	var buf bytes.Buffer
	mux := astits.NewMuxer(context.Background(), &buf)
	if err := mux.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: testVideoPID,
		StreamType:    astits.StreamType(streamTypeH264),
	}); err != nil {
		t.Fatalf("add video stream: %v", err)
	}
	if err := mux.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: testAudioPID,
		StreamType:    astits.StreamType(streamTypeAAC),
	}); err != nil {
		t.Fatalf("add audio stream: %v", err)
	}
	mux.SetPCRPID(testVideoPID)
	if _, err := mux.WriteTables(); err != nil {
		t.Fatalf("write tables: %v", err)
	}

	write := func(pid uint16, streamID uint8, pts int64) {
		_, err := mux.WriteData(&astits.MuxerData{
			PID: pid,
			PES: &astits.PESData{
				Header: &astits.PESHeader{
					StreamID: streamID,
					OptionalHeader: &astits.PESOptionalHeader{
						MarkerBits:      2,
						PTSDTSIndicator: astits.PTSDTSIndicatorOnlyPTS,
						PTS:             &astits.ClockReference{Base: pts},
					},
				},
				Data: []byte{0x00, 0x00, 0x01, byte(pts)},
			},
		})
		if err != nil {
			t.Fatalf("write PES pid=%d pts=%d: %v", pid, pts, err)
		}
	}
	for _, pts := range videoPTS {
		write(testVideoPID, 0xE0, pts)
	}
	for _, pts := range audioPTS {
		write(testAudioPID, 0xC0, pts)
	}
	return buf.Bytes()
}

func TestOpenEnumeratesStreams(t *testing.T) {
	t.Parallel()

	clip := muxClip(t, []int64{90000}, []int64{90000})
	d, err := Open(context.Background(), source.FromReader(bytes.NewReader(clip)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	streams := d.Streams()
	if len(streams) != 2 {
		t.Fatalf("enumerated %d streams, want 2", len(streams))
	}

	byKind := map[media.Kind]media.StreamDescriptor{}
	for i, s := range streams {
		if s.Index != i {
			t.Errorf("stream %d carries index %d", i, s.Index)
		}
		byKind[s.Kind] = s
	}
	if byKind[media.KindVideo].Codec != "h264" {
		t.Errorf("video codec = %q, want h264", byKind[media.KindVideo].Codec)
	}
	if byKind[media.KindAudio].Codec != "aac" {
		t.Errorf("audio codec = %q, want aac", byKind[media.KindAudio].Codec)
	}
}

func TestReadPacketRoundTrip(t *testing.T) {
	t.Parallel()

	videoPTS := []int64{90000, 93003, 96006}
	audioPTS := []int64{90000, 91920}
	clip := muxClip(t, videoPTS, audioPTS)

	d, err := Open(context.Background(), source.FromReader(bytes.NewReader(clip)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	// Durations derive from the PTS delta between consecutive units on a
	// PID; the last unit of each stream carries the delta forward.
	wantDur := map[media.Kind]int64{media.KindVideo: 33, media.KindAudio: 21}

	counts := map[media.Kind]int{}
	lastPTS := map[media.Kind]int64{}
	for {
		pkt, err := d.ReadPacket(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket: %v", err)
		}
		if len(pkt.Data) == 0 {
			t.Fatal("packet without payload")
		}
		if c := counts[pkt.Kind]; c > 0 && pkt.PTS <= lastPTS[pkt.Kind] {
			t.Fatalf("%s PTS not increasing: %d after %d", pkt.Kind, pkt.PTS, lastPTS[pkt.Kind])
		}
		if pkt.Duration != wantDur[pkt.Kind] {
			t.Fatalf("%s duration = %dms, want %dms", pkt.Kind, pkt.Duration, wantDur[pkt.Kind])
		}
		counts[pkt.Kind]++
		lastPTS[pkt.Kind] = pkt.PTS
	}

	if counts[media.KindVideo] != len(videoPTS) {
		t.Errorf("video packets = %d, want %d", counts[media.KindVideo], len(videoPTS))
	}
	if counts[media.KindAudio] != len(audioPTS) {
		t.Errorf("audio packets = %d, want %d", counts[media.KindAudio], len(audioPTS))
	}

	// 90 kHz ticks map to milliseconds.
	if lastPTS[media.KindVideo] != 96006/90 {
		t.Errorf("last video PTS = %dms, want %dms", lastPTS[media.KindVideo], int64(96006/90))
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), source.FromReader(strings.NewReader("this is not a transport stream")))
	if err == nil {
		t.Fatal("expected probe failure")
	}
}

func TestOpenRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), source.FromReader(strings.NewReader("")))
	if !errors.Is(err, ErrNoProgramMap) {
		t.Fatalf("error = %v, want ErrNoProgramMap", err)
	}
}

func TestReadPacketHonorsCancellation(t *testing.T) {
	t.Parallel()

	clip := muxClip(t, []int64{90000}, nil)
	d, err := Open(context.Background(), source.FromReader(bytes.NewReader(clip)))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.ReadPacket(ctx); err == nil {
		t.Fatal("cancelled ReadPacket should fail")
	}
}
