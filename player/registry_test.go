package player

import (
	"testing"

	"github.com/averon/playback/media"
)

func newTestRegistry(t *testing.T, d *fakeDemuxer) (*Registry, Handle) {
	t.Helper()
	r := NewRegistry(nil)
	h := r.Init(InitData{
		Memory:        (&testAllocator{}).replacement(),
		File:          memorySource([]byte("container")),
		DemuxerOpener: d.opener(),
	})
	if h == NoHandle {
		t.Fatal("Init returned no handle")
	}
	return r, h
}

func TestRegistryInitRejectsMissingAllocators(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	if h := r.Init(InitData{}); h != NoHandle {
		t.Errorf("Init without allocators returned handle %q", h)
	}
}

func TestRegistryInitEx(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)

	if st := r.InitEx(InitDataEx{}, nil); st != StatusInvalidParams {
		t.Errorf("InitEx with nil out = %d, want StatusInvalidParams", st)
	}

	var h Handle
	data := InitDataEx{
		InitData: InitData{Memory: (&testAllocator{}).replacement()},
		Demuxer:  RoleParams{Priority: 750, Affinity: 0b10},
	}
	if st := r.InitEx(data, &h); st != StatusOK {
		t.Fatalf("InitEx = %d, want OK", st)
	}
	if h == NoHandle {
		t.Fatal("InitEx stored no handle")
	}

	p, ok := r.lookup(h)
	if !ok {
		t.Fatal("handle not registered")
	}
	if p.priorities.Demuxer.Priority != 750 || p.priorities.Demuxer.Affinity != 0b10 {
		t.Errorf("demuxer override not applied: %+v", p.priorities.Demuxer)
	}
}

func TestRegistryUnknownHandle(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	const bogus Handle = "not-a-handle"

	if st := r.AddSource(bogus, "x"); st != StatusInvalidParams {
		t.Errorf("AddSource = %d, want StatusInvalidParams", st)
	}
	if st := r.Start(bogus); st != StatusInvalidParams {
		t.Errorf("Start = %d, want StatusInvalidParams", st)
	}
	if st := r.Stop(bogus); st != StatusInvalidParams {
		t.Errorf("Stop = %d, want StatusInvalidParams", st)
	}
	if st := r.Close(bogus); st != StatusInvalidParams {
		t.Errorf("Close = %d, want StatusInvalidParams", st)
	}
	if r.IsActive(bogus) {
		t.Error("IsActive on unknown handle")
	}
	if ct := r.CurrentTime(bogus); ct != 0 {
		t.Errorf("CurrentTime = %d, want 0", ct)
	}
	var vi VideoFrameInfo
	if r.GetVideoData(bogus, &vi) {
		t.Error("GetVideoData on unknown handle")
	}
}

func TestRegistryNilOutPointers(t *testing.T) {
	t.Parallel()

	d := avDemuxer([]int64{0}, nil)
	r, h := newTestRegistry(t, d)

	if st := r.StreamCount(h, nil); st != StatusInvalidParams {
		t.Errorf("StreamCount(nil) = %d, want StatusInvalidParams", st)
	}
	if st := r.GetStreamInfo(h, 0, nil); st != StatusInvalidParams {
		t.Errorf("GetStreamInfo(nil) = %d, want StatusInvalidParams", st)
	}
	if st := r.PostInit(h, nil); st != StatusInvalidParams {
		t.Errorf("PostInit(nil) = %d, want StatusInvalidParams", st)
	}
	if r.GetAudioData(h, nil) {
		t.Error("GetAudioData(nil) returned presence")
	}
	if r.GetVideoData(h, nil) {
		t.Error("GetVideoData(nil) returned presence")
	}
	if r.GetVideoDataEx(h, nil) {
		t.Error("GetVideoDataEx(nil) returned presence")
	}
}

func TestRegistryLifecycle(t *testing.T) {
	t.Parallel()

	d := avDemuxer([]int64{0}, []int64{0})
	r, h := newTestRegistry(t, d)

	if st := r.Start(h); st != StatusInvalidState {
		t.Errorf("Start before AddSource = %d, want StatusInvalidState", st)
	}
	if st := r.AddSource(h, "mem://clip"); st != StatusOK {
		t.Fatalf("AddSource = %d", st)
	}

	var n int
	if st := r.StreamCount(h, &n); st != StatusOK || n != 2 {
		t.Fatalf("StreamCount = %d, %d; want OK, 2", st, n)
	}

	var info StreamInfo
	if st := r.GetStreamInfo(h, 1, &info); st != StatusOK || info.Kind != media.KindAudio {
		t.Fatalf("GetStreamInfo = %d, %+v", st, info)
	}
	if st := r.GetStreamInfo(h, 9, &info); st != StatusInvalidStreamIndex {
		t.Errorf("GetStreamInfo(9) = %d, want StatusInvalidStreamIndex", st)
	}

	if st := r.EnableStream(h, 0); st != StatusOK {
		t.Fatalf("EnableStream = %d", st)
	}
	if st := r.Start(h); st != StatusOK {
		t.Fatalf("Start = %d", st)
	}
	if st := r.Stop(h); st != StatusOK {
		t.Fatalf("Stop = %d", st)
	}
	if st := r.Stop(h); st != StatusOK {
		t.Errorf("second Stop = %d, want OK", st)
	}

	// Stubs accept without corrupting anything.
	if st := r.Pause(h); st != StatusOK {
		t.Errorf("Pause = %d", st)
	}
	if st := r.SetTrickSpeed(h, 4); st != StatusOK {
		t.Errorf("SetTrickSpeed = %d", st)
	}
	if st := r.JumpToTime(h, 500); st != StatusOK {
		t.Errorf("JumpToTime = %d", st)
	}

	if st := r.Close(h); st != StatusOK {
		t.Fatalf("Close = %d", st)
	}
	// The handle is invalid for all further calls.
	if st := r.Stop(h); st != StatusInvalidParams {
		t.Errorf("Stop after Close = %d, want StatusInvalidParams", st)
	}
	if st := r.Close(h); st != StatusInvalidParams {
		t.Errorf("double Close = %d, want StatusInvalidParams", st)
	}
}
