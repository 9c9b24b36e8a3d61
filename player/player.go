// Package player implements the playback engine core: the source and
// stream lifecycle state machine, the demux-decode-deliver worker pipeline,
// the frame-queue handoff to the polling consumer API, and the per-role
// scheduling policy for the worker threads.
package player

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/averon/playback/decode"
	"github.com/averon/playback/demux"
	"github.com/averon/playback/demux/mpegts"
	"github.com/averon/playback/media"
	"github.com/averon/playback/sched"
	"github.com/averon/playback/source"
	"github.com/averon/playback/source/srt"
)

// State is the player lifecycle state. Transitions are serialized by the
// controller; see the state machine in the package operations below.
type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateSourceAdded
	StateStarted
	StateStopped
	StateClosed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateSourceAdded:
		return "source-added"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	defaultVideoFramebuffers = 4

	// stopJoinTimeout bounds how long Stop waits for workers to exit.
	// Every worker wait is cancellation-aware, so hitting this indicates
	// a stuck backend rather than normal operation.
	stopJoinTimeout = 2 * time.Second

	syncTick = 10 * time.Millisecond

	textureAlignment = 256
	bufferAlignment  = 64

	// activeSourceID is the source identifier reported through the event
	// capability; the engine supports one active source per instance.
	activeSourceID = 1
)

// Player is one playback engine instance. It exclusively owns its source,
// stream table, frame queues, and worker goroutines; decoded frame buffers
// are transiently shared with the caller through GetVideoData/GetAudioData.
type Player struct {
	log        *slog.Logger
	mem        MemoryReplacement
	fileRep    source.Replacement
	events     EventReplacement
	priorities sched.ThreadPriorities

	defaultLanguage string
	videoQueueCap   int
	autoStart       bool

	openDemuxer demux.Opener
	newDecoder  decode.Factory

	mu       sync.Mutex // serializes lifecycle transitions
	state    atomic.Int32
	postInit *PostInitData
	src      source.Source
	dmx      demux.Demuxer
	table    streamTable

	videoQ    *frameQueue
	audioQ    *frameQueue
	videoPkts chan media.Packet
	audioPkts chan media.Packet

	cancel         context.CancelFunc
	workers        *errgroup.Group
	pipelineActive atomic.Int32 // demuxer + decoder workers still running
	startedAt      time.Time
	clock          avClock

	deliverMu    sync.Mutex
	lastAudioBuf []byte

	// pendingTextures holds delivered, not-yet-released texture buffers
	// keyed by timestamp; frames sharing a timestamp stack.
	pendingTextures map[int64][][]byte
}

// New creates a player in the Initialized state. All four allocator
// callbacks are mandatory; a missing one fails initialization. If log is
// nil, slog.Default() is used.
func New(data InitData, log *slog.Logger) (*Player, error) {
	if log == nil {
		log = slog.Default()
	}
	if !data.Memory.Valid() {
		log.Error("all four allocators are required for player initialization")
		return nil, fmt.Errorf("%w: incomplete memory replacement", ErrInvalidParams)
	}

	videoQueueCap := data.NumOutputVideoFramebuffers
	if videoQueueCap <= 0 {
		videoQueueCap = defaultVideoFramebuffers
	}

	openDemuxer := data.DemuxerOpener
	if openDemuxer == nil {
		openDemuxer = mpegts.Open
	}
	newDecoder := data.DecoderFactory
	if newDecoder == nil {
		newDecoder = decode.NewPassthrough
	}

	p := &Player{
		log:             log.With("component", "player"),
		mem:             data.Memory,
		fileRep:         data.File,
		events:          data.Event,
		priorities:      sched.DerivePriorities(data.BasePriority),
		defaultLanguage: data.DefaultLanguage,
		videoQueueCap:   videoQueueCap,
		autoStart:       data.AutoStart,
		openDemuxer:     openDemuxer,
		newDecoder:      newDecoder,
		pendingTextures: make(map[int64][][]byte),
	}
	p.state.Store(int32(StateInitialized))

	p.log.Info("player initialized",
		"controller_priority", p.priorities.Controller.Priority,
		"video_priority", p.priorities.VideoDecoder.Priority,
		"audio_priority", p.priorities.AudioDecoder.Priority,
		"demuxer_priority", p.priorities.Demuxer.Priority,
	)
	return p, nil
}

// NewEx creates a player with explicit per-role priority and affinity
// overrides; zero values derive from the base priority as in New.
func NewEx(data InitDataEx, log *slog.Logger) (*Player, error) {
	p, err := New(data.InitData, log)
	if err != nil {
		return nil, err
	}
	p.priorities = p.priorities.Override(
		sched.ThreadPriority{Priority: data.Controller.Priority, Affinity: data.Controller.Affinity},
		sched.ThreadPriority{Priority: data.VideoDecoder.Priority, Affinity: data.VideoDecoder.Affinity},
		sched.ThreadPriority{Priority: data.AudioDecoder.Priority, Affinity: data.AudioDecoder.Affinity},
		sched.ThreadPriority{Priority: data.Demuxer.Priority, Affinity: data.Demuxer.Affinity},
	)
	return p, nil
}

// loadState returns the current state without taking the transition lock.
func (p *Player) loadState() State {
	return State(p.state.Load())
}

// PostInit sizes backend working memory. Accepted after initialization and
// before a source is added.
func (p *Player) PostInit(data PostInitData) error {
	if data.DemuxerHeapSize < 0 || data.VideoDecoderHeapSize < 0 || data.AudioDecoderHeapSize < 0 {
		return fmt.Errorf("%w: negative heap size", ErrInvalidParams)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadState() != StateInitialized {
		return fmt.Errorf("%w: post-init in %s", ErrInvalidState, p.loadState())
	}
	p.postInit = &data
	return nil
}

// srtScheme marks a URI naming a remote SRT listener instead of a file.
const srtScheme = "srt://"

// AddSource opens uri, probes its container, and enumerates its streams.
// A srt:// URI pulls the stream from a remote SRT listener. For any other
// uri, byte access goes through the file replacement capability when one is
// configured; otherwise uri names a local file. With AutoStart set,
// playback begins immediately.
func (p *Player) AddSource(uri string) error {
	p.mu.Lock()

	if p.loadState() != StateInitialized {
		st := p.loadState()
		p.mu.Unlock()
		return fmt.Errorf("%w: add source in %s", ErrInvalidState, st)
	}

	var (
		src source.Source
		err error
	)
	switch {
	case strings.HasPrefix(uri, srtScheme):
		src, err = p.openSRT(uri)
	case p.fileRep.Valid():
		src, err = source.OpenReplacement(p.fileRep, uri)
	default:
		src, err = source.OpenFile(uri)
	}
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrSourceOpen, err)
	}

	dmx, err := p.openDemuxer(context.Background(), src)
	if err != nil {
		src.Close()
		p.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrSourceOpen, err)
	}

	p.src = src
	p.dmx = dmx
	p.table.reset(dmx.Streams())
	p.state.Store(int32(StateSourceAdded))
	p.log.Info("source added", "uri", uri, "streams", p.table.count())

	var startErr error
	if p.autoStart {
		startErr = p.startLocked()
	}
	p.mu.Unlock()

	p.emit(EventSourceReady)
	if p.autoStart && startErr == nil {
		p.emit(EventPlaying)
	}
	return startErr
}

// openSRT dials the remote SRT listener named by a srt://host:port URI. An
// optional streamid query parameter selects the published stream.
func (p *Player) openSRT(uri string) (source.Source, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	return srt.Dial(context.Background(), srt.DialRequest{
		Address:  u.Host,
		StreamID: u.Query().Get("streamid"),
	}, p.log)
}

// Start spawns the demuxer, decoder, and controller sync workers at their
// derived or overridden priorities and affinities.
func (p *Player) Start() error {
	p.mu.Lock()
	err := p.startLocked()
	p.mu.Unlock()

	if err == nil {
		p.emit(EventPlaying)
	}
	return err
}

// startLocked performs the SourceAdded -> Started transition with mu held.
func (p *Player) startLocked() error {
	if p.loadState() != StateSourceAdded {
		return fmt.Errorf("%w: start in %s", ErrInvalidState, p.loadState())
	}

	p.videoQ = newFrameQueue(p.videoQueueCap)
	p.audioQ = newFrameQueue(media.AudioFrameQueueCapacity)
	p.videoPkts = make(chan media.Packet, media.VideoPacketBufferSize)
	p.audioPkts = make(chan media.Packet, media.AudioPacketBufferSize)

	p.startedAt = time.Now()
	p.clock.reset(p.table.anyEnabled(media.KindAudio))

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	p.cancel = cancel
	p.workers = g

	p.pipelineActive.Store(3)
	g.Go(func() error {
		defer p.pipelineActive.Add(-1)
		return p.runDemuxer(gctx)
	})
	g.Go(func() error {
		defer p.pipelineActive.Add(-1)
		return p.runDecoder(gctx, media.KindVideo, p.videoPkts, p.videoQ, p.priorities.VideoDecoder)
	})
	g.Go(func() error {
		defer p.pipelineActive.Add(-1)
		return p.runDecoder(gctx, media.KindAudio, p.audioPkts, p.audioQ, p.priorities.AudioDecoder)
	})
	g.Go(func() error {
		return p.runSyncLoop(gctx)
	})

	p.state.Store(int32(StateStarted))
	p.log.Info("playback started", "audio_clock", p.clock.audioDriven)
	return nil
}

// Stop terminates the worker pipeline, releases the source and stream
// table, and moves to Stopped. Calling Stop again, or before Start, is a
// no-op returning success; Stop on a closed player fails with InvalidState.
func (p *Player) Stop() error {
	p.mu.Lock()

	switch p.loadState() {
	case StateClosed, StateUninitialized:
		st := p.loadState()
		p.mu.Unlock()
		return fmt.Errorf("%w: stop in %s", ErrInvalidState, st)
	case StateStarted:
		p.stopLocked()
		p.state.Store(int32(StateStopped))
		p.mu.Unlock()
		p.emit(EventStopped)
		return nil
	default:
		// Initialized, SourceAdded, Stopped: accepted no-op.
		p.mu.Unlock()
		return nil
	}
}

// stopLocked tears down the running pipeline with mu held. It must complete
// within a bounded delay: all worker waits are cancellation-aware and the
// join is capped by stopJoinTimeout.
func (p *Player) stopLocked() {
	p.cancel()

	// Unblock a demuxer stuck in a source read.
	if p.src != nil {
		p.src.Close()
	}

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		p.log.Error("workers did not stop within deadline", "timeout", stopJoinTimeout)
	}

	// Undelivered frames never reached the caller, so their data is
	// engine-owned and can simply be dropped. Buffers already delivered
	// stay with the caller until released.
	p.videoQ.drain()
	p.audioQ.drain()

	if p.dmx != nil {
		p.dmx.Close()
	}
	p.dmx = nil
	p.src = nil
	p.table.clear()
	p.cancel = nil
	p.workers = nil

	p.log.Info("playback stopped")
}

// Close tears down the instance from any state. The handle becomes invalid
// for all further calls; delivered buffers still held by the caller are
// reclaimed through the deallocator capabilities.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.loadState() {
	case StateClosed:
		return fmt.Errorf("%w: already closed", ErrInvalidState)
	case StateStarted:
		p.stopLocked()
	default:
		if p.dmx != nil {
			p.dmx.Close()
			p.dmx = nil
			p.src = nil
		}
		p.table.clear()
	}

	p.deliverMu.Lock()
	if p.lastAudioBuf != nil {
		p.mem.Deallocate(p.lastAudioBuf)
		p.lastAudioBuf = nil
	}
	for pts, bufs := range p.pendingTextures {
		for _, buf := range bufs {
			p.mem.DeallocateTexture(buf)
		}
		delete(p.pendingTextures, pts)
	}
	p.deliverMu.Unlock()

	p.state.Store(int32(StateClosed))
	p.log.Info("player closed")
	return nil
}

// IsActive reports whether playback is running: the player is Started and
// either a pipeline worker is still running or buffered frames remain
// undelivered. Callers poll this to detect natural end of stream.
func (p *Player) IsActive() bool {
	if p.loadState() != StateStarted {
		return false
	}
	if p.pipelineActive.Load() > 0 {
		return true
	}
	return p.videoQ.len() > 0 || p.audioQ.len() > 0
}

// CurrentTime returns the AV-sync clock in milliseconds since playback
// start: the latest consumed audio timestamp when an audio stream drives
// the clock, else a free-running clock advanced by the controller.
func (p *Player) CurrentTime() int64 {
	switch p.loadState() {
	case StateStarted, StateStopped:
		return p.clock.milliseconds()
	default:
		return 0
	}
}

// EnableStream marks stream i for decoding. Takes effect for the next
// packet the demuxer reads.
func (p *Player) EnableStream(i int) error {
	return p.setStreamEnabled(i, true)
}

// DisableStream stops routing packets for stream i. Frames already queued
// to a decoder still drain.
func (p *Player) DisableStream(i int) error {
	return p.setStreamEnabled(i, false)
}

func (p *Player) setStreamEnabled(i int, enabled bool) error {
	switch p.loadState() {
	case StateSourceAdded, StateStarted:
	default:
		return fmt.Errorf("%w: stream toggle in %s", ErrInvalidState, p.loadState())
	}
	if err := p.table.setEnabled(i, enabled); err != nil {
		return err
	}
	p.log.Debug("stream toggled", "index", i, "enabled", enabled)
	return nil
}

// GetStreamInfo returns the descriptor for stream i by value. Descriptors
// lacking a language tag report the player's default language.
func (p *Player) GetStreamInfo(i int) (StreamInfo, error) {
	if p.table.count() == 0 {
		return StreamInfo{}, fmt.Errorf("%w: no source attached", ErrInvalidState)
	}
	desc, enabled, err := p.table.get(i)
	if err != nil {
		return StreamInfo{}, err
	}
	if desc.Language == "" {
		desc.Language = p.defaultLanguage
	}
	return StreamInfo{StreamDescriptor: desc, Enabled: enabled}, nil
}

// StreamCount returns the number of streams enumerated from the source.
func (p *Player) StreamCount() (int, error) {
	switch p.loadState() {
	case StateSourceAdded, StateStarted:
		return p.table.count(), nil
	default:
		return 0, fmt.Errorf("%w: no source attached", ErrInvalidState)
	}
}

// GetAudioData polls for the next decoded audio frame. It never blocks:
// false means no frame is ready. The returned buffer is allocated through
// the caller's generic allocator and stays valid until the next
// GetAudioData call. A failed allocation drops the frame: it is logged as
// resource exhaustion but the poller only observes an absent frame.
func (p *Player) GetAudioData(out *AudioFrameInfo) bool {
	if out == nil || p.loadState() != StateStarted {
		return false
	}

	f, ok := p.audioQ.tryPop()
	if !ok {
		return false
	}
	p.clock.observeAudio(f.PTS)

	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	buf := p.mem.Allocate(len(f.Data), bufferAlignment)
	if buf == nil {
		p.log.Error("audio buffer allocation failed",
			"error", ErrResourceExhausted, "size", len(f.Data))
		return false
	}
	if p.lastAudioBuf != nil {
		p.mem.Deallocate(p.lastAudioBuf)
	}
	p.lastAudioBuf = buf

	n := copy(buf, f.Data)
	*out = AudioFrameInfo{
		PTS:        f.PTS,
		Data:       buf[:n],
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
	}
	return true
}

// GetVideoData polls for the next decoded video frame. It never blocks and
// only surfaces a frame once its timestamp is due against the AV-sync
// clock; a queued-but-not-yet-due frame reports false just like an empty
// queue. The returned buffer comes from the caller's texture allocator and
// must be handed back through ReleaseVideoFrame. A failed texture
// allocation drops the frame: it is logged as resource exhaustion but the
// poller only observes an absent frame.
func (p *Player) GetVideoData(out *VideoFrameInfo) bool {
	if out == nil {
		return false
	}
	f, ok := p.popDueVideoFrame()
	if !ok {
		return false
	}
	info, ok := p.deliverVideo(f)
	if !ok {
		return false
	}
	*out = info
	return true
}

// GetVideoDataEx is GetVideoData with extended display metadata.
func (p *Player) GetVideoDataEx(out *VideoFrameInfoEx) bool {
	if out == nil {
		return false
	}
	f, ok := p.popDueVideoFrame()
	if !ok {
		return false
	}
	info, ok := p.deliverVideo(f)
	if !ok {
		return false
	}

	ex := VideoFrameInfoEx{VideoFrameInfo: info, Duration: f.Duration}
	if si, err := p.GetStreamInfo(f.StreamIndex); err == nil {
		ex.Language = si.Language
	}
	if f.Height > 0 {
		ex.AspectRatio = float64(f.Width) / float64(f.Height)
	}
	*out = ex
	return true
}

// popDueVideoFrame removes the head video frame once the AV-sync gate
// passes. "Nothing queued" and "head not yet due" both return false; the
// distinction only matters for diagnostics.
func (p *Player) popDueVideoFrame() (media.Frame, bool) {
	if p.loadState() != StateStarted {
		return media.Frame{}, false
	}
	pts, ok := p.videoQ.peekPTS()
	if !ok {
		return media.Frame{}, false
	}
	if now := p.clock.milliseconds(); pts > now {
		p.log.Debug("video frame not yet due", "pts", pts, "clock", now)
		return media.Frame{}, false
	}
	return p.videoQ.tryPop()
}

// deliverVideo copies the frame into a caller-allocated texture buffer and
// records it as pending release.
func (p *Player) deliverVideo(f media.Frame) (VideoFrameInfo, bool) {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	buf := p.mem.AllocateTexture(len(f.Data), textureAlignment)
	if buf == nil {
		p.log.Error("texture allocation failed",
			"error", ErrResourceExhausted, "size", len(f.Data), "pts", f.PTS)
		return VideoFrameInfo{}, false
	}
	n := copy(buf, f.Data)
	p.pendingTextures[f.PTS] = append(p.pendingTextures[f.PTS], buf)

	return VideoFrameInfo{
		PTS:    f.PTS,
		Data:   buf[:n],
		Width:  f.Width,
		Height: f.Height,
		Format: f.Format,
	}, true
}

// ReleaseVideoFrame returns the texture buffer for the frame delivered at
// pts to the caller's deallocator. Every delivered video frame must be
// released exactly once; the engine never reclaims implicitly. When
// several delivered frames share a timestamp, each call reclaims one of
// them.
func (p *Player) ReleaseVideoFrame(pts int64) error {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	bufs := p.pendingTextures[pts]
	if len(bufs) == 0 {
		return fmt.Errorf("%w: no delivered frame at pts %d", ErrInvalidParams, pts)
	}
	last := len(bufs) - 1
	p.mem.DeallocateTexture(bufs[last])
	if last == 0 {
		delete(p.pendingTextures, pts)
	} else {
		p.pendingTextures[pts] = bufs[:last]
	}
	return nil
}

// Accepted-but-unimplemented operations. Each validates nothing beyond the
// handle (done by the caller), mutates no state, and reports success.

// Pause is accepted but not implemented.
func (p *Player) Pause() error { return p.acceptStub("pause") }

// Resume is accepted but not implemented.
func (p *Player) Resume() error { return p.acceptStub("resume") }

// SetLooping is accepted but not implemented.
func (p *Player) SetLooping(loop bool) error { return p.acceptStub("set-looping") }

// SetTrickSpeed is accepted but not implemented.
func (p *Player) SetTrickSpeed(speed int) error { return p.acceptStub("set-trick-speed") }

// JumpToTime is accepted but not implemented.
func (p *Player) JumpToTime(ms uint64) error { return p.acceptStub("jump-to-time") }

// SetAvSyncMode is accepted but not implemented; the engine always gates
// video against the audio-or-wall clock.
func (p *Player) SetAvSyncMode(mode AvSyncMode) error { return p.acceptStub("set-av-sync-mode") }

// ChangeStream is accepted but not implemented.
func (p *Player) ChangeStream() error { return p.acceptStub("change-stream") }

func (p *Player) acceptStub(op string) error {
	p.log.Debug("accepted unimplemented operation", "op", op, "state", p.loadState())
	return nil
}

// emit delivers a lifecycle event through the caller's event capability,
// outside any engine lock.
func (p *Player) emit(ev EventType) {
	if cb := p.events.Callback; cb != nil {
		cb(ev, activeSourceID)
	}
}

// AvSyncMode selects the frame-release gating policy. Only the default
// policy is implemented.
type AvSyncMode int

const (
	AvSyncModeDefault AvSyncMode = iota
	AvSyncModeNone
)

// avClock is the controller's AV-sync clock. When an audio stream is
// enabled at Start the clock follows consumed audio timestamps; otherwise
// the sync loop advances it with wall time. Either way it is monotonic.
type avClock struct {
	audioDriven bool // fixed at Start, before workers and pollers run
	now         atomic.Int64
}

func (c *avClock) reset(audioDriven bool) {
	c.audioDriven = audioDriven
	c.now.Store(0)
}

// observeAudio moves the clock to a consumed audio frame's timestamp.
func (c *avClock) observeAudio(pts int64) {
	if !c.audioDriven {
		return
	}
	c.advanceTo(pts)
}

// advanceTo raises the clock to ms, never lowering it.
func (c *avClock) advanceTo(ms int64) {
	for {
		cur := c.now.Load()
		if ms <= cur || c.now.CompareAndSwap(cur, ms) {
			return
		}
	}
}

func (c *avClock) milliseconds() int64 {
	return c.now.Load()
}
