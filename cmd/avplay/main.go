// Command avplay plays a local MPEG-TS file through the playback engine,
// polling decoded frames the way a rendering host would and printing
// delivery statistics. It exists to exercise the engine end to end; frames
// are consumed and released, not rendered.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/averon/playback/player"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <file.ts | srt://host:port[?streamid=id]>\n", os.Args[0])
		os.Exit(2)
	}
	uri := os.Args[1]

	basePriority := envUint("BASE_PRIORITY", 0)
	framebuffers := int(envUint("VIDEO_FRAMEBUFFERS", 0))

	slog.Info("avplay starting", "version", version, "uri", uri)

	reg := player.NewRegistry(nil)
	h := reg.Init(player.InitData{
		Memory: player.MemoryReplacement{
			Allocate:          func(size, _ int) []byte { return make([]byte, size) },
			Deallocate:        func([]byte) {},
			AllocateTexture:   func(size, _ int) []byte { return make([]byte, size) },
			DeallocateTexture: func([]byte) {},
		},
		NumOutputVideoFramebuffers: framebuffers,
		BasePriority:               uint32(basePriority),
	})
	if h == player.NoHandle {
		slog.Error("player init failed")
		os.Exit(1)
	}
	defer reg.Close(h)

	if st := reg.AddSource(h, uri); st != player.StatusOK {
		slog.Error("add source failed", "status", int32(st))
		os.Exit(1)
	}

	var count int
	if st := reg.StreamCount(h, &count); st != player.StatusOK {
		slog.Error("stream count failed", "status", int32(st))
		os.Exit(1)
	}
	for i := 0; i < count; i++ {
		var info player.StreamInfo
		if st := reg.GetStreamInfo(h, i, &info); st != player.StatusOK {
			continue
		}
		slog.Info("stream",
			"index", i,
			"kind", info.Kind.String(),
			"codec", info.Codec,
			"language", info.Language,
		)
		if st := reg.EnableStream(h, i); st != player.StatusOK {
			slog.Warn("enable stream failed", "index", i, "status", int32(st))
		}
	}

	if st := reg.Start(h); st != player.StatusOK {
		slog.Error("start failed", "status", int32(st))
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var videoFrames, audioFrames int
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

poll:
	for {
		select {
		case sig := <-sigCh:
			slog.Info("received signal, stopping", "signal", sig)
			break poll
		case <-ticker.C:
		}

		progressed := false
		var vi player.VideoFrameInfo
		if reg.GetVideoData(h, &vi) {
			videoFrames++
			reg.ReleaseVideoFrame(h, vi.PTS)
			progressed = true
		}
		var ai player.AudioFrameInfo
		if reg.GetAudioData(h, &ai) {
			audioFrames++
			progressed = true
		}
		if !progressed && !reg.IsActive(h) {
			slog.Info("end of stream")
			break
		}
	}

	if st := reg.Stop(h); st != player.StatusOK {
		slog.Error("stop failed", "status", int32(st))
	}
	slog.Info("playback finished",
		"video_frames", videoFrames,
		"audio_frames", audioFrames,
		"position_ms", reg.CurrentTime(h),
	)
}

func envUint(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return n
		}
	}
	return fallback
}
