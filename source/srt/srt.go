// Package srt provides a network byte-stream Source that pulls a transport
// stream from a remote SRT listener, for callers that feed the engine from
// a live feed instead of a local file.
package srt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	srtgo "github.com/zsiec/srtgo"

	"github.com/averon/playback/source"
)

// srtLatencyNs is the SRT latency setting in nanoseconds (120ms).
const srtLatencyNs = 120_000_000

const dialTimeout = 10 * time.Second

// DialRequest describes a remote SRT source to pull from.
type DialRequest struct {
	Address  string
	StreamID string
}

// Dial connects to the remote SRT listener synchronously (with a timeout)
// and returns the connection wrapped as a Source. If log is nil,
// slog.Default() is used.
func Dial(ctx context.Context, req DialRequest, log *slog.Logger) (source.Source, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "srt-source")

	if req.Address == "" {
		return nil, fmt.Errorf("address is required")
	}

	log.Info("dialing", "address", req.Address, "stream_id", req.StreamID)

	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs
	cfg.StreamID = req.StreamID

	type dialResult struct {
		conn *srtgo.Conn
		err  error
	}
	ch := make(chan dialResult, 1)
	go func() {
		conn, err := srtgo.Dial(req.Address, cfg)
		ch <- dialResult{conn, err}
	}()

	timer := time.NewTimer(dialTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("SRT dial failed: %w", res.err)
		}
		log.Info("connected", "address", req.Address)
		return source.FromReader(res.conn), nil
	case <-timer.C:
		// Drain the dial result in the background and close any leaked connection.
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, fmt.Errorf("SRT dial timed out after %s", dialTimeout)
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
