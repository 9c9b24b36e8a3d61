//go:build !linux

package sched

import (
	"log/slog"
	"runtime"
)

// Apply pins the calling goroutine to its OS thread. Priority and affinity
// mapping is only implemented on Linux; elsewhere the engine priority domain
// is honored logically (queue sizing, drain order) but not at the OS level.
func Apply(tp ThreadPriority, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	runtime.LockOSThread()
	log.Debug("os priority mapping unavailable", "role", tp.Role.String(), "priority", tp.Priority)
}
