//go:build linux

package sched

import (
	"log/slog"
	"runtime"

	"golang.org/x/sys/unix"
)

// Apply pins the calling goroutine to its OS thread and best-effort maps the
// engine priority onto the thread's niceness and CPU affinity. The engine
// priority domain is the contract; the OS mapping is advisory, so failures
// (typically missing privileges) are logged and swallowed.
func Apply(tp ThreadPriority, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("role", tp.Role.String())

	runtime.LockOSThread()

	tid := unix.Gettid()
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, niceness(tp.Priority)); err != nil {
		log.Debug("setpriority not applied", "priority", tp.Priority, "error", err)
	}

	if tp.Affinity != 0 {
		var set unix.CPUSet
		for cpu := 0; cpu < 64; cpu++ {
			if tp.Affinity&(1<<uint(cpu)) != 0 {
				set.Set(cpu)
			}
		}
		if err := unix.SchedSetaffinity(tid, &set); err != nil {
			log.Debug("affinity not applied", "mask", tp.Affinity, "error", err)
		}
	}
}

// niceness maps the engine priority domain onto the [-20, 19] niceness range.
// The default base lands on 0; each 4 engine steps move one niceness step.
func niceness(priority uint32) int {
	n := (int(priority) - DefaultBasePriority) / 4
	if n < -20 {
		n = -20
	}
	if n > 19 {
		n = 19
	}
	return n
}
