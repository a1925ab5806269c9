package liveness

import (
	"os"
	"syscall"
)

// ProcessAlive reports whether pid names a live process, probed with a
// signal 0 (no-op) send, grounded on original_source's
// is_process_running (commands/monitor/state/detection.rs).
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
