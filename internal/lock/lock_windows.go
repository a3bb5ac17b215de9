//go:build windows

package lock

import (
	"os"
	"syscall"
)

// On Windows, FindProcess always succeeds; probe with a zero signal.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
