//go:build !windows

package lock

import "syscall"

// Signal 0 tests if the process exists without sending a signal.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
