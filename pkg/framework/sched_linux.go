//go:build linux

package framework

import "golang.org/x/sys/unix"

// SetThreadPriority switches the calling OS thread to SCHED_FIFO with
// the given priority. The caller must hold runtime.LockOSThread.
// It usually requires CAP_SYS_NICE.
func SetThreadPriority(priority int) error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	return unix.SchedSetAttr(0, &attr, 0)
}
