//go:build !linux

package framework

import "errors"

// SetThreadPriority is not supported on this platform.
func SetThreadPriority(priority int) error {
	return errors.New("thread priority not supported")
}
