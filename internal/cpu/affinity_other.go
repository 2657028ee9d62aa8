//go:build !linux && !darwin && !windows

package cpu

import "runtime"

// Pin only locks the goroutine to its OS thread on this platform.
func Pin(workerID int) func() {
	runtime.LockOSThread()
	return runtime.UnlockOSThread
}

// Supported reports whether Pin binds threads to cores on this platform.
func Supported() bool { return false }
