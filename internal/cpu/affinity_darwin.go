//go:build darwin

package cpu

import "runtime"

// Pin locks the goroutine to an OS thread. macOS exposes no thread-to-core
// binding, so only the thread lock is applied.
func Pin(workerID int) func() {
	runtime.LockOSThread()
	return runtime.UnlockOSThread
}

// Supported reports whether Pin binds threads to cores on this platform.
func Supported() bool { return false }
