//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCore pins the current OS thread to core cpuID mod NumCPU and returns
// the mask that was in effect before. Must be called after runtime.LockOSThread().
func pinToCore(cpuID int) (unix.CPUSet, error) {
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return prev, err
	}

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(coreFor(cpuID))

	// 0 = current thread
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return prev, err
	}
	return prev, nil
}

// Pin locks the calling goroutine to its OS thread and binds that thread to
// the core assigned to workerID. The returned func restores the previous
// mask and unlocks the thread; it must run on the same goroutine.
func Pin(workerID int) func() {
	runtime.LockOSThread()
	prev, err := pinToCore(workerID)
	if err != nil {
		return runtime.UnlockOSThread
	}

	return func() {
		_ = unix.SchedSetaffinity(0, &prev)
		runtime.UnlockOSThread()
	}
}

// Supported reports whether Pin binds threads to cores on this platform.
func Supported() bool { return true }
