//go:build windows

package cpu

import (
	"runtime"
	"syscall"
)

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	setThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
	getCurrentThread      = kernel32.NewProc("GetCurrentThread")
)

// pinToCore binds the current thread and returns the previous affinity mask.
// Must be called after runtime.LockOSThread().
func pinToCore(cpuID int) (uintptr, error) {
	handle, _, _ := getCurrentThread.Call()

	// Bit N = CPU N
	mask := uintptr(1) << uint(coreFor(cpuID))

	prevMask, _, err := setThreadAffinityMask.Call(handle, mask)
	if prevMask == 0 {
		return 0, err
	}
	return prevMask, nil
}

// Pin locks the goroutine to its OS thread and binds the thread to the core
// assigned to workerID. The returned func restores the previous mask.
func Pin(workerID int) func() {
	runtime.LockOSThread()
	prev, err := pinToCore(workerID)
	if err != nil {
		return runtime.UnlockOSThread
	}

	return func() {
		handle, _, _ := getCurrentThread.Call()
		_, _, _ = setThreadAffinityMask.Call(handle, prev)
		runtime.UnlockOSThread()
	}
}

// Supported reports whether Pin binds threads to cores on this platform.
func Supported() bool { return true }
