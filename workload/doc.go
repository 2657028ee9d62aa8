// Package workload builds the task batches fed to the balancer: CPU-bound
// kernels run on the worker goroutine and server-bound requests routed to
// a simulated cluster. Each policy has a specialised eight-task workload
// designed to show how it behaves.
package workload
