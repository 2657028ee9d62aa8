// Package balancer dispatches a batch of tasks across a fixed set of
// workers using one of several assignment policies and reports how the
// work was spread.
//
// Every policy follows the same pipeline. Tasks are decided strictly in
// input order; a dispatched task runs on its own goroutine and the run
// returns once every dispatched task has finished. A policy may turn a
// task away instead of dispatching it, which is recorded in the
// assignment trace and is not a failure.
//
// Basic usage:
//
//	p, err := balancer.New("adaptive", 4, balancer.WithThreshold(3))
//	if err != nil {
//		return err
//	}
//	report, err := p.Run(ctx, tasks)
//
// Available policies:
//   - round-robin: task i goes to worker i mod n
//   - distributed: random probing against fixed per-worker capacities
//   - adaptive: round-robin until a worker's estimated load crosses the
//     threshold, then least-loaded
//   - predictive: least predicted completion time
//   - reactive: least-loaded with a hard per-worker limit
package balancer
