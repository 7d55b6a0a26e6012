// Package engine implements the snapshot-diff cycle.
//
// One cycle (Tick) fetches the source table, diffs it against the
// committed snapshot, submits the candidate to the snapshot store's guarded
// commit and, when the commit is accepted, records ledger entries, journals
// the events and queues notifications.
//
// ARCHITECTURE:
//
// Single writer:
// Tick holds a mutex for its whole duration, so only one cycle runs at a
// time and the snapshot store has exactly one committer. Readers (reports,
// status) go straight to the stores, which return copies.
//
// Asynchronous dispatch:
// Notifications are enqueued on an unbounded FIFO queue and delivered by
// Run on its own goroutine. A slow or failing sink never delays the next
// Tick, and delivery order matches event order.
//
// Failure policy:
//   - Fetch failures are retried a bounded number of times within one Tick,
//     then the cycle is abandoned until the next Tick.
//   - A refused commit discards the whole cycle: no ledger entry, no
//     change row, no notification.
//   - A failed snapshot write does not stop the cycle; memory stays
//     authoritative and the next accepted commit rewrites the file.
//
// Every Tick failure is returned as a *CycleError; none of them is fatal to
// the scheduler.
package engine
