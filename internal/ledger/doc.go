// Package ledger holds the two append-only history aggregates.
//
// Monthly is keyed by competence period ("2006-01") and accumulates every
// status and regime ChangeEvent in arrival order, with running counters.
// Weekly is keyed by ISO week ("2025-W07") and records the entities that
// entered the suspended status that week, deduplicated by entity id.
//
// Both ledgers are safe for concurrent use: appends come from the single
// diff cycle, reads come from report commands and calendar jobs. Appends
// never block on disk I/O. Each append marks the ledger dirty and signals a
// saver goroutine that rewrites the whole file; Flush waits for the write
// and Close stops the saver after a final write.
package ledger
