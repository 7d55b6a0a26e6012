// Package snapshot owns the last known good state of every tracked entity.
//
// The store is the single owner of the Snapshot. Readers get deep copies;
// the only writer is Commit, which the diff engine calls once per cycle.
//
// # Integrity guard
//
// Commit refuses a candidate that is less than half the size of a non-empty
// prior snapshot. A sudden shrink of that size is treated as a partial or
// corrupt read of the source, not as real-world deletions, and the prior
// snapshot is kept both in memory and on disk.
//
// # Persistence
//
// Accepted commits are written with write-temp-then-rename, then copied to
// an immutable timestamped backup that is never overwritten. A failed write
// is reported as *PersistError but the in-memory snapshot is still replaced:
// memory is authoritative for the process lifetime and the next accepted
// commit rewrites the file.
//
// # File layout
//
//	{
//	  "last_checked_at": "2025-03-10T09:00:00-03:00",
//	  "records": {"100": {"status": "ATIVA", "regime": "SN"}}
//	}
//
// Files written by earlier deployments ("ultima_verificacao" and
// "registros" keys, bare-string records) are read transparently; writes
// always use the layout above.
package snapshot
