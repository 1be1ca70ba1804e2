// Package store provides the SQLite-backed build ledger.
//
// Every compiler run can be recorded with:
//   - Runs: identity, mode, input, final state and status, options
//   - Units: each compilation unit and its outcome
//   - Artifacts: every file the run kept, in collector order
//   - Diagnostics: every diagnostic the run reported
//
// # Ordering
//
// Runs are ordered by seq, a logical counter assigned when the run is
// recorded, never by timestamps. Children are ordered by their ordinal in
// the recorded run, so a run reads back exactly as it was written.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Run ids are generated by internal/runid. They are ledger keys only and
// never appear inside artifacts.
package store
