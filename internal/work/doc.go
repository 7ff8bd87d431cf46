// Package work runs the configured analyses.
//
// # Jobs
//
// Every enabled analysis file becomes a Job wrapping a scan.Orchestrator.
// Jobs are registered by analysis name so the status server can report on
// them while they run.
//
// # Admission
//
// The Runner bounds the analyses in flight with a weighted semaphore sized by
// TASKS_MAX_PARALLEL:
//   - async analyses start in their own goroutine once a slot is free
//   - the others run inline, in file order, holding a slot while they scan
//
// # Timeout
//
// A wall-clock timeout cancels the root context. Running scans stop at their
// next cancellation check, write a final checkpoint and are reported as
// interrupted rather than failed; the checkpoint is the resumption point of
// the next run.
package work
