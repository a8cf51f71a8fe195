// Package engine adapts quality-scoring backends to the job coordinator.
//
// Key types:
//   - Scorer: scores one work unit and returns records or an error
//   - Func: adapts a plain function to Scorer (used by tests and benchmarks)
//   - Command: runs an external engine binary, passing the unit as JSON on
//     stdin and decoding the response from stdout
//
// Run is the task boundary: it validates the unit, recovers panics and turns
// every failure into a task-error Outcome so nothing escapes as a pool-level
// failure.
package engine
