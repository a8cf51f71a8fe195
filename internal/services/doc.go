// Package services defines shared utilities consumed by the job coordinator
// and its external collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs and work-unit targets for logging.
//   - Structured error markers plus the Wrap helper that separate fatal input
//     and configuration problems from recoverable task, aggregation, and
//     collaborator failures.
//
// Use these helpers when wiring new components so operational behaviour
// (error classification, observability) stays uniform across the job.
package services
