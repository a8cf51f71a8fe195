// Package job coordinates one assessment job: it discovers inputs, dispatches
// work units to the worker pool, tracks completion for the progress display,
// aggregates outcomes into the result table and log store, and finalizes the
// artifacts into a summary.
//
// Two dispatch policies exist. Per-file dispatch submits every input at once
// and drains completions in fixed windows. Per-batch dispatch, used by folder
// engines, links inputs into scratch batch folders and keeps one batch in
// flight at a time.
//
// Only problems found before dispatch fail a job. Everything after that is
// recorded in the log store and surfaced as warnings; the summary is always
// produced.
package job
