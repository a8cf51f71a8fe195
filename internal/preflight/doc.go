// Package preflight provides readiness checks for the filesystem paths and
// engine binaries an assessment job depends on.
//
// The run command calls RunAll before dispatching any work so a missing
// engine or an unwritable output directory fails fast instead of producing a
// log full of task errors. The preflight command prints the same results
// without running a job.
package preflight
