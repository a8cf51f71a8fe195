// Package main hosts the openbq CLI entrypoint and command graph.
//
// The Cobra command tree translates terminal invocations into assessment
// jobs, standalone report and filter runs, benchmarks and readiness checks.
// It centralizes configuration resolution and logging setup so subcommands
// only map flags onto config.JobOptions and render results.
//
// Keep this package lean: new behaviour belongs in the internal packages
// first and is surfaced here through dedicated commands or flags.
package main
