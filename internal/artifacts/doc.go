// Package artifacts writes the two durable job outputs: the result table and
// the diagnostic log store.
//
// Both are two-phase. While a job runs, Table appends one JSON line per
// record to a partial file and LogStore appends entries to an open JSON
// array. Once every task has drained, Table.Seal rewrites the rows as CSV
// with a union header and LogStore.Seal wraps the entries with job metadata.
// Appends are serialised so concurrent completions never interleave partial
// rows or entries.
package artifacts
