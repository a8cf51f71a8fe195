// Package report renders views of a finalized output table.
//
// BuildReport writes a Markdown preview of the first rows and an HTML report
// with per-column statistics. FilterOutput loads the table into an in-memory
// SQLite database, runs the requested column/WHERE/ORDER BY query and writes
// the filtered CSV together with its own report.
// Both accept cwd and prefix hints that rewrite the file column for display.
package report
