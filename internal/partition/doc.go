// Package partition discovers input files and regroups them into scratch batch
// folders for engines that score whole directories.
//
// Files are enumerated lazily through iter.Seq2 so each call re-walks the input
// root. Extension matching is case-insensitive: every requested extension is
// expanded to its lower and upper case forms before matching. BatchSet owns the
// scratch root created for one job; callers must Close it once every batch has
// been drained, on every return path.
package partition
