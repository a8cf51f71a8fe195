// Package workunit defines the values that cross the worker boundary: the
// immutable WorkUnit sent to a scorer, the ResultRecord rows a scorer returns,
// and the Outcome variant a task resolves to.
//
// Modality and engine enumerations live here too, together with the rules
// that pick a dispatch policy (single files vs batch folders) and the
// diagnostic marker an engine uses to report an input it could not load.
package workunit
