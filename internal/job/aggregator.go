package job

import (
	"log/slog"
	"maps"
	"path/filepath"

	"openbq/internal/artifacts"
	"openbq/internal/logging"
	"openbq/internal/partition"
	"openbq/internal/pool"
	"openbq/internal/services"
	"openbq/internal/workunit"
)

// aggregator folds task outcomes into the table and log store in arrival
// order. Each outcome contributes its own rows and entries; no outcome
// depends on another.
type aggregator struct {
	table   *artifacts.Table
	logs    *artifacts.LogStore
	prefix  string
	batches *partition.BatchSet
	logger  *slog.Logger

	failedUnits  int
	failedInputs int
	appendErrors int
}

func newAggregator(table *artifacts.Table, logs *artifacts.LogStore, prefix string, batches *partition.BatchSet, logger *slog.Logger) *aggregator {
	return &aggregator{
		table:   table,
		logs:    logs,
		prefix:  prefix,
		batches: batches,
		logger:  logging.NewComponentLogger(logger, "aggregate"),
	}
}

func (a *aggregator) addTasks(tasks []*pool.Task) {
	for _, task := range tasks {
		a.add(task.Outcome())
	}
}

func (a *aggregator) add(outcome workunit.Outcome) {
	unit := outcome.Unit
	if outcome.Failed() {
		a.failedUnits++
		a.failedInputs += max(unit.Inputs, 1)
		entry := artifacts.Entry{artifacts.KeyTaskError: outcome.Err.Error()}
		if unit.IsBatch() {
			entry[artifacts.KeyFolder] = unit.Folder
			entry[artifacts.KeyInputs] = unit.Inputs
		} else {
			entry[artifacts.KeyFile] = unit.File
		}
		a.logger.Debug("task failed",
			logging.String(logging.FieldUnit, unit.Target()),
			logging.Error(outcome.Err),
		)
		a.record(entry)
		return
	}

	for _, rec := range outcome.Records {
		rec.Path = artifacts.DisplayPath(a.sourcePath(unit, rec.Path), a.prefix)
		for _, sub := range rec.Log {
			entry := maps.Clone(sub)
			if entry == nil {
				entry = artifacts.Entry{}
			}
			entry[artifacts.KeyFile] = rec.Path
			if unit.IsBatch() {
				entry[artifacts.KeyFolder] = unit.Folder
			}
			a.record(entry)
		}
		rec.Log = nil
		if err := a.table.Append(rec); err != nil {
			a.appendFailed("table row", rec.Path, err)
		}
	}
}

// sourcePath maps a path reported from a batch folder back to the original
// input so the table never references scratch links.
func (a *aggregator) sourcePath(unit workunit.WorkUnit, reported string) string {
	if !unit.IsBatch() || a.batches == nil {
		return reported
	}
	batch, ok := a.batches.Lookup(unit.Folder)
	if !ok {
		return reported
	}
	candidate := reported
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(unit.Folder, candidate)
	}
	if src, ok := batch.Source(candidate); ok {
		return src
	}
	return reported
}

func (a *aggregator) record(entry artifacts.Entry) {
	if err := a.logs.Append(entry); err != nil {
		tag, _ := entry[artifacts.KeyFile].(string)
		if tag == "" {
			tag, _ = entry[artifacts.KeyFolder].(string)
		}
		a.appendFailed("log entry", tag, err)
	}
}

func (a *aggregator) appendFailed(kind, tag string, err error) {
	a.appendErrors++
	logging.WarnWithContext(a.logger, "failed to append "+kind, "aggregate_append_failed",
		logging.String(logging.FieldUnit, tag),
		logging.Error(services.Wrap(services.ErrAggregation, "aggregate", "append", kind, err)),
		logging.String(logging.FieldErrorHint, "check output directory free space"),
		logging.String(logging.FieldImpact, "the "+kind+" is missing from the artifacts"),
	)
}
