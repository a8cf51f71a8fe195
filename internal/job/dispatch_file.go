package job

import (
	"context"

	"openbq/internal/logging"
	"openbq/internal/partition"
	"openbq/internal/pool"
)

// dispatchFiles submits every input as its own unit, then drains completions.
// Submission stops once the planned total is reached.
func (r *Runner) dispatchFiles(ctx context.Context, st *state) {
	logger := logging.NewComponentLogger(r.logger, "dispatch")
	scanner := partition.NewScanner(r.opts.InputDir, r.opts.Pattern, r.opts.Types)

	tasks := make([]*pool.Task, 0, st.plan.Total)
	for path, err := range partition.Take(scanner.Files(), st.plan.Total) {
		if err != nil {
			logging.WarnWithContext(logger, "input enumeration stopped early", "scan_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check input directory permissions"),
			)
			continue
		}
		tasks = append(tasks, st.pool.Submit(r.opts.Unit(path, 1)))
	}
	st.processed = len(tasks)
	logger.Debug("units submitted", logging.Int("submitted", len(tasks)))

	r.track(ctx, st, tasks)
}

// track drains per-file tasks. After a priming wait it waits for completions
// in windows and advances the display by what actually finished. Once fewer
// than a window remain the display jumps to the total and the rest are
// resolved with a single blocking get.
func (r *Runner) track(ctx context.Context, st *state, tasks []*pool.Task) {
	if len(tasks) == 0 {
		return
	}
	window := r.workers.Window

	ready, pending := st.pool.Wait(ctx, tasks, 1, 0)
	st.counter.Advance(len(ready))
	st.agg.addTasks(ready)

	for len(pending) > 0 && ctx.Err() == nil {
		if len(pending) < window {
			st.counter.Set(st.counter.Total())
			break
		}
		ready, pending = st.pool.Wait(ctx, pending, window, 0)
		st.counter.Advance(len(ready))
		st.agg.addTasks(ready)
	}

	for _, outcome := range st.pool.Get(ctx, pending) {
		st.agg.add(outcome)
	}
	st.counter.Set(st.counter.Total())
}
