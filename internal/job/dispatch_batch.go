package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"openbq/internal/artifacts"
	"openbq/internal/logging"
	"openbq/internal/partition"
	"openbq/internal/pool"
	"openbq/internal/workunit"
)

// dispatchBatches links inputs into batch folders and submits them one at a
// time. The next batch is only built once the in-flight one has completed.
func (r *Runner) dispatchBatches(ctx context.Context, st *state) {
	logger := logging.NewComponentLogger(r.logger, "dispatch")
	scanner := partition.NewScanner(r.opts.InputDir, r.opts.Pattern, r.opts.Types)
	total := st.plan.Total

	for batch, err := range st.batches.Batches(scanner.Files(), total) {
		if err != nil {
			r.recordBatchError(logger, st, err)
			continue
		}
		st.processed += batch.Inputs
		unit := r.opts.Unit(batch.Dir, batch.Inputs)
		logger.Debug("batch submitted",
			logging.String(logging.FieldUnit, batch.Dir),
			logging.Int("inputs", batch.Inputs),
		)
		outcome := r.awaitBatch(ctx, st, st.pool.Submit(unit))

		step := min(r.opts.BatchSize, total-st.counter.Current())
		st.counter.Advance(step)
		st.agg.add(outcome)

		if ctx.Err() != nil {
			logging.WarnWithContext(logger, "dispatch cancelled", "dispatch_cancelled",
				logging.Error(ctx.Err()),
				logging.String(logging.FieldImpact, "remaining inputs were not scored"),
			)
			return
		}
	}
	st.counter.Set(total)
}

// awaitBatch polls the in-flight task with a short timeout and sleeps between
// polls until it completes.
func (r *Runner) awaitBatch(ctx context.Context, st *state, task *pool.Task) workunit.Outcome {
	pending := []*pool.Task{task}
	for {
		_, pending = st.pool.Wait(ctx, pending, 1, r.timeout)
		if len(pending) == 0 {
			return task.Outcome()
		}
		if ctx.Err() != nil {
			return st.pool.Get(ctx, pending)[0]
		}
		if r.interval <= 0 {
			continue
		}
		timer := time.NewTimer(r.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return st.pool.Get(ctx, pending)[0]
		case <-timer.C:
		}
	}
}

func (r *Runner) recordBatchError(logger *slog.Logger, st *state, err error) {
	var linkErr *partition.LinkError
	if errors.As(err, &linkErr) {
		st.processed++
		st.agg.record(artifacts.Entry{
			artifacts.KeyFile:      linkErr.Path,
			artifacts.KeyTaskError: linkErr.Error(),
		})
	}
	logging.WarnWithContext(logger, "batch preparation problem", "batch_prepare_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check scratch directory space and permissions"),
		logging.String(logging.FieldImpact, "affected inputs are counted as failed"),
	)
}
