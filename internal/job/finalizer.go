package job

import (
	"context"
	"log/slog"
	"time"

	"openbq/internal/artifacts"
	"openbq/internal/logging"
	"openbq/internal/report"
	"openbq/internal/services"
	"openbq/internal/workunit"
)

const datetimeLayout = "2006-01-02 15:04:05.000000"

// finalize seals the artifacts, recomputes the failure count from the sealed
// log and runs the optional collaborators. It never fails the job.
func (r *Runner) finalize(ctx context.Context, st *state) *Summary {
	logger := logging.NewComponentLogger(r.logger, "finalize")
	elapsed := r.deps.Now().Sub(st.start)
	processed := st.processed

	tablePath := stringRef(st.names.Table)
	if err := st.agg.table.Seal(); err != nil {
		tablePath = nil
		r.warnArtifact(logger, "failed to seal output table", "table_seal_failed", err)
	}

	failed := st.agg.failedInputs
	logPath := stringRef(st.names.Log)
	marker := r.opts.Mode.FailureMarker()
	_, err := st.agg.logs.Seal(func(entries []artifacts.Entry) artifacts.Metadata {
		failed = artifacts.FailedInputs(entries, marker)
		return r.metadata(st, processed, failed, elapsed)
	})
	if err != nil {
		logPath = nil
		r.warnArtifact(logger, "failed to reload metadata for log", "log_seal_failed", err)
	}
	failed = min(failed, processed)

	if processed > 0 && failed >= processed {
		logging.WarnWithContext(logger, "every input failed", "all_inputs_failed",
			logging.Int("processed", processed),
			logging.Int("failed", failed),
			logging.String(logging.FieldErrorHint, "inspect the log for engine errors"),
			logging.String(logging.FieldImpact, "no output table or report is produced"),
		)
		if tablePath != nil {
			if err := st.agg.table.Discard(); err != nil {
				r.warnArtifact(logger, "failed to remove empty output table", "table_discard_failed", err)
			}
		}
		tablePath = nil
	}

	summary := &Summary{
		TotalProcessTime: FormatElapsed(elapsed),
		JobID:            r.id,
		Elapsed:          elapsed,
		Throughput:       Throughput(processed, elapsed),
		AssessmentTask: TaskSummary{
			Processed: processed,
			Failed:    failed,
			Input:     r.opts.InputDir,
			Output:    tablePath,
			Log:       logPath,
		},
	}
	summary.SystemThroughput = FormatThroughput(summary.Throughput)

	if tablePath != nil && r.deps.Collaborator != nil {
		if r.opts.Report {
			summary.AssessmentTask.Report = r.buildReport(ctx, logger, *tablePath)
		}
		if r.opts.Filter.Requested() {
			summary.OutlierFilter = r.applyFilter(ctx, logger, *tablePath)
		}
	}

	logger.Info("job finished",
		logging.String(logging.FieldEventType, "job_finished"),
		logging.Int("processed", processed),
		logging.Int("failed", failed),
		logging.Duration("elapsed", elapsed.Round(time.Millisecond)),
		logging.String("throughput", summary.SystemThroughput),
	)
	return summary
}

func (r *Runner) metadata(st *state, processed, failed int, elapsed time.Duration) artifacts.Metadata {
	meta := artifacts.Metadata{
		Version:        "OpenBQ v" + r.deps.Version,
		Datetime:       st.start.Format(datetimeLayout),
		InputDirectory: r.opts.InputDir,
		Engine:         string(r.opts.Engine),
		Mode:           string(r.opts.Mode),
		Processed:      processed,
		Failed:         failed,
		ProcessTime:    FormatElapsed(elapsed),
	}
	if r.opts.Engine == workunit.EngineFusion {
		meta.Fusion = r.opts.FusionCode
	}
	return meta
}

func (r *Runner) buildReport(ctx context.Context, logger *slog.Logger, table string) *ReportSummary {
	views, err := r.deps.Collaborator.BuildReport(ctx, table, r.opts.CWD, r.opts.Prefix)
	if err != nil {
		r.warnCollaborator(logger, "failed to generate report", "report_failed", err)
		return nil
	}
	return &ReportSummary{PreviewTable: views.Table, EDAReport: views.Report}
}

func (r *Runner) applyFilter(ctx context.Context, logger *slog.Logger, table string) *FilterSummary {
	filter := report.Filter{
		Columns: r.opts.Filter.Columns,
		Query:   r.opts.Filter.Query,
		Sort:    r.opts.Filter.Sort,
	}
	views, err := r.deps.Collaborator.FilterOutput(ctx, table, filter, r.opts.CWD, r.opts.Prefix)
	if err != nil {
		r.warnCollaborator(logger, "failed to apply filter", "filter_failed", err)
		return nil
	}
	return &FilterSummary{Output: views.Output, Report: views.Report}
}

func (r *Runner) warnCollaborator(logger *slog.Logger, msg, event string, err error) {
	logging.WarnWithContext(logger, msg, event,
		logging.Error(services.Wrap(services.ErrCollaborator, "finalize", event, "", err)),
		logging.String(logging.FieldErrorHint, "rerun the step on the output table"),
		logging.String(logging.FieldImpact, "the artifact reference is null in the summary"),
	)
}

func (r *Runner) warnArtifact(logger *slog.Logger, msg, event string, err error) {
	logging.WarnWithContext(logger, msg, event,
		logging.Error(services.Wrap(services.ErrAggregation, "finalize", event, "", err)),
		logging.String(logging.FieldErrorHint, "check output directory permissions and free space"),
		logging.String(logging.FieldImpact, "the artifact reference is null in the summary"),
	)
}
