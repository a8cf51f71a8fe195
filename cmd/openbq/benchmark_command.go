package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"openbq/internal/job"
	"openbq/internal/logging"
	"openbq/internal/preflight"
	"openbq/internal/staging"
)

func newBenchmarkCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags
	var repeat int

	cmd := &cobra.Command{
		Use:   "benchmark <input-folder>",
		Short: "Measure assessment throughput on a folder of inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if repeat < 1 {
				return fmt.Errorf("--repeat must be at least 1, got %d", repeat)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			scratch, err := os.MkdirTemp(cfg.Paths.TempDir, staging.BatchRootPrefix+"bench-")
			if err != nil {
				return fmt.Errorf("create benchmark folder: %w", err)
			}
			defer func() {
				if err := os.RemoveAll(scratch); err != nil {
					logging.WarnWithContext(logger, "failed to remove benchmark folder", "benchmark_cleanup_failed",
						logging.String("path", scratch),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "remove the folder manually"),
					)
				}
			}()

			flags.output = scratch
			opts, err := flags.options(cmd, cfg, args[0])
			if err != nil {
				return err
			}
			if !flags.skipPreflight {
				if err := requirePreflight(cmd.Context(), cfg, opts); err != nil {
					return err
				}
			}

			rows := make([][]string, 0, repeat)
			var processed, failed int
			var elapsed float64
			for i := range repeat {
				opts.OutputDir = filepath.Join(scratch, "run_"+strconv.Itoa(i+1))
				summary, err := runJob(cmd, ctx, cfg, opts, logger)
				if err != nil {
					return err
				}
				processed += summary.AssessmentTask.Processed
				failed += summary.AssessmentTask.Failed
				elapsed += summary.Elapsed.Seconds()
				rows = append(rows, benchmarkRow(strconv.Itoa(i+1), summary))
			}
			if repeat > 1 {
				rate := 0.0
				if elapsed > 0 {
					rate = float64(processed) / elapsed
				}
				rows = append(rows, []string{
					"total",
					humanize.Comma(int64(processed)),
					humanize.Comma(int64(failed)),
					fmt.Sprintf("%.2fs", elapsed),
					job.FormatThroughput(rate),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Processed", "Failed", "Elapsed", "Throughput"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			info := preflight.DescribeSystem()
			fmt.Fprintln(out, renderPanel("System", [][]string{
				{"CPU count", strconv.Itoa(info.CPUs)},
				{"Memory", info.Memory},
				{"Platform", info.Platform},
				{"Kernel", info.Kernel},
				{"Concurrency", strconv.Itoa(cfg.Workers.Concurrency)},
			}))
			return nil
		},
	}
	flags.register(cmd, false)
	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "Number of times to assess the folder")
	return cmd
}

func benchmarkRow(label string, summary *job.Summary) []string {
	return []string{
		label,
		humanize.Comma(int64(summary.AssessmentTask.Processed)),
		humanize.Comma(int64(summary.AssessmentTask.Failed)),
		fmt.Sprintf("%.2fs", summary.Elapsed.Seconds()),
		summary.SystemThroughput,
	}
}
