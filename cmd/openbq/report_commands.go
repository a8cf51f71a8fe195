package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"openbq/internal/config"
	"openbq/internal/job"
	"openbq/internal/report"
	"openbq/internal/services"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var cwd, prefix string

	cmd := &cobra.Command{
		Use:   "report <output-table>",
		Short: "Build a preview table and HTML report from an output table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			tablePath, err := resolveTable(args[0])
			if err != nil {
				return err
			}
			views, err := ctx.generator().BuildReport(cmd.Context(), tablePath, cwd, prefix)
			if err != nil {
				return services.Wrap(services.ErrCollaborator, "report", "build report", tablePath, err)
			}
			if err := writeJSON(cmd, job.ReportSummary{PreviewTable: views.Table, EDAReport: views.Report}); err != nil {
				return err
			}
			printFinished(cmd.OutOrStdout(), job.FormatElapsed(time.Since(start)))
			return nil
		},
	}
	cmd.Flags().StringVar(&cwd, "cwd", "", "Make reported paths relative to this folder")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Prefix joined onto reported paths")
	return cmd
}

func newFilterCommand(ctx *commandContext) *cobra.Command {
	var cwd, prefix string
	var filter config.FilterOptions

	cmd := &cobra.Command{
		Use:   "filter <output-table>",
		Short: "Select, filter and sort rows of an output table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if !filter.Requested() {
				return services.Wrap(services.ErrConfiguration, "filter", "", "set --columns, --query or --sort", nil)
			}
			tablePath, err := resolveTable(args[0])
			if err != nil {
				return err
			}
			views, err := ctx.generator().FilterOutput(cmd.Context(), tablePath, report.Filter{
				Columns: filter.Columns,
				Query:   filter.Query,
				Sort:    filter.Sort,
			}, cwd, prefix)
			if err != nil {
				return services.Wrap(services.ErrCollaborator, "filter", "filter output", tablePath, err)
			}
			if err := writeJSON(cmd, job.FilterSummary{Output: views.Output, Report: views.Report}); err != nil {
				return err
			}
			printFinished(cmd.OutOrStdout(), job.FormatElapsed(time.Since(start)))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&filter.Columns, "columns", nil, "Columns to keep (file is always kept)")
	cmd.Flags().StringVar(&filter.Query, "query", "", "Row filter expression (SQL WHERE syntax)")
	cmd.Flags().StringVar(&filter.Sort, "sort", "", "Ordering, e.g. \"quality desc\"")
	cmd.Flags().StringVar(&cwd, "cwd", "", "Make reported paths relative to this folder")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Prefix joined onto reported paths")
	return cmd
}

func resolveTable(arg string) (string, error) {
	path, err := config.ExpandPath(arg)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", services.Wrap(services.ErrInput, "cli", "open table", path, err)
	}
	if info.IsDir() {
		return "", services.Wrap(services.ErrInput, "cli", "open table", fmt.Sprintf("%s is a directory", path), nil)
	}
	return path, nil
}
