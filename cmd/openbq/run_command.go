package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"openbq/internal/config"
	"openbq/internal/engine"
	"openbq/internal/job"
	"openbq/internal/logging"
	"openbq/internal/preflight"
	"openbq/internal/progress"
	"openbq/internal/services"
	"openbq/internal/staging"
	"openbq/internal/workunit"
)

// staleBatchAge is how old a leftover batch root must be before a new run
// removes it.
const staleBatchAge = 24 * time.Hour

// jobFlags holds the flags shared by run and benchmark.
type jobFlags struct {
	output        string
	pattern       string
	types         []string
	limit         int
	mode          string
	engine        string
	fusion        int
	batchSize     int
	source        []string
	target        string
	report        bool
	cwd           string
	prefix        string
	columns       []string
	query         string
	sort          string
	skipPreflight bool
}

func (f *jobFlags) register(cmd *cobra.Command, withOutput bool) {
	flags := cmd.Flags()
	if withOutput {
		flags.StringVarP(&f.output, "output", "o", "", "Output folder (default <input>/<unix-time>)")
		flags.BoolVarP(&f.report, "report", "r", false, "Generate a report from the output table")
		flags.StringVar(&f.cwd, "cwd", "", "Make reported paths relative to this folder")
		flags.StringVar(&f.prefix, "prefix", "", "Prefix joined onto reported paths")
		flags.StringSliceVar(&f.columns, "columns", nil, "Columns kept by the outlier filter")
		flags.StringVar(&f.query, "query", "", "Outlier filter expression (SQL WHERE syntax)")
		flags.StringVar(&f.sort, "sort", "", "Outlier filter ordering, e.g. \"quality desc\"")
	}
	flags.StringVarP(&f.mode, "mode", "m", string(workunit.ModeFace), "Biometric modality: face, finger, iris or speech")
	flags.StringVarP(&f.engine, "engine", "e", string(workunit.EngineOBQE), "Face engine: obqe, ofiq, biqt or fusion")
	flags.IntVarP(&f.fusion, "fusion", "f", workunit.DefaultFusionCode, "Fusion code combining OBQE(4), OFIQ(2) and BIQT(1)")
	flags.StringVar(&f.pattern, "pattern", "*", "Glob applied to input file names without extension")
	flags.StringSliceVarP(&f.types, "type", "t", nil, "Input file extensions (default depends on mode)")
	flags.IntVarP(&f.limit, "limit", "l", 0, "Maximum number of inputs to assess (0 = all)")
	flags.IntVar(&f.batchSize, "batch", 0, "Inputs per batch folder for batch engines (default from config)")
	flags.StringSliceVar(&f.source, "source", nil, "Fingerprint formats to convert")
	flags.StringVar(&f.target, "target", "", "Fingerprint conversion target format")
	flags.BoolVar(&f.skipPreflight, "skip-preflight", false, "Skip directory and engine checks")
}

// options maps the flags onto normalized job options.
func (f *jobFlags) options(cmd *cobra.Command, cfg *config.Config, input string) (config.JobOptions, error) {
	opts := config.NewJobOptions(cfg)
	opts.InputDir = input
	opts.Mode = workunit.Mode(f.mode)
	opts.Engine = workunit.Engine(f.engine)
	opts.FusionCode = f.fusion
	opts.Pattern = f.pattern
	opts.Types = f.types
	opts.Limit = f.limit
	opts.Conversion = workunit.Conversion{Source: f.source, Target: f.target}
	if f.batchSize != 0 {
		opts.BatchSize = f.batchSize
	}
	if f.output != "" {
		opts.OutputDir = f.output
	}
	if cmd.Flags().Changed("report") {
		opts.Report = f.report
	}
	if f.cwd != "" {
		opts.CWD = f.cwd
	}
	if f.prefix != "" {
		opts.Prefix = f.prefix
	}
	opts.Filter = config.FilterOptions{Columns: f.columns, Query: f.query, Sort: f.sort}
	if err := opts.Normalize(time.Now()); err != nil {
		return opts, err
	}
	return opts, opts.Validate()
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags jobFlags

	cmd := &cobra.Command{
		Use:   "run <input-folder>",
		Short: "Assess every matching input under a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, cfg, args[0])
			if err != nil {
				return err
			}
			if !flags.skipPreflight {
				if err := requirePreflight(cmd.Context(), cfg, opts); err != nil {
					return err
				}
			}
			staging.CleanStale(cmd.Context(), cfg.Paths.TempDir, staleBatchAge, logging.NewComponentLogger(logger, "staging"))

			summary, err := runJob(cmd, ctx, cfg, opts, logger)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd, summary); err != nil {
				return err
			}
			printFinished(cmd.OutOrStdout(), summary.TotalProcessTime)
			return nil
		},
	}
	flags.register(cmd, true)
	return cmd
}

// runJob wires the engine, report and progress collaborators into a runner.
func runJob(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, opts config.JobOptions, logger *slog.Logger) (*job.Summary, error) {
	scorer, err := engine.NewCommand(cfg, opts.Engine)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cli", "configure engine", string(opts.Engine), err)
	}
	errOut := cmd.ErrOrStderr()
	runner := job.New(cfg, opts, job.Deps{
		Scorer:       scorer,
		Collaborator: ctx.generator(),
		Progress: func(total int, phase string) progress.Sink {
			return progress.ForWriter(errOut, logger, total, phase)
		},
		Announce: func(plan job.Plan) {
			fmt.Fprint(errOut, renderJobInfo(plan, shouldColorize(errOut)))
		},
		Logger:  logger,
		Version: version,
	})
	return runner.Run(cmd.Context())
}

// requirePreflight runs the readiness checks and fails on the first problem.
func requirePreflight(ctx context.Context, cfg *config.Config, opts config.JobOptions) error {
	var failed []string
	for _, result := range preflight.RunAll(ctx, cfg, opts) {
		if !result.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrInput, "preflight", "", strings.Join(failed, "; "), nil)
}

func printFinished(out io.Writer, elapsed string) {
	fmt.Fprintf(out, "Task Finished (%s)\n", elapsed)
}
