package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"openbq/internal/artifacts"
	"openbq/internal/config"
	"openbq/internal/engine"
	"openbq/internal/logging"
	"openbq/internal/partition"
	"openbq/internal/pool"
	"openbq/internal/progress"
	"openbq/internal/report"
	"openbq/internal/services"
	"openbq/internal/workunit"
)

const lockFileName = ".openbq.lock"

// Collaborator builds reports and filtered views of a finalized table.
type Collaborator interface {
	BuildReport(ctx context.Context, tablePath, cwd, prefix string) (report.Views, error)
	FilterOutput(ctx context.Context, tablePath string, filter report.Filter, cwd, prefix string) (report.Views, error)
}

// Plan describes a job after discovery and before dispatch.
type Plan struct {
	JobID      string
	Mode       workunit.Mode
	Engine     workunit.Engine
	FusionCode int
	Types      []string
	Target     string
	InputDir   string
	Discovered int
	Limit      int
	Total      int
	Batched    bool
}

// Deps carries the collaborators a Runner needs.
type Deps struct {
	Scorer       engine.Scorer
	Collaborator Collaborator
	// Progress builds the display sink once the total is known.
	Progress func(total int, phase string) progress.Sink
	// Announce is called with the plan before any artifact is created.
	Announce func(Plan)
	Logger   *slog.Logger
	Version  string
	Now      func() time.Time
}

// Runner executes one job.
type Runner struct {
	id       string
	opts     config.JobOptions
	workers  config.Workers
	tempDir  string
	interval time.Duration
	timeout  time.Duration
	deps     Deps
	logger   *slog.Logger
}

// New prepares a runner. opts must already be normalized; cfg supplies the
// worker, polling and scratch settings.
func New(cfg *config.Config, opts config.JobOptions, deps Deps) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Progress == nil {
		deps.Progress = func(int, string) progress.Sink { return progress.Nop{} }
	}
	id := uuid.NewString()
	logger := logging.NewComponentLogger(deps.Logger, "job").With(logging.String(logging.FieldJobID, id))
	r := &Runner{
		id:       id,
		opts:     opts,
		deps:     deps,
		logger:   logger,
		workers:  cfg.Workers,
		tempDir:  cfg.Paths.TempDir,
		interval: cfg.PollInterval(),
		timeout:  cfg.PollTimeout(),
	}
	if r.workers.Window <= 0 {
		r.workers.Window = 10
	}
	return r
}

// ID returns the job correlation identifier.
func (r *Runner) ID() string {
	return r.id
}

// Plan validates the options and counts the matching inputs.
func (r *Runner) Plan() (Plan, error) {
	if err := r.opts.Validate(); err != nil {
		return Plan{}, err
	}
	scanner := partition.NewScanner(r.opts.InputDir, r.opts.Pattern, r.opts.Types)
	discovered, err := scanner.Count()
	if err != nil {
		return Plan{}, services.Wrap(services.ErrInput, "job", "discover inputs", r.opts.InputDir, err)
	}
	plan := Plan{
		JobID:      r.id,
		Mode:       r.opts.Mode,
		Engine:     r.opts.Engine,
		Types:      r.opts.Types,
		Target:     r.opts.Conversion.Target,
		InputDir:   artifacts.ReconstructPath(artifacts.NormalizePath(r.opts.InputDir), r.opts.Prefix),
		Discovered: discovered,
		Limit:      r.opts.Limit,
		Total:      partition.Total(discovered, r.opts.Limit),
		Batched:    r.opts.BatchOriented(),
	}
	if r.opts.Engine == workunit.EngineFusion {
		plan.FusionCode = r.opts.FusionCode
	}
	return plan, nil
}

// Run executes the job end to end. The returned error is non-nil only for
// problems detected before dispatch.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	ctx = services.WithJobID(ctx, r.id)
	start := r.deps.Now()

	plan, err := r.Plan()
	if err != nil {
		return nil, err
	}
	if r.deps.Announce != nil {
		r.deps.Announce(plan)
	}
	if plan.Total == 0 {
		r.logger.Warn("no valid input found",
			logging.String(logging.FieldEventType, "no_input"),
			logging.String("input_dir", r.opts.InputDir),
		)
		return nil, services.Wrap(services.ErrInput, "job", "discover inputs", "no valid input found in "+r.opts.InputDir, nil)
	}
	if r.deps.Scorer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "job", "start", "no scorer configured", nil)
	}

	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrInput, "job", "create output directory", r.opts.OutputDir, err)
	}
	lock := flock.New(filepath.Join(r.opts.OutputDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "job", "lock output directory", r.opts.OutputDir, err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrInput, "job", "lock output directory", "another job is writing to "+r.opts.OutputDir, nil)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	var batches *partition.BatchSet
	if plan.Batched {
		batches, err = partition.NewBatchSet(r.tempDir, r.id, r.opts.BatchSize)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "job", "prepare batches", r.tempDir, err)
		}
		defer func() {
			if err := batches.Close(); err != nil {
				logging.WarnWithContext(r.logger, "failed to remove batch folders", "batch_cleanup_failed",
					logging.String("root", batches.Root()),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "remove the scratch folder manually"),
					logging.String(logging.FieldImpact, "scratch disk space is not reclaimed"),
				)
			}
		}()
	}

	names := NewArtifactNames(r.opts.OutputDir, r.opts.Mode, r.opts.Engine, start)
	table, err := artifacts.CreateTable(names.Table)
	if err != nil {
		return nil, services.Wrap(services.ErrInput, "job", "create table", names.Table, err)
	}
	logs, err := artifacts.CreateLogStore(names.Log)
	if err != nil {
		_ = table.Discard()
		return nil, services.Wrap(services.ErrInput, "job", "create log", names.Log, err)
	}

	r.logger.Info("job started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.String("mode", string(plan.Mode)),
		logging.String("engine", string(plan.Engine)),
		logging.Any("types", plan.Types),
		logging.Int("total", plan.Total),
		logging.Bool("batched", plan.Batched),
		logging.String("output_dir", r.opts.OutputDir),
	)

	pl := pool.New(ctx, r.workers.Concurrency, engine.Bind(r.deps.Scorer), r.deps.Logger)
	defer pl.Close()

	st := &state{
		plan:    plan,
		start:   start,
		names:   names,
		pool:    pl,
		counter: progress.NewCounter(plan.Total, r.deps.Progress(plan.Total, "Processing")),
		agg:     newAggregator(table, logs, r.opts.Prefix, batches, r.logger),
		batches: batches,
	}
	if plan.Batched {
		r.dispatchBatches(ctx, st)
	} else {
		r.dispatchFiles(ctx, st)
	}
	st.counter.Finish()

	return r.finalize(ctx, st), nil
}

// state is the mutable bookkeeping for one run, owned by the coordinating
// goroutine.
type state struct {
	plan      Plan
	start     time.Time
	names     ArtifactNames
	pool      *pool.Pool
	counter   *progress.Counter
	agg       *aggregator
	batches   *partition.BatchSet
	processed int
}

// ArtifactNames are the output file locations for one job.
type ArtifactNames struct {
	Table string
	Log   string
}

// NewArtifactNames derives the per-job file names inside dir.
func NewArtifactNames(dir string, mode workunit.Mode, eng workunit.Engine, at time.Time) ArtifactNames {
	stamp := fmt.Sprintf("%d-%d-%d_%d-%d-%d", at.Day(), int(at.Month()), at.Year(), at.Hour(), at.Minute(), at.Second())
	base := fmt.Sprintf("%s_%s_%s", mode, eng, stamp)
	return ArtifactNames{
		Table: filepath.Join(dir, "output_"+base+".csv"),
		Log:   filepath.Join(dir, "log_"+base+".json"),
	}
}
