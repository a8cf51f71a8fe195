package job_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"openbq/internal/artifacts"
	"openbq/internal/config"
	"openbq/internal/engine"
	"openbq/internal/job"
	"openbq/internal/logging"
	"openbq/internal/progress"
	"openbq/internal/report"
	"openbq/internal/services"
	"openbq/internal/workunit"
)

type recordingSink struct {
	mu       sync.Mutex
	values   []int
	finished bool
}

func (s *recordingSink) Update(current, _ int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, current)
}

func (s *recordingSink) Finish(int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
}

func (s *recordingSink) last() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0
	}
	return s.values[len(s.values)-1]
}

func (s *recordingSink) snapshot() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.values)
}

func (s *recordingSink) assertMonotonic(t *testing.T, total int) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.values {
		if v > total {
			t.Fatalf("progress %d exceeds total %d", v, total)
		}
		if i > 0 && v < s.values[i-1] {
			t.Fatalf("progress decreased: %v", s.values)
		}
	}
	if len(s.values) == 0 || s.values[len(s.values)-1] != total {
		t.Fatalf("progress did not reach total %d: %v", total, s.values)
	}
	if !s.finished {
		t.Fatal("progress display was not finished")
	}
}

type fakeCollaborator struct {
	reportErr error
	reports   atomic.Int32
	filters   atomic.Int32
}

func (f *fakeCollaborator) BuildReport(_ context.Context, tablePath, _, _ string) (report.Views, error) {
	f.reports.Add(1)
	if f.reportErr != nil {
		return report.Views{}, f.reportErr
	}
	return report.Views{Table: tablePath + ".md", Report: tablePath + ".html"}, nil
}

func (f *fakeCollaborator) FilterOutput(_ context.Context, tablePath string, _ report.Filter, _, _ string) (report.Views, error) {
	f.filters.Add(1)
	return report.Views{Output: tablePath + ".filtered.csv", Report: tablePath + ".filtered.html"}, nil
}

func writeInputs(t *testing.T, dir, ext string, n int) []string {
	t.Helper()
	paths := make([]string, 0, n)
	for i := range n {
		p := filepath.Join(dir, fmt.Sprintf("in_%03d.%s", i, ext))
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.TempDir = t.TempDir()
	cfg.Workers.Concurrency = 4
	cfg.Workers.PollTimeoutMillis = 10
	cfg.Workers.PollIntervalMillis = 0
	return &cfg
}

func testOptions(t *testing.T, cfg *config.Config, input string, mode workunit.Mode, eng workunit.Engine) config.JobOptions {
	t.Helper()
	opts := config.NewJobOptions(cfg)
	opts.InputDir = input
	opts.OutputDir = filepath.Join(t.TempDir(), "out")
	opts.Mode = mode
	opts.Engine = eng
	if err := opts.Normalize(time.Now()); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return opts
}

func fileScorer(fail func(path string) error) engine.Func {
	return func(_ context.Context, unit workunit.WorkUnit) ([]workunit.ResultRecord, error) {
		if fail != nil {
			if err := fail(unit.File); err != nil {
				return nil, err
			}
		}
		return []workunit.ResultRecord{{Path: unit.File, Attributes: map[string]any{"quality": 50}}}, nil
	}
}

func run(t *testing.T, cfg *config.Config, opts config.JobOptions, deps job.Deps) *job.Summary {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	summary, err := job.New(cfg, opts, deps).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary
}

func readLog(t *testing.T, summary *job.Summary) *artifacts.SealedLog {
	t.Helper()
	if summary.AssessmentTask.Log == nil {
		t.Fatal("expected log artifact")
	}
	sealed, err := artifacts.ReadSealedLog(*summary.AssessmentTask.Log)
	if err != nil {
		t.Fatalf("ReadSealedLog: %v", err)
	}
	if sealed.Metadata.Log != len(sealed.Log) {
		t.Fatalf("metadata.log = %d, entries = %d", sealed.Metadata.Log, len(sealed.Log))
	}
	return sealed
}

func tableRows(t *testing.T, summary *job.Summary) ([]string, [][]string) {
	t.Helper()
	if summary.AssessmentTask.Output == nil {
		t.Fatal("expected output table")
	}
	header, rows, err := artifacts.ReadTable(*summary.AssessmentTask.Output)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	return header, rows
}

func TestPerFileJobHonoursLimit(t *testing.T) {
	input := t.TempDir()
	writeInputs(t, input, "png", 25)
	cfg := testConfig(t)
	opts := testOptions(t, cfg, input, workunit.ModeFace, workunit.EngineOBQE)
	opts.Limit = 10

	var scored atomic.Int32
	sink := &recordingSink{}
	var plan job.Plan
	summary := run(t, cfg, opts, job.Deps{
		Scorer: engine.Func(func(ctx context.Context, unit workunit.WorkUnit) ([]workunit.ResultRecord, error) {
			scored.Add(1)
			return fileScorer(nil)(ctx, unit)
		}),
		Progress: func(int, string) progress.Sink { return sink },
		Announce: func(p job.Plan) { plan = p },
	})

	if plan.Discovered != 25 || plan.Total != 10 {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if got := scored.Load(); got != 10 {
		t.Fatalf("scored %d units, want 10", got)
	}
	if summary.AssessmentTask.Processed != 10 || summary.AssessmentTask.Failed != 0 {
		t.Fatalf("unexpected counts %+v", summary.AssessmentTask)
	}
	_, rows := tableRows(t, summary)
	if len(rows) != 10 {
		t.Fatalf("table has %d rows, want 10", len(rows))
	}
	if sealed := readLog(t, summary); sealed.Metadata.Log > 10 || sealed.Metadata.Processed != 10 {
		t.Fatalf("unexpected log metadata %+v", sealed.Metadata)
	}
	sink.assertMonotonic(t, 10)
	if !strings.HasSuffix(summary.SystemThroughput, " it/s") {
		t.Fatalf("unexpected throughput %q", summary.SystemThroughput)
	}
}

func TestPerFileJobWindowedDrainWithManyUnits(t *testing.T) {
	input := t.TempDir()
	writeInputs(t, input, "jpg", 57)
	cfg := testConfig(t)
	cfg.Workers.Concurrency = 3
	opts := testOptions(t, cfg, input, workunit.ModeIris, workunit.EngineOBQE)

	sink := &recordingSink{}
	summary := run(t, cfg, opts, job.Deps{
		Scorer: engine.Func(func(ctx context.Context, unit workunit.WorkUnit) ([]workunit.ResultRecord, error) {
			time.Sleep(time.Millisecond)
			return fileScorer(nil)(ctx, unit)
		}),
		Progress: func(int, string) progress.Sink { return sink },
	})
	if summary.AssessmentTask.Processed != 57 {
		t.Fatalf("processed = %d", summary.AssessmentTask.Processed)
	}
	_, rows := tableRows(t, summary)
	if len(rows) != 57 {
		t.Fatalf("table has %d rows, want 57", len(rows))
	}
	sink.assertMonotonic(t, 57)
}

func TestPerFileJobTailJumpsToTotalBeforeFinalGet(t *testing.T) {
	input := t.TempDir()
	paths := writeInputs(t, input, "png", 24)
	held := map[string]bool{paths[21]: true, paths[22]: true, paths[23]: true}
	cfg := testConfig(t)
	cfg.Workers.Concurrency = 4
	opts := testOptions(t, cfg, input, workunit.ModeFace, workunit.EngineOBQE)

	release := make(chan struct{})
	sink := &recordingSink{}
	deps := job.Deps{
		Logger: logging.NewNop(),
		Scorer: engine.Func(func(ctx context.Context, unit workunit.WorkUnit) ([]workunit.ResultRecord, error) {
			if held[unit.File] {
				<-release
			}
			return fileScorer(nil)(ctx, unit)
		}),
		Progress: func(int, string) progress.Sink { return sink },
	}

	type result struct {
		summary *job.Summary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := job.New(cfg, opts, deps).Run(context.Background())
		done <- result{summary, err}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for sink.last() != 24 {
		if time.Now().After(deadline) {
			close(release)
			t.Fatalf("progress never reached total while tail was outstanding: %v", sink.snapshot())
		}
		time.Sleep(5 * time.Millisecond)
	}
	select {
	case <-done:
		t.Fatal("job finished while held units were still running")
	default:
	}

	close(release)
	res := <-done
	if res.err != nil {
		t.Fatalf("Run: %v", res.err)
	}
	if res.summary.AssessmentTask.Processed != 24 || res.summary.AssessmentTask.Failed != 0 {
		t.Fatalf("unexpected counts %+v", res.summary.AssessmentTask)
	}
	_, rows := tableRows(t, res.summary)
	if len(rows) != 24 {
		t.Fatalf("table has %d rows, want 24", len(rows))
	}
	sink.assertMonotonic(t, 24)
}

func TestPerFileJobRecordsSingleTaskError(t *testing.T) {
	input := t.TempDir()
	paths := writeInputs(t, input, "png", 5)
	bad := paths[2]
	cfg := testConfig(t)
	opts := testOptions(t, cfg, input, workunit.ModeFace, workunit.EngineBIQT)

	summary := run(t, cfg, opts, job.Deps{
		Scorer: fileScorer(func(path string) error {
			if path == bad {
				return errors.New("corrupt header")
			}
			return nil
		}),
	})

	if summary.AssessmentTask.Processed != 5 || summary.AssessmentTask.Failed != 1 {
		t.Fatalf("unexpected counts %+v", summary.AssessmentTask)
	}
	sealed := readLog(t, summary)
	if len(sealed.Log) != 1 {
		t.Fatalf("expected exactly one log entry, got %v", sealed.Log)
	}
	entry := sealed.Log[0]
	if entry[artifacts.KeyFile] != bad {
		t.Fatalf("entry tagged %v, want %s", entry[artifacts.KeyFile], bad)
	}
	if msg, _ := entry[artifacts.KeyTaskError].(string); !strings.Contains(msg, "corrupt header") {
		t.Fatalf("unexpected task error %q", msg)
	}
	if sealed.Metadata.Failed != 1 || sealed.Metadata.Engine != "biqt" || sealed.Metadata.Mode != "face" {
		t.Fatalf("unexpected metadata %+v", sealed.Metadata)
	}
	header, rows := tableRows(t, summary)
	if len(rows) != 4 {
		t.Fatalf("table has %d rows, want 4", len(rows))
	}
	fileCol := slices.Index(header, workunit.PathColumn)
	for _, row := range rows {
		if row[fileCol] == bad {
			t.Fatal("failed input must not appear in the table")
		}
	}
}

func TestEngineMarkerCountsAsFailure(t *testing.T) {
	input := t.TempDir()
	paths := writeInputs(t, input, "png", 3)
	cfg := testConfig(t)
	opts := testOptions(t, cfg, input, workunit.ModeFinger, workunit.EngineOBQE)

	summary := run(t, cfg, opts, job.Deps{
		Scorer: engine.Func(func(_ context.Context, unit workunit.WorkUnit) ([]workunit.ResultRecord, error) {
			rec := workunit.ResultRecord{Path: unit.File, Attributes: map[string]any{"nfiq2": 40}}
			if unit.File == paths[0] {
				rec.Log = []map[string]any{{"load image": "unsupported bit depth"}}
			}
			return []workunit.ResultRecord{rec}, nil
		}),
	})
	if summary.AssessmentTask.Failed != 1 {
		t.Fatalf("failed = %d, want 1", summary.AssessmentTask.Failed)
	}
	sealed := readLog(t, summary)
	if len(sealed.Log) != 1 || sealed.Log[0][artifacts.KeyFile] != paths[0] {
		t.Fatalf("expected marker entry tagged with input, got %v", sealed.Log)
	}
}

func TestAllUnitsFailNullsTableAndReport(t *testing.T) {
	input := t.TempDir()
	writeInputs(t, input, "png", 4)
	cfg := testConfig(t)
	opts := testOptions(t, cfg, input, workunit.ModeFace, workunit.EngineOBQE)
	opts.Report = true
	collab := &fakeCollaborator{}

	summary := run(t, cfg, opts, job.Deps{
		Scorer:       fileScorer(func(string) error { return errors.New("engine offline") }),
		Collaborator: collab,
	})
	task := summary.AssessmentTask
	if task.Failed != task.Processed || task.Processed != 4 {
		t.Fatalf("expected failed == processed == 4, got %+v", task)
	}
	if task.Output != nil || task.Report != nil {
		t.Fatalf("expected null table and report, got %+v", task)
	}
	if collab.reports.Load() != 0 {
		t.Fatal("report must not be generated without a table")
	}
	matches, _ := filepath.Glob(filepath.Join(opts.OutputDir, "output_*"))
	if len(matches) != 0 {
		t.Fatalf("expected no table files, found %v", matches)
	}
	readLog(t, summary)
}

func TestCollaboratorFailuresOnlyWarn(t *testing.T) {
	input := t.TempDir()
	writeInputs(t, input, "png", 3)
	cfg := testConfig(t)
	opts := testOptions(t, cfg, input, workunit.ModeFace, workunit.EngineOBQE)
	opts.Report = true
	opts.Filter = config.FilterOptions{Query: "quality > 10"}
	collab := &fakeCollaborator{reportErr: errors.New("template missing")}

	summary := run(t, cfg, opts, job.Deps{Scorer: fileScorer(nil), Collaborator: collab})
	if summary.AssessmentTask.Report != nil {
		t.Fatalf("expected null report after failure, got %+v", summary.AssessmentTask.Report)
	}
	if summary.OutlierFilter == nil || !strings.HasSuffix(summary.OutlierFilter.Output, ".filtered.csv") {
		t.Fatalf("expected filter result, got %+v", summary.OutlierFilter)
	}
	if summary.AssessmentTask.Output == nil {
		t.Fatal("table must survive a report failure")
	}
}

func TestSpeechJobUsesBatchesAndCleansUp(t *testing.T) {
	input := t.TempDir()
	paths := writeInputs(t, input, "wav", 47)
	cfg := testConfig(t)
	opts := testOptions(t, cfg, input, workunit.ModeSpeech, workunit.EngineOBQE)
	opts.BatchSize = 30

	var (
		mu       sync.Mutex
		sizes    []int
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	scorer := engine.Func(func(_ context.Context, unit workunit.WorkUnit) ([]workunit.ResultRecord, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > peak.Load() {
			peak.Store(n)
		}
		entries, err := os.ReadDir(unit.Folder)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		sizes = append(sizes, len(entries))
		mu.Unlock()
		records := make([]workunit.ResultRecord, 0, len(entries))
		for _, e := range entries {
			records = append(records, workunit.ResultRecord{
				Path:       filepath.Join(unit.Folder, e.Name()),
				Attributes: map[string]any{"snr": 20},
			})
		}
		return records, nil
	})

	sink := &recordingSink{}
	summary := run(t, cfg, opts, job.Deps{
		Scorer:   scorer,
		Progress: func(int, string) progress.Sink { return sink },
	})

	if !slices.Equal(sizes, []int{30, 17}) {
		t.Fatalf("batch sizes = %v, want [30 17]", sizes)
	}
	if peak.Load() != 1 {
		t.Fatalf("expected one batch in flight, saw %d", peak.Load())
	}
	if summary.AssessmentTask.Processed != 47 || summary.AssessmentTask.Failed != 0 {
		t.Fatalf("unexpected counts %+v", summary.AssessmentTask)
	}
	sink.assertMonotonic(t, 47)

	leftovers, err := os.ReadDir(cfg.Paths.TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("expected scratch folders removed, found %d entries", len(leftovers))
	}

	header, rows := tableRows(t, summary)
	if len(rows) != 47 {
		t.Fatalf("table has %d rows, want 47", len(rows))
	}
	fileCol := slices.Index(header, workunit.PathColumn)
	for _, row := range rows {
		if !slices.Contains(paths, row[fileCol]) {
			t.Fatalf("row references %q instead of an original input", row[fileCol])
		}
	}
}

func TestBatchTaskErrorCountsEveryInput(t *testing.T) {
	input := t.TempDir()
	writeInputs(t, input, "png", 12)
	cfg := testConfig(t)
	opts := testOptions(t, cfg, input, workunit.ModeFace, workunit.EngineFusion)
	opts.BatchSize = 5

	var calls atomic.Int32
	summary := run(t, cfg, opts, job.Deps{
		Scorer: engine.Func(func(_ context.Context, unit workunit.WorkUnit) ([]workunit.ResultRecord, error) {
			if unit.FusionCode != workunit.DefaultFusionCode {
				return nil, fmt.Errorf("unexpected fusion code %d", unit.FusionCode)
			}
			if calls.Add(1) == 1 {
				return nil, errors.New("out of memory")
			}
			entries, _ := os.ReadDir(unit.Folder)
			records := make([]workunit.ResultRecord, 0, len(entries))
			for _, e := range entries {
				records = append(records, workunit.ResultRecord{Path: e.Name(), Attributes: map[string]any{"unified": 1}})
			}
			return records, nil
		}),
	})
	if summary.AssessmentTask.Processed != 12 || summary.AssessmentTask.Failed != 5 {
		t.Fatalf("unexpected counts %+v", summary.AssessmentTask)
	}
	sealed := readLog(t, summary)
	if sealed.Metadata.Fusion != workunit.DefaultFusionCode {
		t.Fatalf("expected fusion code in metadata, got %+v", sealed.Metadata)
	}
	_, rows := tableRows(t, summary)
	if len(rows) != 7 {
		t.Fatalf("table has %d rows, want 7", len(rows))
	}
}

func TestPrefixReconstructsTablePaths(t *testing.T) {
	input := t.TempDir()
	paths := writeInputs(t, input, "png", 2)
	cfg := testConfig(t)
	opts := testOptions(t, cfg, input, workunit.ModeFace, workunit.EngineOBQE)
	opts.Prefix = "/mnt/share"

	summary := run(t, cfg, opts, job.Deps{Scorer: fileScorer(nil)})
	header, rows := tableRows(t, summary)
	fileCol := slices.Index(header, workunit.PathColumn)
	for _, row := range rows {
		if !strings.HasPrefix(row[fileCol], "/mnt/share/") {
			t.Fatalf("expected prefixed path, got %q", row[fileCol])
		}
		if !slices.Contains(paths, strings.TrimPrefix(row[fileCol], "/mnt/share")) {
			t.Fatalf("unexpected path %q", row[fileCol])
		}
	}
}

func TestNoInputAbortsWithoutArtifacts(t *testing.T) {
	input := t.TempDir()
	writeInputs(t, input, "txt", 3)
	cfg := testConfig(t)
	opts := testOptions(t, cfg, input, workunit.ModeFace, workunit.EngineOBQE)

	_, err := job.New(cfg, opts, job.Deps{Scorer: fileScorer(nil), Logger: logging.NewNop()}).Run(context.Background())
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if _, statErr := os.Stat(opts.OutputDir); !os.IsNotExist(statErr) {
		t.Fatalf("output directory must not be created, stat err = %v", statErr)
	}
}

func TestOutputDirectoryLockRejectsConcurrentJob(t *testing.T) {
	input := t.TempDir()
	writeInputs(t, input, "png", 1)
	cfg := testConfig(t)
	opts := testOptions(t, cfg, input, workunit.ModeFace, workunit.EngineOBQE)
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(opts.OutputDir, ".openbq.lock"))
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("hold lock: %v %v", ok, err)
	}
	defer held.Unlock()

	_, err := job.New(cfg, opts, job.Deps{Scorer: fileScorer(nil), Logger: logging.NewNop()}).Run(context.Background())
	if !errors.Is(err, services.ErrInput) || !strings.Contains(err.Error(), "another job") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestArtifactNamesAndFormatting(t *testing.T) {
	at := time.Date(2026, 3, 7, 9, 5, 2, 0, time.UTC)
	names := job.NewArtifactNames("/out", workunit.ModeSpeech, workunit.EngineOBQE, at)
	if names.Table != "/out/output_speech_obqe_7-3-2026_9-5-2.csv" {
		t.Fatalf("table name = %s", names.Table)
	}
	if names.Log != "/out/log_speech_obqe_7-3-2026_9-5-2.json" {
		t.Fatalf("log name = %s", names.Log)
	}
	if got := job.FormatElapsed(3723 * time.Second); got != "1h2m3s" {
		t.Fatalf("FormatElapsed = %s", got)
	}
	if got := job.FormatThroughput(job.Throughput(10, 4*time.Second)); got != "2.50 it/s" {
		t.Fatalf("throughput = %s", got)
	}
	if job.Throughput(5, 0) != 0 {
		t.Fatal("zero duration must yield zero throughput")
	}
}
