package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"openbq/internal/services"
	"openbq/internal/workunit"
)

// FilterOptions describes the optional post-job query over the output table.
type FilterOptions struct {
	Columns []string
	Query   string
	Sort    string
}

// Requested reports whether any filter option was supplied.
func (f FilterOptions) Requested() bool {
	return len(f.Columns) > 0 || strings.TrimSpace(f.Query) != "" || strings.TrimSpace(f.Sort) != ""
}

// JobOptions is the validated description of one assessment job.
type JobOptions struct {
	InputDir   string
	OutputDir  string
	Pattern    string
	Types      []string
	Limit      int
	Mode       workunit.Mode
	Engine     workunit.Engine
	FusionCode int
	Conversion workunit.Conversion
	BatchSize  int
	Report     bool
	CWD        string
	Prefix     string
	Filter     FilterOptions
}

// NewJobOptions seeds job options from configuration defaults.
func NewJobOptions(cfg *Config) JobOptions {
	opts := JobOptions{
		Pattern:    "*",
		FusionCode: workunit.DefaultFusionCode,
		Mode:       workunit.ModeFace,
		Engine:     workunit.EngineOBQE,
	}
	if cfg != nil {
		opts.OutputDir = cfg.Paths.OutputDir
		opts.BatchSize = cfg.Workers.BatchSize
		opts.Report = cfg.Report.Enabled
		opts.CWD = cfg.Report.CWD
		opts.Prefix = cfg.Report.Prefix
	}
	return opts
}

// Normalize fills derived defaults: mode-specific input types, the
// timestamped output folder and absolute paths. now stamps the default
// output folder name.
func (o *JobOptions) Normalize(now time.Time) error {
	o.InputDir = strings.TrimSpace(o.InputDir)
	if o.InputDir != "" {
		abs, err := filepath.Abs(o.InputDir)
		if err != nil {
			return services.Wrap(services.ErrInput, "config", "normalize", "resolve input directory", err)
		}
		o.InputDir = abs
	}
	if strings.TrimSpace(o.Pattern) == "" {
		o.Pattern = "*"
	}
	// Unknown names are left as given so Validate can report them.
	if mode, err := workunit.ParseMode(string(o.Mode)); err == nil {
		o.Mode = mode
	}
	if engine, err := workunit.ParseEngine(string(o.Engine)); err == nil {
		o.Engine = engine
	}
	if o.Mode == workunit.ModeSpeech {
		o.Types = []string{"wav"}
	} else {
		o.Types = normalizeTypes(o.Types)
		if len(o.Types) == 0 {
			o.Types = o.Mode.DefaultTypes()
		}
	}
	if o.Engine == workunit.EngineFusion && o.FusionCode == 0 {
		o.FusionCode = workunit.DefaultFusionCode
	}
	o.Conversion.Source = normalizeTypes(o.Conversion.Source)
	o.Conversion.Target = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(o.Conversion.Target), "."))
	if strings.TrimSpace(o.OutputDir) == "" && o.InputDir != "" {
		o.OutputDir = filepath.Join(o.InputDir, strconv.FormatInt(now.Unix(), 10))
	}
	if o.OutputDir != "" {
		expanded, err := expandPath(o.OutputDir)
		if err != nil {
			return services.Wrap(services.ErrInput, "config", "normalize", "resolve output directory", err)
		}
		o.OutputDir = expanded
	}
	o.CWD = strings.TrimSpace(o.CWD)
	o.Prefix = strings.TrimSpace(o.Prefix)
	return nil
}

// Validate rejects unknown or contradictory combinations before dispatch.
func (o JobOptions) Validate() error {
	wrap := func(format string, args ...any) error {
		return services.Wrap(services.ErrConfiguration, "config", "validate job", fmt.Sprintf(format, args...), nil)
	}
	if _, err := workunit.ParseMode(string(o.Mode)); err != nil {
		return wrap("%v", err)
	}
	if _, err := workunit.ParseEngine(string(o.Engine)); err != nil {
		return wrap("%v", err)
	}
	if o.Mode != workunit.ModeFace && o.Engine != workunit.EngineOBQE {
		return wrap("engine %s only supports face mode", o.Engine)
	}
	if o.Engine == workunit.EngineFusion && !workunit.ValidFusionCode(o.FusionCode) {
		return wrap("fusion code %d not in %v", o.FusionCode, workunit.FusionCodes())
	}
	if !o.Conversion.Empty() && o.Mode != workunit.ModeFinger {
		return wrap("conversion hints only apply to finger mode")
	}
	if o.BatchSize <= 0 {
		return wrap("batch size must be positive, got %d", o.BatchSize)
	}
	if o.Limit < 0 {
		return wrap("limit must not be negative, got %d", o.Limit)
	}
	if len(o.Types) == 0 {
		return wrap("no input types selected")
	}
	if strings.TrimSpace(o.Filter.Sort) != "" && strings.TrimSpace(o.Filter.Query) == "" && len(o.Filter.Columns) == 0 {
		return wrap("filter sort needs a query or column selection")
	}
	return o.validateInput()
}

func (o JobOptions) validateInput() error {
	if o.InputDir == "" {
		return services.Wrap(services.ErrInput, "config", "validate job", "input directory not set", nil)
	}
	info, err := os.Stat(o.InputDir)
	if err != nil {
		return services.Wrap(services.ErrInput, "config", "validate job", "input directory not accessible", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrInput, "config", "validate job", o.InputDir+" is not a directory", nil)
	}
	return nil
}

// BatchOriented reports whether the job uses the per-batch dispatch policy.
func (o JobOptions) BatchOriented() bool {
	return workunit.BatchOriented(o.Mode, o.Engine)
}

// Unit builds the descriptor for one file or batch folder.
func (o JobOptions) Unit(target string, inputs int) workunit.WorkUnit {
	unit := workunit.WorkUnit{
		Inputs:     inputs,
		Mode:       o.Mode,
		Engine:     o.Engine,
		Conversion: o.Conversion,
	}
	if o.Engine == workunit.EngineFusion {
		unit.FusionCode = o.FusionCode
	}
	if o.BatchOriented() {
		unit.Folder = target
	} else {
		unit.File = target
	}
	return unit
}

func normalizeTypes(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for part := range strings.SplitSeq(value, ",") {
			part = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "."))
			if part == "" || slices.Contains(out, part) {
				continue
			}
			out = append(out, part)
		}
	}
	return out
}
