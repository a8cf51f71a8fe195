package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"openbq/internal/services"
	"openbq/internal/workunit"
)

// Scorer scores one work unit. Implementations must be safe for concurrent use.
type Scorer interface {
	Score(ctx context.Context, unit workunit.WorkUnit) ([]workunit.ResultRecord, error)
}

// Func adapts a function to Scorer.
type Func func(ctx context.Context, unit workunit.WorkUnit) ([]workunit.ResultRecord, error)

// Score calls f.
func (f Func) Score(ctx context.Context, unit workunit.WorkUnit) ([]workunit.ResultRecord, error) {
	return f(ctx, unit)
}

// ErrNoRecords is returned when an engine succeeds without producing records.
var ErrNoRecords = errors.New("engine returned no records")

// Run scores unit and folds every failure into the outcome.
func Run(ctx context.Context, scorer Scorer, unit workunit.WorkUnit) (outcome workunit.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			outcome = workunit.Failure(unit, services.Wrap(services.ErrTask, "engine", "score", unit.Target(), err))
		}
	}()
	if err := unit.Validate(); err != nil {
		return workunit.Failure(unit, services.Wrap(services.ErrTask, "engine", "validate unit", unit.Target(), err))
	}
	records, err := scorer.Score(ctx, unit)
	if err != nil {
		return workunit.Failure(unit, services.Wrap(services.ErrTask, "engine", "score", unit.Target(), err))
	}
	if len(records) == 0 {
		return workunit.Failure(unit, services.Wrap(services.ErrTask, "engine", "score", unit.Target(), ErrNoRecords))
	}
	return workunit.Success(unit, records)
}

// Bind returns a pool-compatible function scoring with scorer.
func Bind(scorer Scorer) func(ctx context.Context, unit workunit.WorkUnit) workunit.Outcome {
	return func(ctx context.Context, unit workunit.WorkUnit) workunit.Outcome {
		return Run(ctx, scorer, unit)
	}
}
