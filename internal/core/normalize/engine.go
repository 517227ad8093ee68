package normalize

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/agenthands/canon/internal/config"
	"github.com/agenthands/canon/internal/core/catalog"
	"github.com/agenthands/canon/internal/core/common"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/core/oracle"
	"github.com/agenthands/canon/internal/core/progress"
	"github.com/agenthands/canon/internal/logger"
)

type Options struct {
	MaxIterations          int
	Window                 int
	Threshold              int
	MaxConsecutiveFailures int
	Retry                  common.RetryPolicy
}

func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Normalization)
}

func OptionsFromConfig(cfg config.NormalizationConfig) Options {
	return Options{
		MaxIterations:          cfg.MaxIterations,
		Window:                 cfg.Window,
		Threshold:              cfg.Threshold,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		Retry: common.RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			MinBackoff:  cfg.MinBackoff(),
			MaxBackoff:  cfg.MaxBackoff(),
		},
	}
}

// Engine drives the loop: per iteration, generate then validate for every
// active task, record new acceptances, and stop on convergence of both
// tasks, the iteration cap, cancellation, or repeated oracle failure.
type Engine struct {
	Catalog catalog.Catalog
	Sink    progress.Sink
	Log     *logger.Logger
	Options Options

	generator *Generator
	validator *Validator
	now       func() time.Time
}

func NewEngine(cat catalog.Catalog, orc oracle.Oracle, sink progress.Sink, log *logger.Logger, opts Options) *Engine {
	if sink == nil {
		sink = progress.Discard{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}
	if opts.MaxConsecutiveFailures <= 0 {
		opts.MaxConsecutiveFailures = DefaultOptions().MaxConsecutiveFailures
	}
	log = log.With("component", "NormalizeEngine")
	return &Engine{
		Catalog:   cat,
		Sink:      sink,
		Log:       log,
		Options:   opts,
		generator: &Generator{Oracle: orc, Retry: opts.Retry, Log: log},
		validator: &Validator{Oracle: orc, Catalog: cat, Retry: opts.Retry, Log: log},
		now:       time.Now,
	}
}

// Run normalizes the catalog. The error is non-nil only when the run could
// not start; a run that starts always yields a result, whose status says
// how it ended.
func (e *Engine) Run(ctx context.Context, runID string) (*model.RunResult, *State, error) {
	concepts, err := e.Catalog.GetAllConcepts(ctx)
	if err != nil {
		err = errors.Wrap(err, "load catalog")
		e.emitDone(runID, 0, model.Totals{}, nil, model.StatusFailed, err.Error())
		return nil, nil, err
	}
	if len(concepts) == 0 {
		e.emitDone(runID, 0, model.Totals{}, nil, model.StatusFailed, ErrEmptyCatalog.Error())
		return nil, nil, ErrEmptyCatalog
	}

	state := NewState(runID, concepts, e.Options.Window, e.Options.Threshold)
	e.Log.Info("normalization run started", "run_id", runID, "concepts", len(concepts))

	var (
		status      model.RunStatus
		reason      string
		failedIters int
	)
	for status == "" {
		switch {
		case ctx.Err() != nil:
			status, reason = model.StatusCancelled, ctx.Err().Error()
			continue
		case state.Tracker.AllConverged():
			status = model.StatusConverged
			continue
		case state.Iteration >= e.Options.MaxIterations:
			status = model.StatusCapped
			reason = fmt.Sprintf("reached iteration cap of %d", e.Options.MaxIterations)
			continue
		}

		active, failed := e.iterate(ctx, state)
		if len(failed) > 0 && len(failed) == active {
			failedIters++
		} else {
			failedIters = 0
		}
		if failedIters >= e.Options.MaxConsecutiveFailures && ctx.Err() == nil {
			status = model.StatusFailed
			reason = fmt.Sprintf("every active task failed for %d consecutive iterations: %v", failedIters, lastError(failed))
		}
	}

	state.Lock()
	result := &model.RunResult{
		RunID:      runID,
		Status:     status,
		Reason:     reason,
		Iterations: state.Iteration,
		Totals:     state.Totals(),
		Plan:       state.Plan(),
	}
	converged := state.Tracker.ConvergedTasks()
	state.Unlock()

	e.Log.Info("normalization run finished",
		"run_id", runID,
		"status", status,
		"iterations", result.Iterations,
		"merge_groups", result.Totals.MergeGroups,
		"relationships", result.Totals.Relationships,
	)
	e.emitDone(runID, result.Iterations, result.Totals, converged, status, reason)
	return result, state, nil
}

// iterate runs one iteration with the state locked and returns the number
// of tasks that were active and the errors of those that failed.
func (e *Engine) iterate(ctx context.Context, state *State) (int, map[model.Task]error) {
	state.Lock()
	defer state.Unlock()

	state.Iteration++
	active := state.Tracker.Active()
	failed := map[model.Task]error{}
	batches := map[model.Task]model.Batch{}

	generated := map[model.Task]int{}
	for _, task := range active {
		b, err := e.generator.Generate(ctx, task, state)
		if err != nil {
			e.Log.Warn("generation failed", "run_id", state.RunID, "iteration", state.Iteration, "task", task, "error", err)
			failed[task] = err
			continue
		}
		state.AddFiltered(b.Filtered)
		batches[task] = b
		generated[task] = b.Len()
	}
	e.emit(state, model.PhaseGeneration, generated, failed)

	accepted := map[model.Task]int{}
	for _, task := range active {
		b, ok := batches[task]
		if !ok {
			continue
		}
		verdict, err := e.validator.Validate(ctx, b, state)
		if err != nil {
			e.Log.Warn("validation failed", "run_id", state.RunID, "iteration", state.Iteration, "task", task, "error", err)
			failed[task] = err
			continue
		}
		n := state.Accept(verdict.Accepted)
		accepted[task] = n
		if state.Tracker.Record(task, n) {
			e.Log.Info("task converged", "run_id", state.RunID, "iteration", state.Iteration, "task", task)
		}
		e.Log.Debug("validated batch",
			"run_id", state.RunID,
			"task", task,
			"accepted", n,
			"rejected", len(verdict.Rejected),
			"remembered", verdict.Remembered,
		)
	}
	e.emit(state, model.PhaseValidation, accepted, failed)

	return len(active), failed
}

func (e *Engine) emit(state *State, phase model.Phase, deltas map[model.Task]int, failed map[model.Task]error) {
	ev := model.ProgressEvent{
		RunID:          state.RunID,
		Iteration:      state.Iteration,
		Phase:          phase,
		TaskDeltas:     deltas,
		Totals:         state.Totals(),
		ConvergedTasks: state.Tracker.ConvergedTasks(),
		Status:         model.StatusRunning,
		At:             e.now(),
	}
	for _, task := range model.Tasks {
		if err, ok := failed[task]; ok {
			ev.FailedTasks = append(ev.FailedTasks, task)
			ev.Error = err.Error()
		}
	}
	e.Sink.Emit(ev)
}

func (e *Engine) emitDone(runID string, iteration int, totals model.Totals, converged []model.Task, status model.RunStatus, reason string) {
	e.Sink.Emit(model.ProgressEvent{
		RunID:          runID,
		Iteration:      iteration,
		Phase:          model.PhaseDone,
		Totals:         totals,
		ConvergedTasks: converged,
		Status:         status,
		Error:          reason,
		At:             e.now(),
	})
}

func lastError(failed map[model.Task]error) error {
	var last error
	for _, task := range model.Tasks {
		if err, ok := failed[task]; ok {
			last = err
		}
	}
	return last
}
