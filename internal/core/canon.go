// Package core wires the normalization engine, the applier and the review
// gate into runs that can be started, watched and cancelled.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/agenthands/canon/internal/core/catalog"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/core/normalize"
	"github.com/agenthands/canon/internal/core/oracle"
	"github.com/agenthands/canon/internal/core/progress"
	"github.com/agenthands/canon/internal/core/review"
	"github.com/agenthands/canon/internal/driver"
	"github.com/agenthands/canon/internal/errs"
	"github.com/agenthands/canon/internal/logger"
)

// Mode selects what happens to a finished run's plan.
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeReview Mode = "review"
)

func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModeDirect, ModeReview:
		return m, true
	case "":
		return ModeDirect, true
	}
	return "", false
}

type RunInfo struct {
	ID         string             `json:"id"`
	Mode       Mode               `json:"mode"`
	Status     model.RunStatus    `json:"status"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Result     *model.RunResult   `json:"result,omitempty"`
	Apply      *model.ApplyReport `json:"apply,omitempty"`
	ReviewID   string             `json:"review_id,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func (r RunInfo) Finished() bool {
	return r.FinishedAt != nil
}

type run struct {
	info   RunInfo
	cancel context.CancelFunc
	done   chan struct{}
}

type Canon struct {
	Driver  driver.GraphDriver
	Catalog catalog.Catalog
	Oracle  oracle.Oracle
	Applier review.Applier
	Reviews *review.Service
	Sink    progress.Sink
	Log     *logger.Logger
	Options normalize.Options
	NewID   func() string

	mu   sync.RWMutex
	runs map[string]*run
	wg   sync.WaitGroup
}

func NewCanon(cat catalog.Catalog, orc oracle.Oracle, applier review.Applier, reviews *review.Service, sink progress.Sink, log *logger.Logger, opts normalize.Options) *Canon {
	if sink == nil {
		sink = progress.Discard{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Canon{
		Catalog: cat,
		Oracle:  orc,
		Applier: applier,
		Reviews: reviews,
		Sink:    sink,
		Log:     log,
		Options: opts,
		NewID:   func() string { return uuid.New().String() },
		runs:    make(map[string]*run),
	}
}

func (c *Canon) BuildIndices(ctx context.Context) error {
	if c.Driver == nil {
		return nil
	}
	return c.Driver.BuildIndices(ctx)
}

func (c *Canon) register(mode Mode) (*run, error) {
	if mode == ModeReview && c.Reviews == nil {
		return nil, errs.InvalidRequestf("review mode is not configured")
	}
	r := &run{
		info: RunInfo{
			ID:        c.NewID(),
			Mode:      mode,
			Status:    model.StatusRunning,
			StartedAt: time.Now().UTC(),
		},
		done: make(chan struct{}),
	}
	c.mu.Lock()
	c.runs[r.info.ID] = r
	c.mu.Unlock()
	return r, nil
}

// Start launches a run in the background and returns immediately.
func (c *Canon) Start(mode Mode) (RunInfo, error) {
	r, err := c.register(mode)
	if err != nil {
		return RunInfo{}, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	r.cancel = cancel
	info := r.info
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.execute(ctx, r)
	}()
	return info, nil
}

// RunSync runs to completion on the caller's goroutine.
func (c *Canon) RunSync(ctx context.Context, mode Mode) (RunInfo, error) {
	r, err := c.register(mode)
	if err != nil {
		return RunInfo{}, err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	r.cancel = cancel
	c.mu.Unlock()

	c.execute(ctx, r)
	return c.Get(r.info.ID)
}

func (c *Canon) Get(id string) (RunInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.runs[id]
	if !ok {
		return RunInfo{}, errs.NotFoundf("run %s", id)
	}
	return r.info, nil
}

// Cancel asks a run to stop at its next iteration boundary. Cancelling a
// finished run is a no-op.
func (c *Canon) Cancel(id string) error {
	c.mu.RLock()
	r, ok := c.runs[id]
	var cancel context.CancelFunc
	if ok {
		cancel = r.cancel
	}
	c.mu.RUnlock()
	if !ok {
		return errs.NotFoundf("run %s", id)
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// Wait blocks until the run finishes or ctx ends.
func (c *Canon) Wait(ctx context.Context, id string) (RunInfo, error) {
	c.mu.RLock()
	r, ok := c.runs[id]
	c.mu.RUnlock()
	if !ok {
		return RunInfo{}, errs.NotFoundf("run %s", id)
	}
	select {
	case <-r.done:
		return c.Get(id)
	case <-ctx.Done():
		return RunInfo{}, ctx.Err()
	}
}

// Shutdown cancels every run and waits for them to exit.
func (c *Canon) Shutdown(ctx context.Context) error {
	c.mu.RLock()
	for _, r := range c.runs {
		if r.cancel != nil {
			r.cancel()
		}
	}
	c.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Canon) execute(ctx context.Context, r *run) {
	log := c.Log.With("run_id", r.info.ID, "mode", r.info.Mode)
	defer close(r.done)

	// The engine's done event is held back until the plan has been applied
	// or sent to review.
	var final *model.ProgressEvent
	sink := progress.Func(func(ev model.ProgressEvent) {
		if ev.Phase == model.PhaseDone {
			final = &ev
			return
		}
		c.Sink.Emit(ev)
	})

	engine := normalize.NewEngine(c.Catalog, c.Oracle, sink, log, c.Options)
	result, _, err := engine.Run(ctx, r.info.ID)

	info := RunInfo{Result: result}
	if err != nil {
		info.Status = model.StatusFailed
		info.Error = err.Error()
	} else {
		info.Status = result.Status
		info.Error = result.Reason
		if result.Status == model.StatusConverged || result.Status == model.StatusCapped {
			c.handlePlan(ctx, r, result, &info, log)
		}
	}

	now := time.Now().UTC()
	c.mu.Lock()
	r.info.Status = info.Status
	r.info.Result = info.Result
	r.info.Apply = info.Apply
	r.info.ReviewID = info.ReviewID
	r.info.Error = info.Error
	r.info.FinishedAt = &now
	c.mu.Unlock()

	if final == nil {
		final = &model.ProgressEvent{RunID: r.info.ID, Phase: model.PhaseDone}
	}
	final.Status = info.Status
	final.Error = info.Error
	final.At = now
	c.Sink.Emit(*final)
}

func (c *Canon) handlePlan(ctx context.Context, r *run, result *model.RunResult, info *RunInfo, log *logger.Logger) {
	plan := result.Plan
	if len(plan.Groups) == 0 && len(plan.Relationships) == 0 {
		log.Info("run produced an empty plan; nothing to apply")
		return
	}

	switch r.info.Mode {
	case ModeReview:
		rev, err := c.Reviews.Create(ctx, r.info.ID, plan)
		if err != nil {
			info.Error = errors.Wrap(err, "create review").Error()
			return
		}
		info.ReviewID = rev.ID
	default:
		c.Sink.Emit(model.ProgressEvent{
			RunID:     r.info.ID,
			Iteration: result.Iterations,
			Phase:     model.PhaseApply,
			Totals:    result.Totals,
			Status:    model.StatusRunning,
			At:        time.Now().UTC(),
		})
		report := c.Applier.Apply(ctx, plan)
		info.Apply = &report
		if !report.Complete() {
			info.Error = "plan partially applied"
			log.Warn("plan partially applied", "failed_groups", report.FailedGroups, "failed_relationships", report.FailedRelationships)
		}
	}
}
