package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/canon/internal/core/catalog"
	"github.com/agenthands/canon/internal/core/common"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/core/normalize"
	"github.com/agenthands/canon/internal/core/review"
	"github.com/agenthands/canon/internal/errs"
	"github.com/agenthands/canon/internal/logger"
)

type eventLog struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (l *eventLog) Emit(ev model.ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) phases() []model.Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Phase
	for _, ev := range l.events {
		out = append(out, ev.Phase)
	}
	return out
}

func testOptions() normalize.Options {
	return normalize.Options{
		MaxIterations:          5,
		Window:                 1,
		Threshold:              1,
		MaxConsecutiveFailures: 2,
		Retry:                  common.RetryPolicy{MaxAttempts: 1, MinBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}
}

func bigDataCatalog() catalog.Catalog {
	return catalog.NewMemory([]model.Concept{
		{Name: "Big Data", Definition: "large datasets"},
		{Name: "big data", Definition: "very large datasets"},
		{Name: "Spark", Definition: "engine"},
	})
}

func bigDataOracle() *ScriptedOracle {
	return &ScriptedOracle{Merges: [][]model.MergeProposal{
		{{A: "Big Data", B: "big data", Canonical: "big data"}},
	}}
}

func TestRunSyncDirectApplies(t *testing.T) {
	applier := &RecordingApplier{}
	events := &eventLog{}
	c := NewCanon(bigDataCatalog(), bigDataOracle(), applier, nil, events, logger.Nop(), testOptions())

	info, err := c.RunSync(context.Background(), ModeDirect)
	require.NoError(t, err)

	assert.Equal(t, model.StatusConverged, info.Status)
	assert.True(t, info.Finished())
	require.NotNil(t, info.Apply)
	require.Len(t, applier.Plans, 1)
	assert.Equal(t, []model.MergeGroup{
		{Canonical: "big data", Members: []string{"Big Data", "big data"}},
	}, applier.Plans[0].Groups)

	phases := events.phases()
	require.GreaterOrEqual(t, len(phases), 3)
	assert.Equal(t, model.PhaseApply, phases[len(phases)-2])
	assert.Equal(t, model.PhaseDone, phases[len(phases)-1])
}

func TestRunSyncReviewDefersApply(t *testing.T) {
	store, err := review.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()

	applier := &RecordingApplier{}
	reviews := review.NewService(store, applier, func() string { return "review-1" }, logger.Nop())
	c := NewCanon(bigDataCatalog(), bigDataOracle(), applier, reviews, nil, logger.Nop(), testOptions())

	info, err := c.RunSync(context.Background(), ModeReview)
	require.NoError(t, err)

	assert.Equal(t, "review-1", info.ReviewID)
	assert.Nil(t, info.Apply)
	assert.Empty(t, applier.Plans)

	rev, err := reviews.Get(context.Background(), "review-1")
	require.NoError(t, err)
	assert.Equal(t, info.ID, rev.RunID)
	require.Len(t, rev.Items, 1)
	assert.Equal(t, "merge:big data", rev.Items[0].Key)
}

func TestStartCancel(t *testing.T) {
	orc := bigDataOracle()
	orc.Block = make(chan struct{})
	applier := &RecordingApplier{}
	events := &eventLog{}
	c := NewCanon(bigDataCatalog(), orc, applier, nil, events, logger.Nop(), testOptions())

	info, err := c.Start(ModeDirect)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, info.Status)

	require.NoError(t, c.Cancel(info.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := c.Wait(ctx, info.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCancelled, final.Status)
	assert.Nil(t, final.Apply)
	assert.Empty(t, applier.Plans)
	phases := events.phases()
	assert.Equal(t, model.PhaseDone, phases[len(phases)-1])

	require.NoError(t, c.Shutdown(ctx))
}

func TestRunLookupErrors(t *testing.T) {
	c := NewCanon(bigDataCatalog(), bigDataOracle(), &RecordingApplier{}, nil, nil, logger.Nop(), testOptions())

	_, err := c.Get("missing")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.True(t, errors.Is(c.Cancel("missing"), errs.ErrNotFound))

	_, err = c.Start(ModeReview)
	assert.True(t, errors.Is(err, errs.ErrInvalidRequest))
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("")
	assert.True(t, ok)
	assert.Equal(t, ModeDirect, m)

	m, ok = ParseMode("review")
	assert.True(t, ok)
	assert.Equal(t, ModeReview, m)

	_, ok = ParseMode("yolo")
	assert.False(t, ok)
}
