// Package normalize runs the iterative generate/validate loop that turns a
// concept catalog into merge groups and typed relationships.
package normalize

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/agenthands/canon/internal/core/common"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/core/oracle"
	"github.com/agenthands/canon/internal/logger"
)

var (
	ErrEmptyCatalog = errors.New("normalize: empty concept catalog")
	// ErrTaskFailed marks a task whose oracle call failed after retries.
	// The iteration continues with the other task.
	ErrTaskFailed = errors.New("normalize: task failed")
)

type Generator struct {
	Oracle oracle.Oracle
	Retry  common.RetryPolicy
	Log    *logger.Logger
}

// Generate asks the oracle for one task's candidates and drops every
// proposal that references a name outside the catalog or pairs a name with
// itself. The result only contains catalog names (merge canonicals aside).
func (g *Generator) Generate(ctx context.Context, task model.Task, state *State) (model.Batch, error) {
	if len(state.Concepts) == 0 {
		return model.Batch{}, ErrEmptyCatalog
	}
	avoid := state.Memory[task].Items()
	onRetry := func(err error, wait time.Duration) {
		g.Log.Warn("oracle proposal failed, retrying", "task", task, "wait", wait, "error", err)
	}

	batch := model.Batch{Task: task}
	switch task {
	case model.TaskMerges:
		proposals, err := common.Retry(ctx, g.Retry, func() ([]model.MergeProposal, error) {
			return g.Oracle.ProposeMerges(ctx, state.Concepts, avoid)
		}, onRetry)
		if err != nil {
			return batch, errors.Mark(errors.Wrapf(err, "generate %s", task), ErrTaskFailed)
		}
		batch.Merges, batch.Filtered = filterMerges(proposals, state)
	case model.TaskRelationships:
		proposals, err := common.Retry(ctx, g.Retry, func() ([]model.RelationshipProposal, error) {
			return g.Oracle.ProposeRelationships(ctx, state.Concepts, avoid)
		}, onRetry)
		if err != nil {
			return batch, errors.Mark(errors.Wrapf(err, "generate %s", task), ErrTaskFailed)
		}
		batch.Relationships, batch.Filtered = filterRelationships(proposals, state)
	default:
		return batch, errors.Newf("normalize: unknown task %q", task)
	}

	if batch.Filtered > 0 {
		g.Log.Debug("filtered hallucinated proposals", "task", task, "count", batch.Filtered)
	}
	return batch, nil
}

func filterMerges(proposals []model.MergeProposal, state *State) ([]model.MergeProposal, int) {
	var out []model.MergeProposal
	filtered := 0
	seen := map[string]bool{}
	for _, p := range proposals {
		p.A = strings.TrimSpace(p.A)
		p.B = strings.TrimSpace(p.B)
		p.Canonical = strings.TrimSpace(p.Canonical)
		if !state.HasConcept(p.A) || !state.HasConcept(p.B) || p.A == p.B {
			filtered++
			continue
		}
		// Another catalog concept cannot be named canonical; that would
		// merge it without validation.
		if p.Canonical != p.A && p.Canonical != p.B && state.HasConcept(p.Canonical) {
			p.Canonical = ""
		}
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		out = append(out, p)
	}
	return out, filtered
}

func filterRelationships(proposals []model.RelationshipProposal, state *State) ([]model.RelationshipProposal, int) {
	var out []model.RelationshipProposal
	filtered := 0
	seen := map[string]bool{}
	for _, r := range proposals {
		r.Source = strings.TrimSpace(r.Source)
		r.Target = strings.TrimSpace(r.Target)
		if !r.Kind.Valid() || !state.HasConcept(r.Source) || !state.HasConcept(r.Target) || r.Source == r.Target {
			filtered++
			continue
		}
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		out = append(out, r)
	}
	return out, filtered
}
