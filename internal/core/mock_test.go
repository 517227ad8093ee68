package core

import (
	"context"
	"sync"

	"github.com/agenthands/canon/internal/core/model"
)

// ScriptedOracle proposes the queued merges once and accepts everything.
type ScriptedOracle struct {
	mu      sync.Mutex
	Merges  [][]model.MergeProposal
	Block   chan struct{}
	Propose int
}

func (o *ScriptedOracle) ProposeMerges(ctx context.Context, concepts []model.Concept, avoid []model.WeakItem) ([]model.MergeProposal, error) {
	if o.Block != nil {
		select {
		case <-o.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Propose++
	if len(o.Merges) == 0 {
		return nil, nil
	}
	next := o.Merges[0]
	o.Merges = o.Merges[1:]
	return next, nil
}

func (o *ScriptedOracle) ProposeRelationships(ctx context.Context, concepts []model.Concept, avoid []model.WeakItem) ([]model.RelationshipProposal, error) {
	return nil, nil
}

func (o *ScriptedOracle) ValidateMerges(ctx context.Context, batch []model.MergeProposal, definitions map[string]string) ([]model.WeakItem, error) {
	return nil, nil
}

func (o *ScriptedOracle) ValidateRelationships(ctx context.Context, batch []model.RelationshipProposal, definitions map[string]string) ([]model.WeakItem, error) {
	return nil, nil
}

type RecordingApplier struct {
	mu     sync.Mutex
	Plans  []model.Plan
	Report model.ApplyReport
}

func (a *RecordingApplier) Apply(ctx context.Context, plan model.Plan) model.ApplyReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Plans = append(a.Plans, plan)
	return a.Report
}
