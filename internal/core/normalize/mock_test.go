package normalize

import (
	"context"
	"sync"

	"github.com/agenthands/canon/internal/core/model"
)

// MockOracle replays queued proposals, one entry per call. An exhausted
// queue proposes nothing.
type MockOracle struct {
	mu sync.Mutex

	MergeQueue        [][]model.MergeProposal
	RelationshipQueue [][]model.RelationshipProposal

	// RejectMerges and RejectRelationships map keys to rejection reasons.
	RejectMerges        map[string]string
	RejectRelationships map[string]string

	ProposeErr  error
	ValidateErr error
	// ProposeMergeErr fails only the merges task.
	ProposeMergeErr error

	ProposeMergeCalls   int
	ValidateMergeCalls  int
	ValidateRelCalls    int
	MergeAvoidLists     [][]model.WeakItem
	ValidatedMerges     [][]model.MergeProposal
	ValidationDefsNames [][]string
}

func (m *MockOracle) ProposeMerges(ctx context.Context, concepts []model.Concept, avoid []model.WeakItem) ([]model.MergeProposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProposeMergeCalls++
	m.MergeAvoidLists = append(m.MergeAvoidLists, avoid)
	if m.ProposeErr != nil {
		return nil, m.ProposeErr
	}
	if m.ProposeMergeErr != nil {
		return nil, m.ProposeMergeErr
	}
	if len(m.MergeQueue) == 0 {
		return nil, nil
	}
	next := m.MergeQueue[0]
	m.MergeQueue = m.MergeQueue[1:]
	return next, nil
}

func (m *MockOracle) ProposeRelationships(ctx context.Context, concepts []model.Concept, avoid []model.WeakItem) ([]model.RelationshipProposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ProposeErr != nil {
		return nil, m.ProposeErr
	}
	if len(m.RelationshipQueue) == 0 {
		return nil, nil
	}
	next := m.RelationshipQueue[0]
	m.RelationshipQueue = m.RelationshipQueue[1:]
	return next, nil
}

func (m *MockOracle) ValidateMerges(ctx context.Context, batch []model.MergeProposal, definitions map[string]string) ([]model.WeakItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ValidateMergeCalls++
	m.ValidatedMerges = append(m.ValidatedMerges, batch)
	names := make([]string, 0, len(definitions))
	for n := range definitions {
		names = append(names, n)
	}
	m.ValidationDefsNames = append(m.ValidationDefsNames, names)
	if m.ValidateErr != nil {
		return nil, m.ValidateErr
	}
	var weak []model.WeakItem
	for _, p := range batch {
		if reason, ok := m.RejectMerges[p.Key()]; ok {
			weak = append(weak, model.WeakItem{Key: p.Key(), Reason: reason})
		}
	}
	return weak, nil
}

func (m *MockOracle) ValidateRelationships(ctx context.Context, batch []model.RelationshipProposal, definitions map[string]string) ([]model.WeakItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ValidateRelCalls++
	if m.ValidateErr != nil {
		return nil, m.ValidateErr
	}
	var weak []model.WeakItem
	for _, r := range batch {
		if reason, ok := m.RejectRelationships[r.Key()]; ok {
			weak = append(weak, model.WeakItem{Key: r.Key(), Reason: reason})
		}
	}
	return weak, nil
}

func concepts(names ...string) []model.Concept {
	out := make([]model.Concept, 0, len(names))
	for _, n := range names {
		out = append(out, model.Concept{Name: n, Definition: "definition of " + n})
	}
	return out
}
