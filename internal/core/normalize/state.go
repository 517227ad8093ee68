package normalize

import (
	"sort"
	"sync"

	"github.com/agenthands/canon/internal/core/model"
)

// State is the mutable state of one run. The engine holds the lock for a
// whole iteration, so generator, validator and convergence updates see a
// consistent snapshot.
type State struct {
	mu sync.Mutex

	RunID     string
	Concepts  []model.Concept
	Canonical *CanonicalMap
	Memory    map[model.Task]*RejectionMemory
	Tracker   *ConvergenceTracker
	Iteration int

	names         map[string]bool
	merges        map[string]model.MergeProposal
	mergeOrder    []string
	relationships map[string]model.RelationshipProposal
	relOrder      []string
	rejectedRels  []model.RelationshipProposal
	filtered      int
}

func NewState(runID string, concepts []model.Concept, window, threshold int) *State {
	names := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		names[c.Name] = true
	}
	return &State{
		RunID:     runID,
		Concepts:  concepts,
		Canonical: NewCanonicalMap(),
		Memory: map[model.Task]*RejectionMemory{
			model.TaskMerges:        NewRejectionMemory(),
			model.TaskRelationships: NewRejectionMemory(),
		},
		Tracker:       NewConvergenceTracker(window, threshold),
		names:         names,
		merges:        make(map[string]model.MergeProposal),
		relationships: make(map[string]model.RelationshipProposal),
	}
}

func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }

func (s *State) HasConcept(name string) bool {
	return s.names[name]
}

func (s *State) AddFiltered(n int) {
	s.filtered += n
}

// Settled reports whether a merge is already implied by accepted merges.
func (s *State) Settled(p model.MergeProposal) bool {
	if _, ok := s.merges[p.Key()]; ok {
		return true
	}
	return s.Canonical.Find(p.A) == s.Canonical.Find(p.B)
}

// Known reports whether a relationship, once canonicalized, is already
// accepted or collapses into a self-loop.
func (s *State) Known(r model.RelationshipProposal) bool {
	if _, ok := s.relationships[r.Key()]; ok {
		return true
	}
	c := s.canonicalize(r)
	if c.Source == c.Target {
		return true
	}
	_, ok := s.canonicalKeys()[c.Key()]
	return ok
}

// RememberRelationship keeps a rejected relationship so that proposals
// resolving to the same canonical key after later merges stay rejected.
func (s *State) RememberRelationship(r model.RelationshipProposal) {
	s.rejectedRels = append(s.rejectedRels, r)
}

// RelationshipRejected reports whether r, by its own key or by its key after
// canonicalization, matches a rejected relationship.
func (s *State) RelationshipRejected(r model.RelationshipProposal) bool {
	if s.Memory[model.TaskRelationships].Contains(r.Key()) {
		return true
	}
	key := s.canonicalize(r).Key()
	for _, w := range s.rejectedRels {
		if s.canonicalize(w).Key() == key {
			return true
		}
	}
	return false
}

// Accept records a validated batch and returns how many items were new.
func (s *State) Accept(b model.Batch) int {
	accepted := 0
	for _, p := range b.Merges {
		if s.Settled(p) {
			continue
		}
		key := p.Key()
		s.merges[key] = p
		s.mergeOrder = append(s.mergeOrder, key)
		s.Canonical.Union(p.A, p.B, p.Canonical)
		accepted++
	}
	for _, r := range b.Relationships {
		if s.Known(r) {
			continue
		}
		key := r.Key()
		s.relationships[key] = r
		s.relOrder = append(s.relOrder, key)
		accepted++
	}
	return accepted
}

func (s *State) AcceptedMerges() []model.MergeProposal {
	out := make([]model.MergeProposal, 0, len(s.mergeOrder))
	for _, k := range s.mergeOrder {
		out = append(out, s.merges[k])
	}
	return out
}

func (s *State) AcceptedRelationships() []model.RelationshipProposal {
	out := make([]model.RelationshipProposal, 0, len(s.relOrder))
	for _, k := range s.relOrder {
		out = append(out, s.relationships[k])
	}
	return out
}

func (s *State) canonicalize(r model.RelationshipProposal) model.RelationshipProposal {
	r.Source = s.Canonical.Find(r.Source)
	r.Target = s.Canonical.Find(r.Target)
	return r
}

func (s *State) canonicalKeys() map[string]struct{} {
	out := make(map[string]struct{}, len(s.relationships))
	for _, r := range s.relationships {
		out[s.canonicalize(r).Key()] = struct{}{}
	}
	return out
}

// Plan resolves accepted relationships through the current canonical map.
// Relationships that collapse to the same key or to a self-loop are dropped.
func (s *State) Plan() model.Plan {
	plan := model.Plan{Groups: s.Canonical.Groups()}
	seen := map[string]bool{}
	for _, k := range s.relOrder {
		r := s.canonicalize(s.relationships[k])
		if r.Source == r.Target || seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		plan.Relationships = append(plan.Relationships, r)
	}
	sort.SliceStable(plan.Relationships, func(i, j int) bool {
		return plan.Relationships[i].Key() < plan.Relationships[j].Key()
	})
	return plan
}

func (s *State) Totals() model.Totals {
	t := model.Totals{
		FilteredHallucinations: s.filtered,
	}
	for _, g := range s.Canonical.Groups() {
		t.MergeGroups++
		for _, m := range g.Variants() {
			if s.names[m] {
				t.MergedAliases++
			}
		}
	}
	t.Relationships = len(s.Plan().Relationships)
	for _, m := range s.Memory {
		t.Rejected += m.Len()
	}
	return t
}
