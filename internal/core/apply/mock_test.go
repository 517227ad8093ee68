package apply

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/driver"
)

// FakeStore is an in-memory graph with the same merge semantics as
// MemgraphStore.
type FakeStore struct {
	Nodes   map[string][]string // name -> aliases
	Edges   map[string]model.RelationshipProposal
	FailFor map[string]int // canonical or relationship key -> failures left
}

func NewFakeStore(names ...string) *FakeStore {
	s := &FakeStore{
		Nodes:   map[string][]string{},
		Edges:   map[string]model.RelationshipProposal{},
		FailFor: map[string]int{},
	}
	for _, n := range names {
		s.Nodes[n] = nil
	}
	return s
}

func (s *FakeStore) fail(key string) error {
	if s.FailFor[key] > 0 {
		s.FailFor[key]--
		return errors.Newf("transient failure for %s", key)
	}
	return nil
}

func (s *FakeStore) MergeNodes(ctx context.Context, canonical string, variants []string) (bool, error) {
	if err := s.fail(canonical); err != nil {
		return false, err
	}
	var present []string
	for _, v := range variants {
		if _, ok := s.Nodes[v]; ok && v != canonical {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return false, nil
	}
	aliases := map[string]bool{}
	for _, a := range s.Nodes[canonical] {
		aliases[a] = true
	}
	for _, v := range present {
		aliases[v] = true
		for _, a := range s.Nodes[v] {
			aliases[a] = true
		}
		delete(s.Nodes, v)
	}
	list := make([]string, 0, len(aliases))
	for a := range aliases {
		list = append(list, a)
	}
	sort.Strings(list)
	s.Nodes[canonical] = list

	isVariant := map[string]bool{}
	for _, v := range present {
		isVariant[v] = true
	}
	for key, e := range s.Edges {
		if !isVariant[e.Source] && !isVariant[e.Target] {
			continue
		}
		delete(s.Edges, key)
		if isVariant[e.Source] {
			e.Source = canonical
		}
		if isVariant[e.Target] {
			e.Target = canonical
		}
		if e.Source != e.Target {
			s.Edges[e.Key()] = e
		}
	}
	return true, nil
}

func (s *FakeStore) UpsertRelationship(ctx context.Context, r model.RelationshipProposal) (bool, error) {
	if err := s.fail(r.Key()); err != nil {
		return false, err
	}
	_, okS := s.Nodes[r.Source]
	_, okT := s.Nodes[r.Target]
	if !okS || !okT {
		return false, nil
	}
	s.Edges[r.Key()] = r
	return true, nil
}

type MockTx struct {
	Queries []string
	Params  []map[string]interface{}
	Results map[string][]*neo4j.Record
	Err     error
}

func (m *MockTx) Run(ctx context.Context, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	m.Queries = append(m.Queries, query)
	m.Params = append(m.Params, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Results[query], nil
}

type MockDriver struct {
	Tx *MockTx
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	return neo4j.EagerResult{}, nil
}

func (m *MockDriver) ExecuteWrite(ctx context.Context, work func(tx driver.Tx) error) error {
	return work(m.Tx)
}

func (m *MockDriver) BuildIndices(ctx context.Context) error { return nil }
func (m *MockDriver) Close(ctx context.Context) error        { return nil }
