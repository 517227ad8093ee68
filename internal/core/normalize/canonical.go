package normalize

import (
	"sort"

	"github.com/agenthands/canon/internal/core/model"
)

// CanonicalMap is a union-find over concept names. Every name resolves to
// exactly one representative; a representative resolves to itself.
type CanonicalMap struct {
	parent  map[string]string
	members map[string][]string
}

func NewCanonicalMap() *CanonicalMap {
	return &CanonicalMap{
		parent:  make(map[string]string),
		members: make(map[string][]string),
	}
}

func (m *CanonicalMap) add(name string) {
	if _, ok := m.parent[name]; ok {
		return
	}
	m.parent[name] = name
	m.members[name] = []string{name}
}

// Known reports whether name has been through a union.
func (m *CanonicalMap) Known(name string) bool {
	_, ok := m.parent[name]
	return ok
}

// Find returns the representative of name, compressing the path it walked.
// Names never seen resolve to themselves.
func (m *CanonicalMap) Find(name string) string {
	root := name
	for {
		p, ok := m.parent[root]
		if !ok || p == root {
			break
		}
		root = p
	}
	for name != root {
		next, ok := m.parent[name]
		if !ok {
			break
		}
		m.parent[name] = root
		name = next
	}
	return root
}

// Union joins the groups of a and b and reports whether anything changed.
// The suggested canonical wins when it is new to the map or already belongs
// to one of the two groups; otherwise the lexicographically smaller
// representative wins. The losing group is repointed in full.
func (m *CanonicalMap) Union(a, b, suggested string) bool {
	m.add(a)
	m.add(b)
	ra, rb := m.Find(a), m.Find(b)
	if ra == rb {
		return false
	}

	winner := m.pickWinner(ra, rb, suggested)

	group := make([]string, 0, len(m.members[ra])+len(m.members[rb])+1)
	group = append(group, m.members[ra]...)
	group = append(group, m.members[rb]...)
	if !m.Known(winner) {
		group = append(group, winner)
	}
	delete(m.members, ra)
	delete(m.members, rb)

	for _, n := range group {
		m.parent[n] = winner
	}
	sort.Strings(group)
	m.members[winner] = group
	return true
}

func (m *CanonicalMap) pickWinner(ra, rb, suggested string) string {
	if suggested != "" {
		if !m.Known(suggested) {
			return suggested
		}
		if rs := m.Find(suggested); rs == ra || rs == rb {
			return suggested
		}
	}
	if ra < rb {
		return ra
	}
	return rb
}

// Groups returns every group with more than one member, ordered by
// canonical name.
func (m *CanonicalMap) Groups() []model.MergeGroup {
	var out []model.MergeGroup
	for rep, members := range m.members {
		if len(members) < 2 {
			continue
		}
		out = append(out, model.MergeGroup{
			Canonical: rep,
			Members:   append([]string(nil), members...),
		})
	}
	model.SortGroups(out)
	return out
}
