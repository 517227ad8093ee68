package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenthands/canon/internal/core/model"
)

func assertOneHop(t *testing.T, m *CanonicalMap) {
	t.Helper()
	for name, parent := range m.parent {
		assert.Equal(t, parent, m.parent[parent], "parent of %q is not a representative", name)
	}
}

func TestUnionTransitive(t *testing.T) {
	m := NewCanonicalMap()

	assert.True(t, m.Union("A", "B", "AB"))
	assert.True(t, m.Union("B", "C", "BC"))

	for _, n := range []string{"A", "B", "C", "AB", "BC"} {
		assert.Equal(t, "BC", m.Find(n), n)
	}
	assertOneHop(t, m)
	assert.Equal(t, []model.MergeGroup{
		{Canonical: "BC", Members: []string{"A", "AB", "B", "BC", "C"}},
	}, m.Groups())
}

func TestUnionIdempotent(t *testing.T) {
	m := NewCanonicalMap()
	assert.True(t, m.Union("A", "B", "A"))
	before := m.Groups()

	assert.False(t, m.Union("A", "B", "B"))
	assert.False(t, m.Union("B", "A", "Z"))
	assert.Equal(t, before, m.Groups())
	assert.Equal(t, "A", m.Find("B"))
}

func TestUnionSuggestedMustBelong(t *testing.T) {
	m := NewCanonicalMap()
	m.Union("A", "B", "A")
	m.Union("C", "D", "D")

	// "A" is already the representative of another group, so it cannot win
	// a union between E and F.
	m.Union("E", "F", "A")
	assert.Equal(t, "E", m.Find("F"))

	// A suggestion from inside one of the two groups wins even if it is a
	// variant.
	m.Union("B", "C", "C")
	for _, n := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, "C", m.Find(n))
	}
	assertOneHop(t, m)
}

func TestUnionLexicographicFallback(t *testing.T) {
	m := NewCanonicalMap()
	m.Union("zeta", "alpha", "")
	assert.Equal(t, "alpha", m.Find("zeta"))
	assert.Equal(t, "alpha", m.Find("alpha"))
}

func TestFindUnknownIsItself(t *testing.T) {
	m := NewCanonicalMap()
	assert.Equal(t, "loner", m.Find("loner"))
	assert.False(t, m.Known("loner"))
	assert.Empty(t, m.Groups())
}

func TestFindCompressesPath(t *testing.T) {
	m := NewCanonicalMap()
	m.parent = map[string]string{"a": "b", "b": "c", "c": "c"}
	assert.Equal(t, "c", m.Find("a"))
	assert.Equal(t, "c", m.parent["a"])
	assert.Equal(t, "c", m.parent["b"])
}
