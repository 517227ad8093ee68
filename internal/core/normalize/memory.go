package normalize

import (
	"github.com/agenthands/canon/internal/core/model"
)

// RejectionMemory is the set of weak items for one task. Keys only grow
// during a run; the first reason recorded for a key wins.
type RejectionMemory struct {
	items map[string]model.WeakItem
	order []string
}

func NewRejectionMemory() *RejectionMemory {
	return &RejectionMemory{items: make(map[string]model.WeakItem)}
}

// Add reports whether the key was new.
func (m *RejectionMemory) Add(item model.WeakItem) bool {
	if item.Key == "" {
		return false
	}
	if _, ok := m.items[item.Key]; ok {
		return false
	}
	m.items[item.Key] = item
	m.order = append(m.order, item.Key)
	return true
}

func (m *RejectionMemory) Contains(key string) bool {
	_, ok := m.items[key]
	return ok
}

func (m *RejectionMemory) Len() int {
	return len(m.order)
}

// Items returns the weak items in insertion order. The generator passes
// them to the oracle as an avoid list.
func (m *RejectionMemory) Items() []model.WeakItem {
	out := make([]model.WeakItem, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.items[k])
	}
	return out
}
