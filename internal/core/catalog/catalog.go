// Package catalog reads the concept catalog the normalizer works on.
package catalog

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/agenthands/canon/internal/core/model"
)

// Catalog is read-only to the normalizer.
type Catalog interface {
	GetAllConcepts(ctx context.Context) ([]model.Concept, error)
	// GetDefinitions returns definitions for the requested names only.
	// Unknown names are absent from the result.
	GetDefinitions(ctx context.Context, names []string) (map[string]string, error)
}

// Memory is a fixed in-process catalog.
type Memory struct {
	concepts []model.Concept
	index    map[string]string
}

func NewMemory(concepts []model.Concept) *Memory {
	return &Memory{concepts: concepts, index: model.Index(concepts)}
}

// LoadFile reads a JSON array of {name, definition} objects.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read catalog file '%s'", path)
	}
	var concepts []model.Concept
	if err := json.Unmarshal(data, &concepts); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog JSON")
	}

	seen := map[string]bool{}
	out := make([]model.Concept, 0, len(concepts))
	for _, c := range concepts {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return NewMemory(out), nil
}

func (m *Memory) GetAllConcepts(ctx context.Context) ([]model.Concept, error) {
	out := make([]model.Concept, len(m.concepts))
	copy(out, m.concepts)
	return out, nil
}

func (m *Memory) GetDefinitions(ctx context.Context, names []string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, n := range names {
		if d, ok := m.index[n]; ok {
			out[n] = d
		}
	}
	return out, nil
}
