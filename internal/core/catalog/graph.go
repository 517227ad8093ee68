package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/driver"
)

// Graph reads (:Concept {name, definition}) nodes from the graph store.
type Graph struct {
	Driver driver.GraphDriver
}

func NewGraph(d driver.GraphDriver) *Graph {
	return &Graph{Driver: d}
}

func (g *Graph) GetAllConcepts(ctx context.Context) ([]model.Concept, error) {
	res, err := g.Driver.ExecuteQuery(ctx, driver.GetAllConceptsQuery, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load concepts")
	}
	return recordsToConcepts(res.Records), nil
}

func (g *Graph) GetDefinitions(ctx context.Context, names []string) (map[string]string, error) {
	if len(names) == 0 {
		return map[string]string{}, nil
	}
	res, err := g.Driver.ExecuteQuery(ctx, driver.GetDefinitionsQuery, map[string]interface{}{"names": names})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load definitions")
	}
	return model.Index(recordsToConcepts(res.Records)), nil
}

func recordsToConcepts(records []*neo4j.Record) []model.Concept {
	out := make([]model.Concept, 0, len(records))
	for _, rec := range records {
		name, _ := rec.Get("name")
		def, _ := rec.Get("definition")
		n, _ := name.(string)
		if n == "" {
			continue
		}
		d, _ := def.(string)
		out = append(out, model.Concept{Name: n, Definition: d})
	}
	return out
}
