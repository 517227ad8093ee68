//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/canon/internal/config"
	"github.com/agenthands/canon/internal/core"
	"github.com/agenthands/canon/internal/core/apply"
	"github.com/agenthands/canon/internal/core/catalog"
	"github.com/agenthands/canon/internal/core/common"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/core/normalize"
	"github.com/agenthands/canon/internal/driver"
	"github.com/agenthands/canon/internal/logger"
)

// fixedOracle proposes one fixed batch per task and accepts everything, so
// the graph side can be checked without an LLM.
type fixedOracle struct {
	merges []model.MergeProposal
	rels   []model.RelationshipProposal
	done   map[model.Task]bool
}

func (o *fixedOracle) ProposeMerges(ctx context.Context, concepts []model.Concept, avoid []model.WeakItem) ([]model.MergeProposal, error) {
	if o.done[model.TaskMerges] {
		return nil, nil
	}
	o.done[model.TaskMerges] = true
	return o.merges, nil
}

func (o *fixedOracle) ProposeRelationships(ctx context.Context, concepts []model.Concept, avoid []model.WeakItem) ([]model.RelationshipProposal, error) {
	if o.done[model.TaskRelationships] {
		return nil, nil
	}
	o.done[model.TaskRelationships] = true
	return o.rels, nil
}

func (o *fixedOracle) ValidateMerges(ctx context.Context, batch []model.MergeProposal, definitions map[string]string) ([]model.WeakItem, error) {
	return nil, nil
}

func (o *fixedOracle) ValidateRelationships(ctx context.Context, batch []model.RelationshipProposal, definitions map[string]string) ([]model.WeakItem, error) {
	return nil, nil
}

func connect(t *testing.T) driver.GraphDriver {
	t.Helper()
	_ = godotenv.Load("../../.env")

	uri := os.Getenv("MEMGRAPH_URI")
	if uri == "" {
		t.Skip("Skipping integration test: MEMGRAPH_URI not set")
	}
	cfg := config.Default().Memgraph
	cfg.URI = uri
	cfg.User = os.Getenv("MEMGRAPH_USER")
	cfg.Password = os.Getenv("MEMGRAPH_PASSWORD")

	d, err := driver.NewMemgraphDriver(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d
}

func seed(t *testing.T, d driver.GraphDriver) {
	t.Helper()
	ctx := context.Background()
	_, err := d.ExecuteQuery(ctx, `MATCH (c:Concept) DETACH DELETE c`, nil)
	require.NoError(t, err)
	_, err = d.ExecuteQuery(ctx, `
		UNWIND $concepts AS c
		CREATE (:Concept {name: c.name, definition: c.definition, aliases: []})
	`, map[string]interface{}{"concepts": []map[string]interface{}{
		{"name": "Big Data", "definition": "datasets too large for one machine"},
		{"name": "big data", "definition": "large datasets"},
		{"name": "ETL", "definition": "extract, transform, load"},
		{"name": "Extract Transform Load", "definition": "moving data between systems"},
		{"name": "Spark", "definition": "distributed processing engine"},
	}})
	require.NoError(t, err)
	_, err = d.ExecuteQuery(ctx, `
		MATCH (a:Concept {name: "ETL"}), (b:Concept {name: "Big Data"})
		CREATE (a)-[:RELATES_TO {kind: "used_for"}]->(b)
	`, nil)
	require.NoError(t, err)
}

func TestNormalizeAndApply(t *testing.T) {
	d := connect(t)
	seed(t, d)
	ctx := context.Background()
	require.NoError(t, d.BuildIndices(ctx))

	orc := &fixedOracle{
		merges: []model.MergeProposal{
			{A: "Big Data", B: "big data", Canonical: "big data"},
			{A: "ETL", B: "Extract Transform Load", Canonical: "etl"},
		},
		rels: []model.RelationshipProposal{
			{Source: "Extract Transform Load", Target: "Spark", Kind: model.KindUsedFor, Reason: "pipelines run on Spark"},
		},
		done: map[model.Task]bool{},
	}
	retry := common.RetryPolicy{MaxAttempts: 2, MinBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}
	applier := apply.NewApplier(apply.NewMemgraphStore(d), retry, logger.Nop())
	opts := normalize.Options{MaxIterations: 5, Window: 1, Threshold: 1, MaxConsecutiveFailures: 2, Retry: retry}
	c := core.NewCanon(catalog.NewGraph(d), orc, applier, nil, nil, logger.Nop(), opts)

	info, err := c.RunSync(ctx, core.ModeDirect)
	require.NoError(t, err)
	require.Equal(t, model.StatusConverged, info.Status)
	require.NotNil(t, info.Apply)
	assert.True(t, info.Apply.Complete())

	concepts, err := catalog.NewGraph(d).GetAllConcepts(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Spark", "big data", "etl"}, model.Names(concepts))

	res, err := d.ExecuteQuery(ctx, `
		MATCH (s:Concept)-[r:RELATES_TO]->(t:Concept)
		RETURN s.name AS source, t.name AS target, r.kind AS kind
		ORDER BY source, target
	`, nil)
	require.NoError(t, err)
	var edges []string
	for _, rec := range res.Records {
		s, _ := rec.Get("source")
		tg, _ := rec.Get("target")
		k, _ := rec.Get("kind")
		edges = append(edges, model.RelationshipKey(s.(string), tg.(string), model.RelationKind(k.(string))))
	}
	assert.Equal(t, []string{"etl->Spark::used_for", "etl->big data::used_for"}, edges)

	res, err = d.ExecuteQuery(ctx, `MATCH (c:Concept {name: "etl"}) RETURN c.aliases AS aliases`, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	aliases, _ := res.Records[0].Get("aliases")
	assert.ElementsMatch(t, []interface{}{"ETL", "Extract Transform Load"}, aliases)

	// a second apply of the same plan changes nothing
	report := applier.Apply(ctx, info.Result.Plan)
	assert.True(t, report.Complete())
	assert.Empty(t, report.MergedGroups)
}
