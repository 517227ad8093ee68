package normalize

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/canon/internal/core/catalog"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/logger"
)

func newValidator(orc *MockOracle, cs []model.Concept) *Validator {
	return &Validator{Oracle: orc, Catalog: catalog.NewMemory(cs), Retry: fastRetry, Log: logger.Nop()}
}

func TestValidateRecordsWeakBeforeAccepting(t *testing.T) {
	cs := concepts("A", "B", "C", "D")
	orc := &MockOracle{RejectMerges: map[string]string{
		model.MergeKey("C", "D"): "different things",
		"Q||R":                   "not in batch",
	}}
	state := NewState("run", cs, 2, 1)
	v := newValidator(orc, cs)

	verdict, err := v.Validate(context.Background(), model.Batch{Task: model.TaskMerges, Merges: []model.MergeProposal{
		{A: "A", B: "B", Canonical: "A"},
		{A: "D", B: "C", Canonical: "C"},
	}}, state)
	require.NoError(t, err)

	assert.True(t, verdict.Called)
	assert.Equal(t, []model.MergeProposal{{A: "A", B: "B", Canonical: "A"}}, verdict.Accepted.Merges)
	assert.Equal(t, []model.WeakItem{{Key: "C||D", Reason: "different things"}}, verdict.Rejected)
	assert.True(t, state.Memory[model.TaskMerges].Contains("C||D"))
	assert.Equal(t, 1, state.Memory[model.TaskMerges].Len())

	// definitions requested only for referenced names
	require.Len(t, orc.ValidationDefsNames, 1)
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, orc.ValidationDefsNames[0])
}

func TestValidateShortCircuitsRemembered(t *testing.T) {
	cs := concepts("X", "Y")
	orc := &MockOracle{}
	state := NewState("run", cs, 2, 1)
	state.Memory[model.TaskMerges].Add(model.WeakItem{Key: "X||Y", Reason: "no"})
	v := newValidator(orc, cs)

	verdict, err := v.Validate(context.Background(), model.Batch{Task: model.TaskMerges, Merges: []model.MergeProposal{
		{A: "Y", B: "X", Canonical: "X"},
	}}, state)
	require.NoError(t, err)

	assert.False(t, verdict.Called)
	assert.Equal(t, 1, verdict.Remembered)
	assert.Empty(t, verdict.Accepted.Merges)
	assert.Equal(t, 0, orc.ValidateMergeCalls)
}

func TestValidateSkipsSettledRelationships(t *testing.T) {
	cs := concepts("A", "B", "S")
	orc := &MockOracle{}
	state := NewState("run", cs, 2, 1)
	state.Accept(model.Batch{Merges: []model.MergeProposal{{A: "A", B: "B", Canonical: "A"}}})
	state.Accept(model.Batch{Relationships: []model.RelationshipProposal{{Source: "A", Target: "S", Kind: model.KindPartOf}}})
	v := newValidator(orc, cs)

	verdict, err := v.Validate(context.Background(), model.Batch{Task: model.TaskRelationships, Relationships: []model.RelationshipProposal{
		{Source: "B", Target: "S", Kind: model.KindPartOf},
		{Source: "A", Target: "B", Kind: model.KindRelatedTo},
		{Source: "S", Target: "A", Kind: model.KindUsedFor},
	}}, state)
	require.NoError(t, err)

	assert.Equal(t, 2, verdict.Settled)
	assert.Equal(t, []model.RelationshipProposal{{Source: "S", Target: "A", Kind: model.KindUsedFor}}, verdict.Accepted.Relationships)
	assert.Equal(t, 1, orc.ValidateRelCalls)
}

func TestValidateOracleFailure(t *testing.T) {
	cs := concepts("A", "B")
	orc := &MockOracle{ValidateErr: errors.New("timeout")}
	state := NewState("run", cs, 2, 1)
	v := newValidator(orc, cs)

	_, err := v.Validate(context.Background(), model.Batch{Task: model.TaskMerges, Merges: []model.MergeProposal{
		{A: "A", B: "B"},
	}}, state)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTaskFailed))
	assert.Equal(t, 3, orc.ValidateMergeCalls)
	assert.Equal(t, 0, state.Memory[model.TaskMerges].Len())
}

func TestValidateRejectsRelationshipReachedThroughMergedAlias(t *testing.T) {
	cs := concepts("ETL", "Extract Transform Load", "Spark")
	rejected := model.RelationshipProposal{Source: "ETL", Target: "Spark", Kind: model.KindUsedFor}
	orc := &MockOracle{RejectRelationships: map[string]string{rejected.Key(): "Spark is not an ETL use"}}
	state := NewState("run", cs, 2, 1)
	v := newValidator(orc, cs)

	verdict, err := v.Validate(context.Background(), model.Batch{
		Task:          model.TaskRelationships,
		Relationships: []model.RelationshipProposal{rejected},
	}, state)
	require.NoError(t, err)
	require.Len(t, verdict.Rejected, 1)

	state.Accept(model.Batch{Merges: []model.MergeProposal{{A: "ETL", B: "Extract Transform Load", Canonical: "etl"}}})

	verdict, err = v.Validate(context.Background(), model.Batch{
		Task: model.TaskRelationships,
		Relationships: []model.RelationshipProposal{
			{Source: "Extract Transform Load", Target: "Spark", Kind: model.KindUsedFor},
		},
	}, state)
	require.NoError(t, err)

	assert.False(t, verdict.Called)
	assert.Equal(t, 1, verdict.Remembered)
	assert.Empty(t, verdict.Accepted.Relationships)
	assert.Equal(t, 1, orc.ValidateRelCalls)

	state.Accept(verdict.Accepted)
	assert.Empty(t, state.Plan().Relationships)
}

func TestValidateKeepsRelationshipsWithOtherCanonicalForm(t *testing.T) {
	cs := concepts("ETL", "Extract Transform Load", "Spark")
	state := NewState("run", cs, 2, 1)
	state.Memory[model.TaskRelationships].Add(model.WeakItem{Key: "ETL->Spark::used_for", Reason: "no"})
	state.RememberRelationship(model.RelationshipProposal{Source: "ETL", Target: "Spark", Kind: model.KindUsedFor})
	state.Accept(model.Batch{Merges: []model.MergeProposal{{A: "ETL", B: "Extract Transform Load", Canonical: "etl"}}})

	assert.False(t, state.RelationshipRejected(model.RelationshipProposal{Source: "Extract Transform Load", Target: "Spark", Kind: model.KindPartOf}))
	assert.True(t, state.RelationshipRejected(model.RelationshipProposal{Source: "Extract Transform Load", Target: "Spark", Kind: model.KindUsedFor}))
}
