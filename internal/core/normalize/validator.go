package normalize

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/agenthands/canon/internal/core/catalog"
	"github.com/agenthands/canon/internal/core/common"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/core/oracle"
	"github.com/agenthands/canon/internal/logger"
)

// Verdict is the validator's split of a generated batch.
type Verdict struct {
	// Accepted holds the items that survived validation, not yet recorded
	// in the state.
	Accepted model.Batch
	// Rejected holds weak items first recorded by this call.
	Rejected []model.WeakItem
	// Remembered counts items dropped because memory already rejected them.
	Remembered int
	// Settled counts items already implied by accepted state.
	Settled int
	// Called reports whether the oracle was consulted.
	Called bool
}

type Validator struct {
	Oracle  oracle.Oracle
	Catalog catalog.Catalog
	Retry   common.RetryPolicy
	Log     *logger.Logger
}

// Validate checks memory before anything else, asks the oracle only about
// items it has never judged, records new weak items in memory and returns
// the rest. Weak keys that do not match a candidate are ignored.
func (v *Validator) Validate(ctx context.Context, batch model.Batch, state *State) (Verdict, error) {
	memory := state.Memory[batch.Task]
	verdict := Verdict{Accepted: model.Batch{Task: batch.Task}}

	candidates := model.Batch{Task: batch.Task}
	for _, p := range batch.Merges {
		switch {
		case state.Settled(p):
			verdict.Settled++
		case memory.Contains(p.Key()):
			verdict.Remembered++
		default:
			candidates.Merges = append(candidates.Merges, p)
		}
	}
	for _, r := range batch.Relationships {
		switch {
		case state.Known(r):
			verdict.Settled++
		case state.RelationshipRejected(r):
			verdict.Remembered++
		default:
			candidates.Relationships = append(candidates.Relationships, r)
		}
	}
	if candidates.Len() == 0 {
		return verdict, nil
	}

	onRetry := func(err error, wait time.Duration) {
		v.Log.Warn("validation call failed, retrying", "task", batch.Task, "wait", wait, "error", err)
	}
	definitions, err := common.Retry(ctx, v.Retry, func() (map[string]string, error) {
		return v.Catalog.GetDefinitions(ctx, candidates.Names())
	}, onRetry)
	if err != nil {
		return verdict, errors.Mark(errors.Wrap(err, "load definitions"), ErrTaskFailed)
	}

	verdict.Called = true
	weak, err := common.Retry(ctx, v.Retry, func() ([]model.WeakItem, error) {
		if batch.Task == model.TaskMerges {
			return v.Oracle.ValidateMerges(ctx, candidates.Merges, definitions)
		}
		return v.Oracle.ValidateRelationships(ctx, candidates.Relationships, definitions)
	}, onRetry)
	if err != nil {
		return verdict, errors.Mark(errors.Wrapf(err, "validate %s", batch.Task), ErrTaskFailed)
	}

	inBatch := map[string]bool{}
	for _, p := range candidates.Merges {
		inBatch[p.Key()] = true
	}
	rels := map[string]model.RelationshipProposal{}
	for _, r := range candidates.Relationships {
		inBatch[r.Key()] = true
		rels[r.Key()] = r
	}
	for _, w := range weak {
		if !inBatch[w.Key] {
			v.Log.Debug("ignoring weak key outside batch", "task", batch.Task, "key", w.Key)
			continue
		}
		if !memory.Add(w) {
			continue
		}
		verdict.Rejected = append(verdict.Rejected, w)
		if r, ok := rels[w.Key]; ok {
			state.RememberRelationship(r)
		}
	}

	for _, p := range candidates.Merges {
		if !memory.Contains(p.Key()) {
			verdict.Accepted.Merges = append(verdict.Accepted.Merges, p)
		}
	}
	for _, r := range candidates.Relationships {
		if !state.RelationshipRejected(r) {
			verdict.Accepted.Relationships = append(verdict.Accepted.Relationships, r)
		}
	}
	return verdict, nil
}
