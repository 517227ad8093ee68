// Package oracle wraps the text-inference service that proposes and
// validates merges and relationships. Its output is never trusted: every
// response is schema checked here and structurally filtered by the caller.
package oracle

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/agenthands/canon/internal/core/model"
)

// ErrParse marks responses that are not valid structured output. Callers
// treat it as retryable.
var ErrParse = errors.New("oracle: malformed structured output")

type Oracle interface {
	ProposeMerges(ctx context.Context, concepts []model.Concept, avoid []model.WeakItem) ([]model.MergeProposal, error)
	ProposeRelationships(ctx context.Context, concepts []model.Concept, avoid []model.WeakItem) ([]model.RelationshipProposal, error)
	ValidateMerges(ctx context.Context, batch []model.MergeProposal, definitions map[string]string) ([]model.WeakItem, error)
	ValidateRelationships(ctx context.Context, batch []model.RelationshipProposal, definitions map[string]string) ([]model.WeakItem, error)
}

func parseError(err error, what string) error {
	return errors.Mark(errors.Wrapf(err, "failed to parse %s", what), ErrParse)
}

func schemaError(what string, format string, args ...interface{}) error {
	return errors.Mark(errors.Wrapf(errors.Newf(format, args...), "invalid %s", what), ErrParse)
}
