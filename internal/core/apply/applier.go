package apply

import (
	"context"
	"time"

	"github.com/agenthands/canon/internal/core/common"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/logger"
)

// Applier commits merge groups and then relationships. Each unit is
// retried on its own; a unit that still fails is reported and the rest
// continue. Reapplying a plan is a no-op for units already committed.
type Applier struct {
	Store GraphStore
	Retry common.RetryPolicy
	Log   *logger.Logger
}

func NewApplier(store GraphStore, retry common.RetryPolicy, log *logger.Logger) *Applier {
	if log == nil {
		log = logger.Nop()
	}
	return &Applier{Store: store, Retry: retry, Log: log.With("component", "MergeApplier")}
}

func (a *Applier) Apply(ctx context.Context, plan model.Plan) model.ApplyReport {
	report := model.ApplyReport{}

	groups := append([]model.MergeGroup(nil), plan.Groups...)
	model.SortGroups(groups)
	for _, g := range groups {
		variants := g.Variants()
		if len(variants) == 0 {
			continue
		}
		merged, err := common.Retry(ctx, a.Retry, func() (bool, error) {
			return a.Store.MergeNodes(ctx, g.Canonical, variants)
		}, a.onRetry("merge", g.Canonical))
		switch {
		case err != nil:
			a.Log.Error("merge group failed", "canonical", g.Canonical, "error", err)
			report.FailedGroups = append(report.FailedGroups, g.Canonical)
		case merged:
			report.MergedGroups = append(report.MergedGroups, g.Canonical)
		default:
			report.SkippedGroups = append(report.SkippedGroups, g.Canonical)
		}
	}

	resolve := plan.Resolver()
	seen := map[string]bool{}
	for _, r := range plan.Relationships {
		r.Source = resolve(r.Source)
		r.Target = resolve(r.Target)
		if r.Source == r.Target || seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true

		ok, err := common.Retry(ctx, a.Retry, func() (bool, error) {
			return a.Store.UpsertRelationship(ctx, r)
		}, a.onRetry("relationship", r.Key()))
		switch {
		case err != nil:
			a.Log.Error("relationship upsert failed", "key", r.Key(), "error", err)
			report.FailedRelationships = append(report.FailedRelationships, r.Key())
		case !ok:
			a.Log.Warn("relationship endpoint missing", "key", r.Key())
			report.FailedRelationships = append(report.FailedRelationships, r.Key())
		default:
			report.RelationshipsUpserted++
		}
	}

	a.Log.Info("plan applied",
		"merged", len(report.MergedGroups),
		"skipped", len(report.SkippedGroups),
		"failed_groups", len(report.FailedGroups),
		"relationships", report.RelationshipsUpserted,
		"failed_relationships", len(report.FailedRelationships),
	)
	return report
}

func (a *Applier) onRetry(unit, key string) func(error, time.Duration) {
	return func(err error, wait time.Duration) {
		a.Log.Warn("graph write failed, retrying", "unit", unit, "key", key, "wait", wait, "error", err)
	}
}
