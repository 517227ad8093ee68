package review

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/errs"
	"github.com/agenthands/canon/internal/logger"
)

// ErrPartialApply is returned when some approved items failed to apply.
// The review is kept so it can be applied again.
var ErrPartialApply = errors.New("review: approved items partially applied")

type Applier interface {
	Apply(ctx context.Context, plan model.Plan) model.ApplyReport
}

type Service struct {
	Store   Store
	Applier Applier
	Log     *logger.Logger
	NewID   func() string
	Now     func() time.Time
}

func NewService(store Store, applier Applier, newID func() string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		Store:   store,
		Applier: applier,
		Log:     log.With("component", "ReviewService"),
		NewID:   newID,
		Now:     time.Now,
	}
}

// Create stores a pending review of plan. Empty plans are rejected.
func (s *Service) Create(ctx context.Context, runID string, plan model.Plan) (*Review, error) {
	if len(plan.Groups) == 0 && len(plan.Relationships) == 0 {
		return nil, errs.InvalidRequestf("run %s produced an empty plan", runID)
	}
	r := New(s.NewID(), runID, plan, s.Now())
	if err := s.Store.Save(ctx, r); err != nil {
		return nil, err
	}
	s.Log.Info("review created", "review_id", r.ID, "run_id", runID, "items", len(r.Items))
	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Review, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) Decide(ctx context.Context, id, key string, d Decision) error {
	if _, ok := ParseDecision(string(d)); !ok {
		return errs.InvalidRequestf("unknown decision %q", d)
	}
	return s.Store.SetDecision(ctx, id, key, d)
}

// DecideAll sets the same decision on every item of the review.
func (s *Service) DecideAll(ctx context.Context, id string, d Decision) error {
	r, err := s.Store.Get(ctx, id)
	if err != nil {
		return err
	}
	for _, it := range r.Items {
		if err := s.Decide(ctx, id, it.Key, d); err != nil {
			return err
		}
	}
	return nil
}

// Apply commits the approved items. The review is deleted once every item
// is decided and everything approved is in the graph. Pending items keep
// the review open so they can be decided and applied later; a failed unit
// keeps it and returns ErrPartialApply with the report.
func (s *Service) Apply(ctx context.Context, id string) (model.ApplyReport, error) {
	r, err := s.Store.Get(ctx, id)
	if err != nil {
		return model.ApplyReport{}, err
	}

	report := s.Applier.Apply(ctx, r.ApprovedPlan())
	if !report.Complete() {
		return report, errors.Wrapf(ErrPartialApply, "review %s", id)
	}
	if n := r.Counts()[DecisionPending]; n > 0 {
		s.Log.Info("review applied; kept for pending items", "review_id", id, "pending", n)
		return report, nil
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return report, err
	}
	s.Log.Info("review applied", "review_id", id, "merged", len(report.MergedGroups), "relationships", report.RelationshipsUpserted)
	return report, nil
}
