// Package review holds normalization plans for human approval before they
// touch the graph.
package review

import (
	"time"

	"github.com/agenthands/canon/internal/core/model"
)

type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func ParseDecision(s string) (Decision, bool) {
	switch d := Decision(s); d {
	case DecisionPending, DecisionApproved, DecisionRejected:
		return d, true
	}
	return "", false
}

type ItemKind string

const (
	KindMerge        ItemKind = "merge"
	KindRelationship ItemKind = "relationship"
)

// Item is one reviewable unit: a whole merge group or one relationship.
type Item struct {
	Key          string                      `json:"key"`
	Kind         ItemKind                    `json:"kind"`
	Group        *model.MergeGroup           `json:"group,omitempty"`
	Relationship *model.RelationshipProposal `json:"relationship,omitempty"`
	Decision     Decision                    `json:"decision"`
}

type Review struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Items     []Item    `json:"items"`
}

func MergeItemKey(canonical string) string {
	return "merge:" + canonical
}

// New turns a plan into a review with every item pending.
func New(id, runID string, plan model.Plan, now time.Time) *Review {
	r := &Review{ID: id, RunID: runID, CreatedAt: now}
	for i := range plan.Groups {
		g := plan.Groups[i]
		r.Items = append(r.Items, Item{
			Key:      MergeItemKey(g.Canonical),
			Kind:     KindMerge,
			Group:    &g,
			Decision: DecisionPending,
		})
	}
	for i := range plan.Relationships {
		rel := plan.Relationships[i]
		r.Items = append(r.Items, Item{
			Key:          rel.Key(),
			Kind:         KindRelationship,
			Relationship: &rel,
			Decision:     DecisionPending,
		})
	}
	return r
}

// ApprovedPlan keeps approved items only.
func (r *Review) ApprovedPlan() model.Plan {
	var plan model.Plan
	for _, it := range r.Items {
		if it.Decision != DecisionApproved {
			continue
		}
		switch it.Kind {
		case KindMerge:
			plan.Groups = append(plan.Groups, *it.Group)
		case KindRelationship:
			plan.Relationships = append(plan.Relationships, *it.Relationship)
		}
	}
	return plan
}

func (r *Review) Item(key string) (*Item, bool) {
	for i := range r.Items {
		if r.Items[i].Key == key {
			return &r.Items[i], true
		}
	}
	return nil, false
}

// Counts returns the number of items per decision.
func (r *Review) Counts() map[Decision]int {
	out := map[Decision]int{}
	for _, it := range r.Items {
		out[it.Decision]++
	}
	return out
}
