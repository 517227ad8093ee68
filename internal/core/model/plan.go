package model

import "sort"

// MergeGroup is one canonical representative and every name that resolves to it.
type MergeGroup struct {
	Canonical string   `json:"canonical"`
	Members   []string `json:"members"`
}

// Variants returns the members other than the canonical name.
func (g MergeGroup) Variants() []string {
	out := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m != g.Canonical {
			out = append(out, m)
		}
	}
	return out
}

// Plan is what the applier commits to the graph store.
type Plan struct {
	Groups        []MergeGroup           `json:"groups"`
	Relationships []RelationshipProposal `json:"relationships"`
}

// Resolver maps every variant in the plan to its canonical name.
func (p Plan) Resolver() func(string) string {
	alias := map[string]string{}
	for _, g := range p.Groups {
		for _, m := range g.Members {
			alias[m] = g.Canonical
		}
	}
	return func(name string) string {
		if c, ok := alias[name]; ok {
			return c
		}
		return name
	}
}

// SortGroups orders groups by canonical name so application order is stable.
func SortGroups(groups []MergeGroup) {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Canonical < groups[j].Canonical
	})
}

type ApplyReport struct {
	MergedGroups          []string `json:"merged_groups"`
	SkippedGroups         []string `json:"skipped_groups"`
	FailedGroups          []string `json:"failed_groups"`
	RelationshipsUpserted int      `json:"relationships_upserted"`
	FailedRelationships   []string `json:"failed_relationships"`
}

func (r ApplyReport) Complete() bool {
	return len(r.FailedGroups) == 0 && len(r.FailedRelationships) == 0
}
