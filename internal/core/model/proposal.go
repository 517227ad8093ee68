package model

import (
	"strings"
)

type Task string

const (
	TaskMerges        Task = "merges"
	TaskRelationships Task = "relationships"
)

// Tasks lists every task in the order the loop processes them.
var Tasks = []Task{TaskMerges, TaskRelationships}

// RelationKind is the closed set of relationship types between concepts.
type RelationKind string

const (
	KindPrerequisiteOf RelationKind = "prerequisite_of"
	KindPartOf         RelationKind = "part_of"
	KindIsA            RelationKind = "is_a"
	KindRelatedTo      RelationKind = "related_to"
	KindUsedFor        RelationKind = "used_for"
	KindContrastsWith  RelationKind = "contrasts_with"
)

var RelationKinds = []RelationKind{
	KindPrerequisiteOf,
	KindPartOf,
	KindIsA,
	KindRelatedTo,
	KindUsedFor,
	KindContrastsWith,
}

// ParseRelationKind normalizes free-form kind text ("Part Of", "part-of") and
// reports whether it names a known kind. Unknown kinds come back normalized
// so they can still be keyed and counted.
func ParseRelationKind(s string) (RelationKind, bool) {
	k := RelationKind(strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(s))))
	return k, k.Valid()
}

func (k RelationKind) Valid() bool {
	for _, known := range RelationKinds {
		if k == known {
			return true
		}
	}
	return false
}

// MergeProposal states that A and B denote the same concept and Canonical
// should survive.
type MergeProposal struct {
	A         string `json:"a"`
	B         string `json:"b"`
	Canonical string `json:"canonical"`
	Reason    string `json:"reason"`
}

func (p MergeProposal) Key() string {
	return MergeKey(p.A, p.B)
}

type RelationshipProposal struct {
	Source string       `json:"source"`
	Target string       `json:"target"`
	Kind   RelationKind `json:"kind"`
	Reason string       `json:"reason"`
}

func (p RelationshipProposal) Key() string {
	return RelationshipKey(p.Source, p.Target, p.Kind)
}

// WeakItem is a rejected proposal, keyed like its positive counterpart.
type WeakItem struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Batch is the output of one generation or validation phase for one task.
type Batch struct {
	Task          Task                   `json:"task"`
	Merges        []MergeProposal        `json:"merges,omitempty"`
	Relationships []RelationshipProposal `json:"relationships,omitempty"`
	Filtered      int                    `json:"filtered_hallucinations"`
}

func (b Batch) Len() int {
	return len(b.Merges) + len(b.Relationships)
}

// Names returns every concept name the batch references, deduplicated.
func (b Batch) Names() []string {
	seen := map[string]bool{}
	var out []string
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, m := range b.Merges {
		add(m.A)
		add(m.B)
	}
	for _, r := range b.Relationships {
		add(r.Source)
		add(r.Target)
	}
	return out
}
