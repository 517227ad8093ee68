package oracle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/agenthands/canon/internal/config"
	"github.com/agenthands/canon/internal/core/common"
	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/llm"
)

type LLMOracle struct {
	LLM     llm.LLMClient
	Prompts config.Prompts
}

func NewLLMOracle(llmClient llm.LLMClient, prompts config.Prompts) *LLMOracle {
	return &LLMOracle{
		LLM:     llmClient,
		Prompts: prompts,
	}
}

type mergesResponse struct {
	Merges []model.MergeProposal `json:"merges"`
}

type rawRelationship struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

type relationshipsResponse struct {
	Relationships []rawRelationship `json:"relationships"`
}

type weakResponse struct {
	Weak []struct {
		A      string `json:"a"`
		B      string `json:"b"`
		Source string `json:"source"`
		Target string `json:"target"`
		Kind   string `json:"kind"`
		Reason string `json:"reason"`
	} `json:"weak"`
}

func (o *LLMOracle) ProposeMerges(ctx context.Context, concepts []model.Concept, avoid []model.WeakItem) ([]model.MergeProposal, error) {
	prompt := fmt.Sprintf(o.Prompts.ProposeMerges, serializeConcepts(concepts), serializeAvoid(avoid))

	response, err := o.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate merge proposals")
	}

	result, err := common.ParseJSON[mergesResponse](response)
	if err != nil {
		return nil, parseError(err, "merge proposals")
	}

	out := make([]model.MergeProposal, 0, len(result.Merges))
	for i, m := range result.Merges {
		m.A = strings.TrimSpace(m.A)
		m.B = strings.TrimSpace(m.B)
		m.Canonical = strings.TrimSpace(m.Canonical)
		if m.A == "" || m.B == "" {
			return nil, schemaError("merge proposals", "merge %d: a and b are required", i)
		}
		out = append(out, m)
	}
	return out, nil
}

func (o *LLMOracle) ProposeRelationships(ctx context.Context, concepts []model.Concept, avoid []model.WeakItem) ([]model.RelationshipProposal, error) {
	prompt := fmt.Sprintf(o.Prompts.ProposeRelationships, serializeConcepts(concepts), serializeAvoid(avoid))

	response, err := o.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate relationship proposals")
	}

	result, err := common.ParseJSON[relationshipsResponse](response)
	if err != nil {
		return nil, parseError(err, "relationship proposals")
	}

	out := make([]model.RelationshipProposal, 0, len(result.Relationships))
	for i, r := range result.Relationships {
		p, err := toRelationship(r.Source, r.Target, r.Kind, r.Reason)
		if err != nil {
			return nil, schemaError("relationship proposals", "relationship %d: %v", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (o *LLMOracle) ValidateMerges(ctx context.Context, batch []model.MergeProposal, definitions map[string]string) ([]model.WeakItem, error) {
	var b strings.Builder
	for i, m := range batch {
		fmt.Fprintf(&b, "%d. a: %s | b: %s | canonical: %s | reason: %s\n", i+1, m.A, m.B, m.Canonical, m.Reason)
	}
	prompt := fmt.Sprintf(o.Prompts.ValidateMerges, b.String(), serializeDefinitions(definitions))

	response, err := o.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate merge validation")
	}

	result, err := common.ParseJSON[weakResponse](response)
	if err != nil {
		return nil, parseError(err, "merge validation")
	}

	out := make([]model.WeakItem, 0, len(result.Weak))
	for i, w := range result.Weak {
		a, bb := strings.TrimSpace(w.A), strings.TrimSpace(w.B)
		if a == "" || bb == "" {
			return nil, schemaError("merge validation", "weak item %d: a and b are required", i)
		}
		out = append(out, model.WeakItem{Key: model.MergeKey(a, bb), Reason: w.Reason})
	}
	return out, nil
}

func (o *LLMOracle) ValidateRelationships(ctx context.Context, batch []model.RelationshipProposal, definitions map[string]string) ([]model.WeakItem, error) {
	var b strings.Builder
	for i, r := range batch {
		fmt.Fprintf(&b, "%d. source: %s | target: %s | kind: %s | reason: %s\n", i+1, r.Source, r.Target, r.Kind, r.Reason)
	}
	prompt := fmt.Sprintf(o.Prompts.ValidateRelationships, b.String(), serializeDefinitions(definitions))

	response, err := o.LLM.Generate(ctx, prompt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate relationship validation")
	}

	result, err := common.ParseJSON[weakResponse](response)
	if err != nil {
		return nil, parseError(err, "relationship validation")
	}

	out := make([]model.WeakItem, 0, len(result.Weak))
	for i, w := range result.Weak {
		p, err := toRelationship(w.Source, w.Target, w.Kind, w.Reason)
		if err != nil {
			return nil, schemaError("relationship validation", "weak item %d: %v", i, err)
		}
		out = append(out, model.WeakItem{Key: p.Key(), Reason: w.Reason})
	}
	return out, nil
}

func toRelationship(source, target, kind, reason string) (model.RelationshipProposal, error) {
	source, target = strings.TrimSpace(source), strings.TrimSpace(target)
	if source == "" || target == "" {
		return model.RelationshipProposal{}, errors.New("source and target are required")
	}
	// Unknown kinds pass through normalized; the caller drops them.
	k, _ := model.ParseRelationKind(kind)
	return model.RelationshipProposal{Source: source, Target: target, Kind: k, Reason: reason}, nil
}

func serializeConcepts(concepts []model.Concept) string {
	var b strings.Builder
	for _, c := range concepts {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Definition)
	}
	return b.String()
}

func serializeAvoid(avoid []model.WeakItem) string {
	if len(avoid) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for _, w := range avoid {
		fmt.Fprintf(&b, "- %s (%s)\n", w.Key, w.Reason)
	}
	return b.String()
}

func serializeDefinitions(defs map[string]string) string {
	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "- %s: %s\n", n, defs[n])
	}
	return b.String()
}
