package config

const defaultProposeMerges = `You are normalizing a catalog of concepts.

<CONCEPTS>
%s
</CONCEPTS>

<AVOID>
%s
</AVOID>

Instructions:
Identify pairs of concept names from CONCEPTS that denote the same underlying concept
(spelling variants, abbreviations, case differences, synonyms).
Only use names exactly as written in CONCEPTS. Never propose a pair listed in AVOID.
For each pair give the name that should survive as "canonical".
Return a JSON object with key "merges".

Example JSON:
{
  "merges": [
    {"a": "ETL", "b": "Extract Transform Load", "canonical": "ETL", "reason": "abbreviation"}
  ]
}
If there are no pairs, return {"merges": []}.`

const defaultProposeRelationships = `You are building a concept graph.

<CONCEPTS>
%s
</CONCEPTS>

<AVOID>
%s
</AVOID>

Instructions:
Propose directed relationships between distinct concepts from CONCEPTS.
Allowed kinds: prerequisite_of, part_of, is_a, related_to, used_for, contrasts_with.
Only use names exactly as written in CONCEPTS. Never propose a relationship listed in AVOID.
Return a JSON object with key "relationships".

Example JSON:
{
  "relationships": [
    {"source": "ETL", "target": "Data Warehouse", "kind": "used_for", "reason": "ETL loads warehouses"}
  ]
}
If there are none, return {"relationships": []}.`

const defaultValidateMerges = `Review proposed concept merges.

<PROPOSALS>
%s
</PROPOSALS>

<DEFINITIONS>
%s
</DEFINITIONS>

Instructions:
Be strict. A merge is weak when the two names do not denote the same concept according to
their definitions. Return a JSON object with key "weak" listing only weak proposals.

Example JSON:
{ "weak": [ {"a": "Java", "b": "JavaScript", "reason": "different languages"} ] }
If every proposal is sound, return {"weak": []}.`

const defaultValidateRelationships = `Review proposed concept relationships.

<PROPOSALS>
%s
</PROPOSALS>

<DEFINITIONS>
%s
</DEFINITIONS>

Instructions:
Be strict. A relationship is weak when the definitions do not support it or the kind is wrong.
Return a JSON object with key "weak" listing only weak proposals.

Example JSON:
{ "weak": [ {"source": "SQL", "target": "Statistics", "kind": "part_of", "reason": "unrelated"} ] }
If every proposal is sound, return {"weak": []}.`

func DefaultPrompts() Prompts {
	return Prompts{
		ProposeMerges:         defaultProposeMerges,
		ProposeRelationships:  defaultProposeRelationships,
		ValidateMerges:        defaultValidateMerges,
		ValidateRelationships: defaultValidateRelationships,
	}
}

func (p Prompts) withDefaults() Prompts {
	d := DefaultPrompts()
	if p.ProposeMerges == "" {
		p.ProposeMerges = d.ProposeMerges
	}
	if p.ProposeRelationships == "" {
		p.ProposeRelationships = d.ProposeRelationships
	}
	if p.ValidateMerges == "" {
		p.ValidateMerges = d.ValidateMerges
	}
	if p.ValidateRelationships == "" {
		p.ValidateRelationships = d.ValidateRelationships
	}
	return p
}
