package driver

const (
	GetAllConceptsQuery = `
		MATCH (c:Concept)
		RETURN c.name AS name, coalesce(c.definition, "") AS definition
		ORDER BY name
	`

	GetDefinitionsQuery = `
		MATCH (c:Concept)
		WHERE c.name IN $names
		RETURN c.name AS name, coalesce(c.definition, "") AS definition
	`

	// GetVariantsQuery finds variant nodes that still exist. An empty result
	// means the group was already merged.
	GetVariantsQuery = `
		MATCH (v:Concept)
		WHERE v.name IN $variants AND v.name <> $canonical
		RETURN v.name AS name, coalesce(v.definition, "") AS definition, coalesce(v.aliases, []) AS aliases
		ORDER BY name
	`

	EnsureCanonicalQuery = `
		MERGE (c:Concept {name: $canonical})
		ON CREATE SET c.definition = $definition, c.aliases = []
		RETURN c.name AS name, coalesce(c.aliases, []) AS aliases
	`

	RedirectOutgoingEdgesQuery = `
		MATCH (v:Concept)-[r:RELATES_TO]->(t:Concept)
		WHERE v.name IN $variants
		MATCH (c:Concept {name: $canonical})
		WITH c, r, CASE WHEN t.name IN $variants THEN c ELSE t END AS target
		WHERE target.name <> c.name
		MERGE (c)-[nr:RELATES_TO {kind: r.kind}]->(target)
		SET nr += properties(r)
		DELETE r
		RETURN count(nr) AS redirected
	`

	RedirectIncomingEdgesQuery = `
		MATCH (s:Concept)-[r:RELATES_TO]->(v:Concept)
		WHERE v.name IN $variants AND NOT s.name IN $variants
		MATCH (c:Concept {name: $canonical})
		WITH c, r, s
		WHERE s.name <> c.name
		MERGE (s)-[nr:RELATES_TO {kind: r.kind}]->(c)
		SET nr += properties(r)
		DELETE r
		RETURN count(nr) AS redirected
	`

	SetAliasesQuery = `
		MATCH (c:Concept {name: $canonical})
		SET c.aliases = $aliases
		RETURN c.name AS name
	`

	DeleteVariantsQuery = `
		MATCH (v:Concept)
		WHERE v.name IN $variants AND v.name <> $canonical
		DETACH DELETE v
	`

	UpsertRelationshipQuery = `
		MATCH (s:Concept {name: $source})
		MATCH (t:Concept {name: $target})
		MERGE (s)-[r:RELATES_TO {kind: $kind}]->(t)
		SET r += $props
		RETURN count(r) AS upserted
	`
)
