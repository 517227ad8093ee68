// Package apply commits a normalization plan to the graph store.
package apply

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/driver"
)

// GraphStore is the write side the applier needs.
type GraphStore interface {
	// MergeNodes collapses the variants into canonical in one transaction:
	// edges are redirected, variant names become aliases and variant nodes
	// are removed. It reports false, without writing, when no variant
	// exists anymore.
	MergeNodes(ctx context.Context, canonical string, variants []string) (bool, error)
	// UpsertRelationship creates or updates a typed edge. It reports false
	// when either endpoint is missing.
	UpsertRelationship(ctx context.Context, r model.RelationshipProposal) (bool, error)
}

type MemgraphStore struct {
	Driver driver.GraphDriver
}

func NewMemgraphStore(d driver.GraphDriver) *MemgraphStore {
	return &MemgraphStore{Driver: d}
}

func (s *MemgraphStore) MergeNodes(ctx context.Context, canonical string, variants []string) (bool, error) {
	merged := false
	err := s.Driver.ExecuteWrite(ctx, func(tx driver.Tx) error {
		merged = false
		params := map[string]interface{}{
			"canonical": canonical,
			"variants":  variants,
		}

		records, err := tx.Run(ctx, driver.GetVariantsQuery, params)
		if err != nil {
			return errors.Wrap(err, "failed to load variants")
		}
		if len(records) == 0 {
			return nil
		}

		aliases := map[string]bool{}
		definition := ""
		for _, rec := range records {
			name := recordString(rec, "name")
			aliases[name] = true
			for _, a := range recordStrings(rec, "aliases") {
				aliases[a] = true
			}
			if d := recordString(rec, "definition"); len(d) > len(definition) {
				definition = d
			}
		}

		canon, err := tx.Run(ctx, driver.EnsureCanonicalQuery, map[string]interface{}{
			"canonical":  canonical,
			"definition": definition,
		})
		if err != nil {
			return errors.Wrap(err, "failed to ensure canonical node")
		}
		for _, rec := range canon {
			for _, a := range recordStrings(rec, "aliases") {
				aliases[a] = true
			}
		}

		if _, err := tx.Run(ctx, driver.RedirectOutgoingEdgesQuery, params); err != nil {
			return errors.Wrap(err, "failed to redirect outgoing edges")
		}
		if _, err := tx.Run(ctx, driver.RedirectIncomingEdgesQuery, params); err != nil {
			return errors.Wrap(err, "failed to redirect incoming edges")
		}

		delete(aliases, canonical)
		list := make([]string, 0, len(aliases))
		for a := range aliases {
			list = append(list, a)
		}
		sort.Strings(list)
		if _, err := tx.Run(ctx, driver.SetAliasesQuery, map[string]interface{}{
			"canonical": canonical,
			"aliases":   list,
		}); err != nil {
			return errors.Wrap(err, "failed to set aliases")
		}

		if _, err := tx.Run(ctx, driver.DeleteVariantsQuery, params); err != nil {
			return errors.Wrap(err, "failed to delete variants")
		}
		merged = true
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "merge into '%s'", canonical)
	}
	return merged, nil
}

func (s *MemgraphStore) UpsertRelationship(ctx context.Context, r model.RelationshipProposal) (bool, error) {
	upserted := false
	err := s.Driver.ExecuteWrite(ctx, func(tx driver.Tx) error {
		records, err := tx.Run(ctx, driver.UpsertRelationshipQuery, map[string]interface{}{
			"source": r.Source,
			"target": r.Target,
			"kind":   string(r.Kind),
			"props":  map[string]interface{}{"reason": r.Reason},
		})
		if err != nil {
			return err
		}
		upserted = false
		for _, rec := range records {
			if n, ok := rec.Get("upserted"); ok {
				if count, ok := n.(int64); ok && count > 0 {
					upserted = true
				}
			}
		}
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "upsert %s", r.Key())
	}
	return upserted, nil
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func recordStrings(rec *neo4j.Record, key string) []string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
