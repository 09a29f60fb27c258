// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hypo

import (
	"github.com/cockroachdb/hypo/pkg/sql/cat"
	"github.com/cockroachdb/hypo/pkg/util/humanizeutil"
)

// IndexSummary is one row of the hypothetical index listing.
type IndexSummary struct {
	ID    cat.StableID
	Name  string
	Table string

	// Definition spells the index as the CREATE INDEX statement that would
	// build it for real.
	Definition string

	// Size is the estimated on-disk size, human readable (e.g. "16 MiB").
	Size string
}

// Summaries returns one summary per entry, in creation order.
func (c *IndexCatalog) Summaries() []IndexSummary {
	pageSize := c.est.Options().PageSize
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]IndexSummary, 0, len(c.mu.entries))
	for _, e := range c.mu.entries {
		out = append(out, IndexSummary{
			ID:         e.id,
			Name:       e.name,
			Table:      e.tableName,
			Definition: e.Definition(e.tableName),
			Size:       humanizeutil.IBytes(e.est.PageCount * pageSize),
		})
	}
	return out
}

// RelationSize returns the estimated size in bytes of one hypothetical index,
// the analog of a relation-size probe against a real index.
func (c *IndexCatalog) RelationSize(id cat.StableID) (int64, error) {
	e, err := c.FindByID(id)
	if err != nil {
		return 0, err
	}
	return e.est.PageCount * c.est.Options().PageSize, nil
}

// TableSummary is one row of the hypothetical partitioning listing: a node of
// the forest with its position spelled out.
type TableSummary struct {
	ID     cat.StableID
	Name   string
	Parent cat.StableID

	// Bound renders the node's bound within its parent, empty for roots.
	Bound string

	// Strategy renders the node's own partitioning, empty for leaves.
	Strategy string
}

// Summaries returns one summary per forest node, roots first and each subtree
// in canonical bound order.
func (c *TableCatalog) Summaries() []TableSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []TableSummary
	var walk func(ht *HypoTable)
	walk = func(ht *HypoTable) {
		s := TableSummary{ID: ht.id, Name: ht.name, Parent: ht.parentID}
		if ht.parentID != 0 {
			s.Bound = ht.bound.String()
		}
		if ht.key != nil {
			s.Strategy = ht.key.Strategy.String()
		}
		out = append(out, s)
		if ht.key == nil {
			return
		}
		for _, p := range ht.orderedParts() {
			if p.node != nil {
				walk(p.node)
			} else {
				out = append(out, TableSummary{
					ID:     p.childID,
					Parent: ht.id,
					Bound:  p.bound.String(),
				})
			}
		}
	}
	// Roots in stable order of the real tables they overlay.
	for _, root := range c.rootsInOrderLocked() {
		walk(root)
	}
	return out
}

func (c *TableCatalog) rootsInOrderLocked() []*HypoTable {
	out := make([]*HypoTable, 0, len(c.mu.roots))
	for _, root := range c.mu.roots {
		out = append(out, root)
	}
	// Synthetic identifiers are allocated monotonically, so sorting by them
	// reproduces declaration order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].id > out[j].id; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
