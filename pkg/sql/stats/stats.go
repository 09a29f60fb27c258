// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package stats holds baseline table statistics and the estimation logic that
// derives sizes, selectivities and partition pruning decisions for
// hypothetical objects from them. Estimates are deterministic given the same
// baseline statistics, and missing statistics fall back to conservative
// defaults rather than failing.
package stats

import (
	"context"

	"github.com/cockroachdb/hypo/pkg/sql/cat"
	"github.com/cockroachdb/hypo/pkg/util/log"
	"github.com/cockroachdb/hypo/pkg/util/syncutil"
)

// TableStatistics holds the previously collected statistics for one table.
// It mirrors what an ANALYZE-style collection produces: a table-wide row
// count plus per-column distribution data.
type TableStatistics struct {
	// TableID is the table the statistics describe.
	TableID cat.StableID

	// RowCount is the total number of rows in the table.
	RowCount uint64

	// AvgRowWidth is the average row width in bytes.
	AvgRowWidth int64

	// ColumnStats maps column names to per-column statistics.
	ColumnStats map[string]*ColumnStatistic
}

// ColumnStatistic holds the distribution data of a single column.
type ColumnStatistic struct {
	// DistinctCount is the estimated number of distinct values.
	DistinctCount uint64

	// NullCount is the number of rows with a null in the column.
	NullCount uint64

	// AvgWidth is the average stored width of the column in bytes.
	AvgWidth int64

	// Histogram describes the value distribution. It may be nil.
	Histogram *Histogram
}

// Column returns the statistic for the named column, or nil if none was
// collected.
func (ts *TableStatistics) Column(name string) *ColumnStatistic {
	if ts == nil {
		return nil
	}
	return ts.ColumnStats[name]
}

// Provider supplies baseline statistics for real tables. The host's catalog
// machinery implements it; reads through it must be short-scoped, since the
// injection engine calls it while splicing synthetic metadata into a planning
// pass.
type Provider interface {
	// Lookup returns the statistics for the given table, or false if the
	// table was never analyzed.
	Lookup(ctx context.Context, tableID cat.StableID) (*TableStatistics, bool)
}

// MemoProvider is an in-memory Provider keyed by table ID. It doubles as the
// test double for hosts that load statistics eagerly.
type MemoProvider struct {
	mu struct {
		syncutil.Mutex
		stats map[cat.StableID]*TableStatistics
	}
}

var _ Provider = &MemoProvider{}

// NewMemoProvider returns an empty MemoProvider.
func NewMemoProvider() *MemoProvider {
	p := &MemoProvider{}
	p.mu.stats = make(map[cat.StableID]*TableStatistics)
	return p
}

// Add stores statistics for a table, replacing any previous entry.
func (p *MemoProvider) Add(ts *TableStatistics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mu.stats[ts.TableID] = ts
}

// Lookup implements Provider.
func (p *MemoProvider) Lookup(ctx context.Context, tableID cat.StableID) (*TableStatistics, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ts, ok := p.mu.stats[tableID]
	if log.V(2) {
		log.Infof(ctx, "t%d: baseline statistics lookup, found=%t", tableID, ok)
	}
	return ts, ok
}
