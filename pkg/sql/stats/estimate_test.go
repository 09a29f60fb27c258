// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"context"
	"testing"

	"github.com/cockroachdb/hypo/pkg/sql/cat"
	"github.com/stretchr/testify/require"
)

func intCol(name string) []cat.IndexColumn {
	return []cat.IndexColumn{{Column: &cat.Column{Name: name, Typ: cat.Int}}}
}

func statsFor(id cat.StableID, rows uint64) *TableStatistics {
	return &TableStatistics{TableID: id, RowCount: rows, AvgRowWidth: 64}
}

func TestEstimateIndexSizeDeterministic(t *testing.T) {
	ctx := context.Background()
	e := NewEstimator(nil, Options{})
	ts := statsFor(1, 500_000)

	first := e.EstimateIndexSize(ctx, ts, cat.BTree, intCol("id"), 0)
	for i := 0; i < 3; i++ {
		require.Equal(t, first, e.EstimateIndexSize(ctx, ts, cat.BTree, intCol("id"), 0))
	}
	require.Greater(t, first.PageCount, int64(0))
	require.GreaterOrEqual(t, first.TreeHeight, int32(1))
}

func TestEstimateIndexSizeScalesWithInput(t *testing.T) {
	ctx := context.Background()
	e := NewEstimator(nil, Options{})

	// More rows, more pages.
	small := e.EstimateIndexSize(ctx, statsFor(1, 10_000), cat.BTree, intCol("id"), 0)
	large := e.EstimateIndexSize(ctx, statsFor(1, 10_000_000), cat.BTree, intCol("id"), 0)
	require.Greater(t, large.PageCount, small.PageCount)
	require.GreaterOrEqual(t, large.TreeHeight, small.TreeHeight)

	// Wider keys, more pages.
	wide := []cat.IndexColumn{
		{Column: &cat.Column{Name: "a", Typ: cat.Int}},
		{Column: &cat.Column{Name: "b", Typ: cat.String, Width: 48}},
	}
	wideSize := e.EstimateIndexSize(ctx, statsFor(1, 10_000_000), cat.BTree, wide, 0)
	require.Greater(t, wideSize.PageCount, large.PageCount)

	// A lower fill factor spreads tuples over more pages.
	packed := e.EstimateIndexSize(ctx, statsFor(1, 10_000_000), cat.BTree, intCol("id"), 100)
	loose := e.EstimateIndexSize(ctx, statsFor(1, 10_000_000), cat.BTree, intCol("id"), 50)
	require.Greater(t, loose.PageCount, packed.PageCount)
}

func TestEstimateIndexSizePacking(t *testing.T) {
	ctx := context.Background()
	e := NewEstimator(nil, Options{})

	// 100k 8-byte keys: a 20-byte maxaligned tuple packs a few hundred per
	// 8KiB page, so the index lands in the low hundreds of pages.
	size := e.EstimateIndexSize(ctx, statsFor(1, 100_000), cat.BTree, intCol("id"), 0)
	require.GreaterOrEqual(t, size.PageCount, int64(150))
	require.LessOrEqual(t, size.PageCount, int64(450))
	require.Equal(t, int32(2), size.TreeHeight)
}

func TestEstimateIndexSizeDefaults(t *testing.T) {
	ctx := context.Background()
	e := NewEstimator(nil, Options{})

	// Never-analyzed tables estimate from the default row count, never zero.
	size := e.EstimateIndexSize(ctx, nil, cat.BTree, intCol("id"), 0)
	require.Greater(t, size.PageCount, int64(0))
	require.GreaterOrEqual(t, size.TreeHeight, int32(1))

	// Collected per-column widths win over type defaults.
	ts := statsFor(1, 1_000_000)
	ts.ColumnStats = map[string]*ColumnStatistic{
		"payload": {AvgWidth: 200},
	}
	cols := []cat.IndexColumn{{Column: &cat.Column{Name: "payload", Typ: cat.String}}}
	withStats := e.EstimateIndexSize(ctx, ts, cat.BTree, cols, 0)
	without := e.EstimateIndexSize(ctx, statsFor(1, 1_000_000), cat.BTree, cols, 0)
	require.Greater(t, withStats.PageCount, without.PageCount)
}

func TestEstimateIndexSizeByAccessMethod(t *testing.T) {
	ctx := context.Background()
	e := NewEstimator(nil, Options{})
	ts := statsFor(1, 10_000_000)

	btree := e.EstimateIndexSize(ctx, ts, cat.BTree, intCol("id"), 0)
	hash := e.EstimateIndexSize(ctx, ts, cat.Hash, intCol("id"), 0)
	brin := e.EstimateIndexSize(ctx, ts, cat.Brin, intCol("id"), 0)

	// Only tree-shaped methods report a height.
	require.GreaterOrEqual(t, btree.TreeHeight, int32(2))
	require.Zero(t, hash.TreeHeight)
	require.Zero(t, brin.TreeHeight)

	// A block-range index summarizes whole page ranges and stays tiny.
	require.Greater(t, brin.PageCount, int64(0))
	require.Less(t, brin.PageCount, btree.PageCount/10)
}

func TestEstimateSelectivity(t *testing.T) {
	ctx := context.Background()
	e := NewEstimator(nil, Options{})
	ts := &TableStatistics{
		TableID:  1,
		RowCount: 1000,
		ColumnStats: map[string]*ColumnStatistic{
			"region": {DistinctCount: 4},
			"flag":   {DistinctCount: 2, NullCount: 500},
		},
	}

	// Equality without a histogram uses the distinct count.
	sel := e.EstimateSelectivity(ctx, ts, []Predicate{
		{Column: "region", Op: EQ, Value: cat.StringDatum("eu")},
	})
	require.InEpsilon(t, 0.25, sel, 1e-9)

	// Nulls never match an equality.
	sel = e.EstimateSelectivity(ctx, ts, []Predicate{
		{Column: "flag", Op: EQ, Value: cat.BoolDatum(true)},
	})
	require.InEpsilon(t, 0.25, sel, 1e-9)

	// Unpriceable predicates fall back to the default selectivity.
	def := e.Options().DefaultSelectivity
	sel = e.EstimateSelectivity(ctx, ts, []Predicate{
		{Column: "unknown", Op: LT, Value: cat.IntDatum(5)},
	})
	require.InEpsilon(t, def, sel, 1e-9)

	// Conjunctions multiply.
	sel = e.EstimateSelectivity(ctx, ts, []Predicate{
		{Column: "region", Op: EQ, Value: cat.StringDatum("eu")},
		{Column: "unknown", Op: LT, Value: cat.IntDatum(5)},
	})
	require.InEpsilon(t, 0.25*def, sel, 1e-9)

	// No predicates: everything matches.
	require.Equal(t, 1.0, e.EstimateSelectivity(ctx, ts, nil))
}

func rangePartition(child cat.StableID, lo, hi int64) cat.Partition {
	return cat.Partition{
		Bound: cat.PartitionBound{Lower: cat.IntDatum(lo), Upper: cat.IntDatum(hi)},
		Child: child,
	}
}

func intKey(name string) *cat.PartitionKey {
	return &cat.PartitionKey{
		Strategy: cat.RangePartition,
		Columns:  []cat.IndexColumn{{Column: &cat.Column{Name: name, Typ: cat.Int}}},
	}
}

func TestPrunePartitionsRange(t *testing.T) {
	e := NewEstimator(nil, Options{})
	desc := &cat.PartitionDescriptor{
		Strategy: cat.RangePartition,
		Partitions: []cat.Partition{
			rangePartition(101, 0, 100),
			rangePartition(102, 100, 200),
			rangePartition(103, 200, 300),
		},
		DefaultChild: 109,
	}
	key := intKey("id")

	testCases := []struct {
		name  string
		preds []Predicate
		want  []cat.StableID
	}{
		{"no predicates", nil, []cat.StableID{101, 102, 103, 109}},
		{"other column", []Predicate{{Column: "x", Op: EQ, Value: cat.IntDatum(5)}},
			[]cat.StableID{101, 102, 103, 109}},
		{"point inside one bound",
			[]Predicate{{Column: "id", Op: EQ, Value: cat.IntDatum(150)}},
			[]cat.StableID{102}},
		{"point outside every bound",
			[]Predicate{{Column: "id", Op: EQ, Value: cat.IntDatum(500)}},
			[]cat.StableID{109}},
		{"upper boundary belongs to the next bound",
			[]Predicate{{Column: "id", Op: EQ, Value: cat.IntDatum(100)}},
			[]cat.StableID{102}},
		{"half-open range spans bounds and spills into the default",
			[]Predicate{{Column: "id", Op: GE, Value: cat.IntDatum(150)}},
			[]cat.StableID{102, 103, 109}},
		{"closed range fully covered, default pruned",
			[]Predicate{
				{Column: "id", Op: GE, Value: cat.IntDatum(50)},
				{Column: "id", Op: LT, Value: cat.IntDatum(250)},
			},
			[]cat.StableID{101, 102, 103}},
		{"contradictory range matches nothing",
			[]Predicate{
				{Column: "id", Op: GT, Value: cat.IntDatum(200)},
				{Column: "id", Op: LT, Value: cat.IntDatum(100)},
			},
			nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, e.PrunePartitions(desc, key, tc.preds))
		})
	}
}

func TestPrunePartitionsOpenBounds(t *testing.T) {
	e := NewEstimator(nil, Options{})
	// Two partitions splitting the whole value space at 0. The explicit
	// bounds reach MAXVALUE, so the default partition is provably empty and
	// must never survive pruning.
	desc := &cat.PartitionDescriptor{
		Strategy: cat.RangePartition,
		Partitions: []cat.Partition{
			{Bound: cat.PartitionBound{Lower: cat.MinVal(), Upper: cat.IntDatum(0)}, Child: 101},
			{Bound: cat.PartitionBound{Lower: cat.IntDatum(0), Upper: cat.MaxVal()}, Child: 102},
		},
		DefaultChild: 109,
	}
	key := intKey("val")

	got := e.PrunePartitions(desc, key, []Predicate{
		{Column: "val", Op: GT, Value: cat.IntDatum(50)},
	})
	require.Equal(t, []cat.StableID{102}, got)

	got = e.PrunePartitions(desc, key, []Predicate{
		{Column: "val", Op: LT, Value: cat.IntDatum(-50)},
	})
	require.Equal(t, []cat.StableID{101}, got)

	// An unconstrained pass over a bound ending at MAXVALUE leaves no
	// remainder either.
	got = e.PrunePartitions(desc, key, []Predicate{
		{Column: "val", Op: GE, Value: cat.IntDatum(-10)},
	})
	require.Equal(t, []cat.StableID{101, 102}, got)
}

func TestPrunePartitionsIncomparablePredicate(t *testing.T) {
	e := NewEstimator(nil, Options{})
	desc := &cat.PartitionDescriptor{
		Strategy: cat.RangePartition,
		Partitions: []cat.Partition{
			rangePartition(101, 0, 100),
			rangePartition(102, 100, 200),
		},
		DefaultChild: 109,
	}
	key := intKey("id")

	// A constant that cannot be ordered against the bounds proves nothing,
	// so nothing is pruned.
	got := e.PrunePartitions(desc, key, []Predicate{
		{Column: "id", Op: EQ, Value: cat.StringDatum("abc")},
	})
	require.Equal(t, desc.ChildIDs(), got)

	// Same when two predicates on the key column disagree on kind.
	got = e.PrunePartitions(desc, key, []Predicate{
		{Column: "id", Op: GE, Value: cat.IntDatum(0)},
		{Column: "id", Op: LT, Value: cat.StringDatum("x")},
	})
	require.Equal(t, desc.ChildIDs(), got)

	// List strategy takes the same fallback.
	listDesc := &cat.PartitionDescriptor{
		Strategy: cat.ListPartition,
		Partitions: []cat.Partition{
			{Bound: cat.PartitionBound{Values: []cat.Datum{cat.StringDatum("eu")}}, Child: 201},
		},
		DefaultChild: 209,
	}
	listKey := &cat.PartitionKey{
		Strategy: cat.ListPartition,
		Columns:  []cat.IndexColumn{{Column: &cat.Column{Name: "region", Typ: cat.String}}},
	}
	got = e.PrunePartitions(listDesc, listKey, []Predicate{
		{Column: "region", Op: EQ, Value: cat.IntDatum(7)},
	})
	require.Equal(t, listDesc.ChildIDs(), got)
}

func TestPrunePartitionsRangeGapKeepsDefault(t *testing.T) {
	e := NewEstimator(nil, Options{})
	// A hole between the explicit bounds routes to the default partition.
	desc := &cat.PartitionDescriptor{
		Strategy: cat.RangePartition,
		Partitions: []cat.Partition{
			rangePartition(101, 0, 100),
			rangePartition(103, 200, 300),
		},
		DefaultChild: 109,
	}
	got := e.PrunePartitions(desc, intKey("id"), []Predicate{
		{Column: "id", Op: GE, Value: cat.IntDatum(50)},
		{Column: "id", Op: LE, Value: cat.IntDatum(250)},
	})
	require.Equal(t, []cat.StableID{101, 103, 109}, got)

	// Without a default partition the hole simply matches nothing extra.
	desc.DefaultChild = 0
	got = e.PrunePartitions(desc, intKey("id"), []Predicate{
		{Column: "id", Op: EQ, Value: cat.IntDatum(150)},
	})
	require.Empty(t, got)
}

func TestPrunePartitionsList(t *testing.T) {
	e := NewEstimator(nil, Options{})
	desc := &cat.PartitionDescriptor{
		Strategy: cat.ListPartition,
		Partitions: []cat.Partition{
			{Bound: cat.PartitionBound{Values: []cat.Datum{
				cat.StringDatum("eu"), cat.StringDatum("uk"),
			}}, Child: 201},
			{Bound: cat.PartitionBound{Values: []cat.Datum{
				cat.StringDatum("us"),
			}}, Child: 202},
		},
		DefaultChild: 209,
	}
	key := &cat.PartitionKey{
		Strategy: cat.ListPartition,
		Columns:  []cat.IndexColumn{{Column: &cat.Column{Name: "region", Typ: cat.String}}},
	}

	// An equality on a listed value routes to exactly that child.
	got := e.PrunePartitions(desc, key, []Predicate{
		{Column: "region", Op: EQ, Value: cat.StringDatum("us")},
	})
	require.Equal(t, []cat.StableID{202}, got)

	// An unlisted value routes to the default alone.
	got = e.PrunePartitions(desc, key, []Predicate{
		{Column: "region", Op: EQ, Value: cat.StringDatum("jp")},
	})
	require.Equal(t, []cat.StableID{209}, got)

	// A range predicate may admit unlisted values, so the default survives.
	got = e.PrunePartitions(desc, key, []Predicate{
		{Column: "region", Op: GE, Value: cat.StringDatum("u")},
	})
	require.Equal(t, []cat.StableID{201, 202, 209}, got)
}

func TestPrunePartitionsHash(t *testing.T) {
	e := NewEstimator(nil, Options{})
	const modulus = 4
	desc := &cat.PartitionDescriptor{Strategy: cat.HashPartition}
	for r := int32(0); r < modulus; r++ {
		desc.Partitions = append(desc.Partitions, cat.Partition{
			Bound: cat.PartitionBound{Modulus: modulus, Remainder: r},
			Child: cat.StableID(301 + r),
		})
	}
	key := &cat.PartitionKey{
		Strategy: cat.HashPartition,
		Columns:  []cat.IndexColumn{{Column: &cat.Column{Name: "id", Typ: cat.Int}}},
	}

	// An equality routes to exactly one child, and always the same one.
	val := cat.IntDatum(42)
	got := e.PrunePartitions(desc, key, []Predicate{{Column: "id", Op: EQ, Value: val}})
	require.Len(t, got, 1)
	want := cat.StableID(301 + int32(hashDatum(val)%modulus))
	require.Equal(t, []cat.StableID{want}, got)

	// Anything but an equality keeps every child.
	got = e.PrunePartitions(desc, key, []Predicate{{Column: "id", Op: GT, Value: val}})
	require.Len(t, got, int(modulus))
}

func TestMemoProvider(t *testing.T) {
	ctx := context.Background()
	p := NewMemoProvider()

	_, ok := p.Lookup(ctx, 1)
	require.False(t, ok)

	p.Add(statsFor(1, 500))
	ts, ok := p.Lookup(ctx, 1)
	require.True(t, ok)
	require.Equal(t, uint64(500), ts.RowCount)

	// Replacement, not accumulation.
	p.Add(statsFor(1, 900))
	ts, _ = p.Lookup(ctx, 1)
	require.Equal(t, uint64(900), ts.RowCount)
}
