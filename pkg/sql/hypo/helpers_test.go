// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hypo

import (
	"context"

	"github.com/cockroachdb/hypo/pkg/sql/cat"
	"github.com/cockroachdb/hypo/pkg/sql/stats"
)

// testTable is a minimal cat.Table for catalog tests.
type testTable struct {
	id   cat.StableID
	name string
	cols []cat.Column
}

var _ cat.Table = &testTable{}

func newTestTable(id cat.StableID, name string, cols ...cat.Column) *testTable {
	return &testTable{id: id, name: name, cols: cols}
}

func (t *testTable) ID() cat.StableID                   { return t.id }
func (t *testTable) Name() string                       { return t.name }
func (t *testTable) ColumnCount() int                   { return len(t.cols) }
func (t *testTable) Column(i int) *cat.Column           { return &t.cols[i] }
func (t *testTable) IndexCount() int                    { return 0 }
func (t *testTable) Index(i int) cat.Index              { return nil }
func (t *testTable) StatisticCount() int                { return 0 }
func (t *testTable) Statistic(i int) cat.TableStatistic { return nil }

// fakeCatalog is the stand-in for the host's real catalog behind the
// injector. It records delegated calls so tests can assert pass-through.
type fakeCatalog struct {
	tables map[cat.StableID]cat.Table

	relationInfoCalls int
	pathHintCalls     int
}

var _ cat.PlannerCatalog = &fakeCatalog{}

func newFakeCatalog(tabs ...cat.Table) *fakeCatalog {
	f := &fakeCatalog{tables: make(map[cat.StableID]cat.Table)}
	for _, t := range tabs {
		f.tables[t.ID()] = t
	}
	return f
}

func (f *fakeCatalog) RelationInfo(
	ctx context.Context, id cat.StableID, inhParent bool,
) (*cat.RelationInfo, error) {
	f.relationInfoCalls++
	return &cat.RelationInfo{Table: f.tables[id]}, nil
}

func (f *fakeCatalog) RelPathHint(ctx context.Context, rte cat.RangeTableEntry) cat.PathHint {
	f.pathHintCalls++
	return cat.PathDefault
}

func (f *fakeCatalog) PartitionDescriptor(
	ctx context.Context, id cat.StableID,
) (*cat.PartitionDescriptor, bool) {
	return nil, false
}

func (f *fakeCatalog) PartitionKey(ctx context.Context, id cat.StableID) (*cat.PartitionKey, bool) {
	return nil, false
}

func (f *fakeCatalog) HasSubclasses(ctx context.Context, id cat.StableID) bool { return false }

func (f *fakeCatalog) FindAllInheritors(ctx context.Context, id cat.StableID) []cat.StableID {
	return []cat.StableID{id}
}

func (f *fakeCatalog) ExpandChildRTE(
	ctx context.Context, parent cat.RangeTableEntry, desc *cat.PartitionDescriptor,
) []cat.RangeTableEntry {
	return nil
}

func (f *fakeCatalog) BuildChildRTE(
	ctx context.Context, child cat.RangeTableEntry, parentID, childID cat.StableID,
) cat.RangeTableEntry {
	child.RelID = childID
	child.ParentID = parentID
	return child
}

// testEnv bundles a fully wired registry around a fake host catalog.
type testEnv struct {
	session  *Session
	ids      *IDAllocator
	provider *stats.MemoProvider
	est      *stats.Estimator
	indexes  *IndexCatalog
	tables   *TableCatalog
	fallback *fakeCatalog
	inj      *Injector
}

func newTestEnv(tabs ...cat.Table) *testEnv {
	env := &testEnv{
		session:  NewSession(),
		ids:      NewIDAllocator(),
		provider: stats.NewMemoProvider(),
		fallback: newFakeCatalog(tabs...),
	}
	env.est = stats.NewEstimator(env.provider, stats.Options{})
	env.indexes = NewIndexCatalog(env.ids, env.est)
	env.tables = NewTableCatalog(env.ids)
	env.inj = NewInjector(env.session, env.indexes, env.tables, env.est, env.fallback)
	return env
}

// ordersTable is the schema most tests use.
func ordersTable() *testTable {
	return newTestTable(42, "orders",
		cat.Column{Name: "id", Typ: cat.Int, NotNull: true},
		cat.Column{Name: "customer_id", Typ: cat.Int},
		cat.Column{Name: "region", Typ: cat.String, Width: 12},
		cat.Column{Name: "total", Typ: cat.Float},
	)
}
