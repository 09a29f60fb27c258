// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hypo

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/hypo/pkg/sql/cat"
	"github.com/cockroachdb/hypo/pkg/sql/stats"
	"github.com/cockroachdb/hypo/pkg/util/log"
	"github.com/cockroachdb/hypo/pkg/util/syncutil"
)

// IndexColumnSpec names one column of a requested hypothetical index.
type IndexColumnSpec struct {
	Name       string
	Descending bool
	Collation  string
}

// IndexSpec is a request to create a hypothetical index. It mirrors what a
// CREATE INDEX statement would carry, minus anything requiring storage.
type IndexSpec struct {
	// Table is the owning table. For an index on a hypothetical partition,
	// this is the root real table whose schema the partition shares.
	Table cat.Table

	// OwnerID is the relation the index is attached to. Zero means
	// Table.ID(); it differs only when attaching to a hypothetical partition
	// node.
	OwnerID cat.StableID

	Columns      []IndexColumnSpec
	AccessMethod cat.AccessMethod

	// Unique requests a uniqueness-enforcing index. Only access methods that
	// support it (btree) accept the flag.
	Unique bool

	// Predicate is the partial-index predicate expression, verbatim. Empty
	// means the index is not partial.
	Predicate string

	// FillFactor overrides the default build fill factor. Zero means default.
	FillFactor int64

	// AMOptions is the opaque access-method-specific relation options blob
	// (operator classes, storage parameters). It is carried, not interpreted.
	AMOptions map[string]string
}

// HypoIndex is a catalog entry for one hypothetical index. Entries are owned
// by the IndexCatalog and outlive any single planning pass; injection builds
// transient wrappers around them, never copies.
type HypoIndex struct {
	id        cat.StableID
	ownerID   cat.StableID
	name      string
	tableName string

	am        cat.AccessMethod
	unique    bool
	predicate string
	fill      int64
	amOptions map[string]string

	// cols resolve into the owning table's real column descriptors.
	cols []cat.IndexColumn

	// est is the size estimate computed at creation time from the baseline
	// statistics then available. Injection refreshes it per pass.
	est stats.IndexSize
}

// ID returns the synthetic identifier.
func (hi *HypoIndex) ID() cat.StableID { return hi.id }

// OwnerID returns the relation the index is attached to.
func (hi *HypoIndex) OwnerID() cat.StableID { return hi.ownerID }

// Name returns the synthesized index name.
func (hi *HypoIndex) Name() string { return hi.name }

// TableName returns the name of the owning table.
func (hi *HypoIndex) TableName() string { return hi.tableName }

// AccessMethod returns the index's access method.
func (hi *HypoIndex) AccessMethod() cat.AccessMethod { return hi.am }

// IsUnique returns true for unique indexes.
func (hi *HypoIndex) IsUnique() bool { return hi.unique }

// ColumnCount returns the number of indexed columns.
func (hi *HypoIndex) ColumnCount() int { return len(hi.cols) }

// Column returns the i-th indexed column.
func (hi *HypoIndex) Column(i int) cat.IndexColumn { return hi.cols[i] }

// Predicate returns the partial-index predicate, if any.
func (hi *HypoIndex) Predicate() (string, bool) { return hi.predicate, hi.predicate != "" }

// Definition renders the index the way a CREATE INDEX statement would spell
// it, for listing purposes.
func (hi *HypoIndex) Definition(tableName string) string {
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if hi.unique {
		sb.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&sb, "INDEX ON %s USING %s (", tableName, hi.am)
	for i := range hi.cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(hi.cols[i].Column.Name)
		if hi.cols[i].Collation != "" {
			fmt.Fprintf(&sb, " COLLATE %s", hi.cols[i].Collation)
		}
		if hi.cols[i].Descending {
			sb.WriteString(" DESC")
		}
	}
	sb.WriteString(")")
	if hi.predicate != "" {
		fmt.Fprintf(&sb, " WHERE %s", hi.predicate)
	}
	return sb.String()
}

// IndexCatalog is the registry of hypothetical indexes: an insertion-ordered
// collection keyed by synthetic identifier, with lookup by owning relation.
// It is safe for use from multiple sessions; readers iterate over immutable
// snapshots so a concurrent reset cannot invalidate structures mid-use.
type IndexCatalog struct {
	ids *IDAllocator
	est *stats.Estimator

	mu struct {
		syncutil.Mutex
		// entries is append-only between resets, preserving creation order.
		entries []*HypoIndex
		byID    map[cat.StableID]*HypoIndex
	}
}

// NewIndexCatalog returns an empty index catalog drawing identifiers from ids
// and size estimates from est.
func NewIndexCatalog(ids *IDAllocator, est *stats.Estimator) *IndexCatalog {
	c := &IndexCatalog{ids: ids, est: est}
	c.mu.byID = make(map[cat.StableID]*HypoIndex)
	return c
}

// Add validates the spec against the owning table's real schema, allocates an
// identifier, stores the entry and returns it. The catalog is unchanged on
// failure.
func (c *IndexCatalog) Add(ctx context.Context, spec IndexSpec) (*HypoIndex, error) {
	entry, err := c.buildEntry(ctx, spec)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.entries = append(c.mu.entries, entry)
	c.mu.byID[entry.id] = entry
	if log.V(1) {
		log.Infof(ctx, "created hypothetical index %s on relation %d", entry.name, entry.ownerID)
	}
	return entry, nil
}

// buildEntry validates and assembles an entry without touching catalog state.
func (c *IndexCatalog) buildEntry(ctx context.Context, spec IndexSpec) (*HypoIndex, error) {
	if spec.Table == nil {
		return nil, validationf("no owning table")
	}
	if len(spec.Columns) == 0 {
		return nil, validationf("hypothetical index needs at least one column")
	}
	switch spec.AccessMethod {
	case cat.BTree, cat.Hash, cat.GiST, cat.Brin:
	default:
		return nil, validationf("access method %q is not supported", spec.AccessMethod)
	}
	if spec.Unique && !spec.AccessMethod.SupportsUnique() {
		return nil, validationf("access method %q does not support unique indexes", spec.AccessMethod)
	}
	if spec.FillFactor != 0 && (spec.FillFactor < 10 || spec.FillFactor > 100) {
		return nil, validationf("fillfactor %d is out of range 10..100", spec.FillFactor)
	}

	cols := make([]cat.IndexColumn, len(spec.Columns))
	for i, sc := range spec.Columns {
		ord, col := findColumn(spec.Table, sc.Name)
		if col == nil {
			return nil, validationf(
				"column %q does not exist in table %q", sc.Name, spec.Table.Name())
		}
		cols[i] = cat.IndexColumn{
			Column:     col,
			Ordinal:    ord,
			Descending: sc.Descending,
			Collation:  sc.Collation,
		}
	}

	ownerID := spec.OwnerID
	if ownerID == 0 {
		ownerID = spec.Table.ID()
	}

	id := c.ids.Next()
	entry := &HypoIndex{
		id:        id,
		ownerID:   ownerID,
		am:        spec.AccessMethod,
		unique:    spec.Unique,
		predicate: spec.Predicate,
		fill:      spec.FillFactor,
		amOptions: spec.AMOptions,
		cols:      cols,
	}
	entry.tableName = spec.Table.Name()
	entry.name = synthesizeIndexName(id, spec.AccessMethod, spec.Table.Name(), spec.Columns)

	// Baseline statistics are read once, released immediately; missing stats
	// fall back to defaults inside the estimator.
	ts, _ := c.est.BaselineFor(ctx, spec.Table.ID())
	entry.est = c.est.EstimateIndexSize(ctx, ts, entry.am, entry.cols, entry.fill)
	return entry, nil
}

// synthesizeIndexName builds names of the form <14000>btree_tab_col, keeping
// the synthetic identifier visible so plan output is attributable.
func synthesizeIndexName(
	id cat.StableID, am cat.AccessMethod, table string, cols []IndexColumnSpec,
) string {
	parts := make([]string, 0, len(cols)+2)
	parts = append(parts, am.String(), table)
	for _, c := range cols {
		parts = append(parts, c.Name)
	}
	return fmt.Sprintf("<%d>%s", id, strings.Join(parts, "_"))
}

// Remove deletes one entry. It fails with a NotFound error if the identifier
// is unknown.
func (c *IndexCatalog) Remove(id cat.StableID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.mu.byID[id]; !ok {
		return notFoundf("hypothetical index %d does not exist", id)
	}
	delete(c.mu.byID, id)
	for i := range c.mu.entries {
		if c.mu.entries[i].id == id {
			c.mu.entries = append(c.mu.entries[:i], c.mu.entries[i+1:]...)
			break
		}
	}
	return nil
}

// Reset clears all entries.
func (c *IndexCatalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.entries = nil
	c.mu.byID = make(map[cat.StableID]*HypoIndex)
}

// FindByID returns the entry with the given identifier, or a NotFound error.
func (c *IndexCatalog) FindByID(id cat.StableID) (*HypoIndex, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.mu.byID[id]; ok {
		return e, nil
	}
	return nil, notFoundf("hypothetical index %d does not exist", id)
}

// LookupByTable returns a restartable iterator over the entries attached to
// the given relation, in creation order. The iterator walks a snapshot: later
// catalog mutations do not affect it.
func (c *IndexCatalog) LookupByTable(tableID cat.StableID) *IndexIterator {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matched []*HypoIndex
	for _, e := range c.mu.entries {
		if e.ownerID == tableID {
			matched = append(matched, e)
		}
	}
	return &IndexIterator{entries: matched, pos: -1}
}

// Len returns the number of entries.
func (c *IndexCatalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mu.entries)
}

// IndexIterator is a restartable cursor over a snapshot of catalog entries.
type IndexIterator struct {
	entries []*HypoIndex
	pos     int
}

// Next advances the iterator and returns false when exhausted.
func (it *IndexIterator) Next() bool {
	it.pos++
	return it.pos < len(it.entries)
}

// Cur returns the current entry. Next must have returned true.
func (it *IndexIterator) Cur() *HypoIndex {
	return it.entries[it.pos]
}

// Rewind restarts the iterator from the beginning of its snapshot.
func (it *IndexIterator) Rewind() {
	it.pos = -1
}

func findColumn(tab cat.Table, name string) (int, *cat.Column) {
	for i, n := 0, tab.ColumnCount(); i < n; i++ {
		if col := tab.Column(i); col.Name == name {
			return i, col
		}
	}
	return -1, nil
}
