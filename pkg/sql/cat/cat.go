// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package cat contains the interfaces and shapes through which a planner sees
// catalog objects: tables, indexes, columns, statistics and partitioning.
// Both the real catalog and hypothetical overlays implement these interfaces,
// so the planner cannot tell a simulated object from a genuine one.
package cat

// StableID identifies a catalog object. IDs of hypothetical objects are
// allocated from a range disjoint from real object IDs; see
// hypo.FirstHypotheticalID.
type StableID uint64

// ColType enumerates the column types the estimator understands.
type ColType int8

const (
	// Int is a 64-bit integer column.
	Int ColType = iota
	// Float is a 64-bit floating point column.
	Float
	// String is a variable-width string column.
	String
	// Bytes is a variable-width binary column.
	Bytes
	// Timestamp is a timestamp column.
	Timestamp
	// Bool is a boolean column.
	Bool
)

// Width returns the fixed storage width of the type in bytes, or the given
// default for variable-width types.
func (t ColType) Width(varDefault int64) int64 {
	switch t {
	case Int, Float, Timestamp:
		return 8
	case Bool:
		return 1
	default:
		return varDefault
	}
}

// Column describes a table column.
type Column struct {
	Name    string
	Typ     ColType
	NotNull bool

	// Width is the average stored width in bytes. Zero means "use the type
	// default".
	Width int64
}

// AccessMethod enumerates index access methods. The set is open-ended: values
// above Brin are treated as tree-shaped unless registered otherwise.
type AccessMethod int8

const (
	// BTree is the ordered-tree access method.
	BTree AccessMethod = iota
	// Hash is the hash access method.
	Hash
	// GiST is the generalized-search-tree access method.
	GiST
	// Brin is the block-range access method.
	Brin
)

// String implements fmt.Stringer.
func (am AccessMethod) String() string {
	switch am {
	case BTree:
		return "btree"
	case Hash:
		return "hash"
	case GiST:
		return "gist"
	case Brin:
		return "brin"
	}
	return "unknown"
}

// IsTreeShaped returns true if the access method stores entries in a balanced
// tree, meaning a tree height estimate is meaningful for it.
func (am AccessMethod) IsTreeShaped() bool {
	return am == BTree || am == GiST
}

// SupportsUnique returns true if the access method can enforce uniqueness.
func (am AccessMethod) SupportsUnique() bool {
	return am == BTree
}

// IndexColumn describes a single column of an index: a reference to a table
// column plus per-index ordering attributes.
type IndexColumn struct {
	// Column is the underlying table column. It is owned by the table
	// descriptor, never by the index.
	Column *Column

	// Ordinal is the position of Column in its table.
	Ordinal int

	// Descending is true if the index orders this column descending.
	Descending bool

	// Collation names the collation used for string ordering. Empty means the
	// default collation.
	Collation string
}

// Table is the planner's view of a table.
type Table interface {
	// ID returns the table's stable identifier.
	ID() StableID

	// Name returns the table's name.
	Name() string

	// ColumnCount returns the number of columns.
	ColumnCount() int

	// Column returns the i-th column.
	Column(i int) *Column

	// IndexCount returns the number of indexes visible on the table.
	IndexCount() int

	// Index returns the i-th index.
	Index(i int) Index

	// StatisticCount returns the number of statistics available.
	StatisticCount() int

	// Statistic returns the i-th statistic.
	Statistic(i int) TableStatistic
}

// Index is the planner's view of an index.
type Index interface {
	// ID returns the index's stable identifier.
	ID() StableID

	// Name returns the index's name.
	Name() string

	// Table returns the table the index is defined on.
	Table() StableID

	// IsUnique returns true if the index enforces uniqueness.
	IsUnique() bool

	// AccessMethod returns the index's access method.
	AccessMethod() AccessMethod

	// ColumnCount returns the number of indexed columns.
	ColumnCount() int

	// Column returns the i-th indexed column.
	Column(i int) IndexColumn

	// Predicate returns the partial index predicate and true, or "" and false
	// if the index is not partial.
	Predicate() (string, bool)

	// PageCount returns the (real or estimated) number of pages in the index.
	PageCount() int64

	// TreeHeight returns the (real or estimated) tree height for tree-shaped
	// access methods, and zero otherwise.
	TreeHeight() int32
}

// TableStatistic is the planner's view of a single collected statistic.
type TableStatistic interface {
	// RowCount returns the estimated number of rows in the table.
	RowCount() uint64

	// DistinctCount returns the estimated number of distinct values of the
	// columns the statistic covers.
	DistinctCount() uint64

	// NullCount returns the number of rows with a null in any covered column.
	NullCount() uint64
}
