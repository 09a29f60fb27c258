// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cat

import (
	"strings"

	"github.com/cockroachdb/redact"
)

// PartitionStrategy enumerates partitioning strategies.
type PartitionStrategy int8

const (
	// RangePartition partitions by contiguous value ranges.
	RangePartition PartitionStrategy = iota
	// ListPartition partitions by explicit value lists.
	ListPartition
	// HashPartition partitions by hash modulus/remainder.
	HashPartition
)

// String implements fmt.Stringer.
func (s PartitionStrategy) String() string {
	switch s {
	case RangePartition:
		return "range"
	case ListPartition:
		return "list"
	case HashPartition:
		return "hash"
	}
	return "unknown"
}

// AllowsDefaultPartition returns true if the strategy admits a DEFAULT
// partition catching rows matched by no explicit bound. Hash partitioning
// covers the whole value space by construction, so it never has one.
func (s PartitionStrategy) AllowsDefaultPartition() bool {
	return s != HashPartition
}

// PartitionKey describes how a table is partitioned: the strategy plus the
// ordered key columns.
type PartitionKey struct {
	Strategy PartitionStrategy
	Columns  []IndexColumn
}

// PartitionBound is the bound specification attaching one child to its
// parent. Exactly one of the strategy-specific field groups is populated,
// matching the parent's strategy, unless IsDefault is set.
type PartitionBound struct {
	// IsDefault marks the DEFAULT partition. No other field is set.
	IsDefault bool

	// Lower and Upper delimit a range bound: Lower <= x < Upper. Lower may be
	// MinVal and Upper may be MaxVal.
	Lower, Upper Datum

	// Values holds the explicit values of a list bound.
	Values []Datum

	// Modulus and Remainder describe a hash bound.
	Modulus, Remainder int32
}

// String implements fmt.Stringer.
func (b PartitionBound) String() string {
	if b.IsDefault {
		return "DEFAULT"
	}
	if len(b.Values) > 0 {
		vals := make([]string, len(b.Values))
		for i := range b.Values {
			vals[i] = b.Values[i].String()
		}
		return "IN (" + strings.Join(vals, ", ") + ")"
	}
	if b.Modulus > 0 {
		return redact.Sprintf("MODULUS %d REMAINDER %d", b.Modulus, b.Remainder).StripMarkers()
	}
	return redact.Sprintf("FROM (%v) TO (%v)", b.Lower, b.Upper).StripMarkers()
}

// Partition pairs a bound with the child it routes to.
type Partition struct {
	Bound PartitionBound

	// Child is the relation the bound maps to. It may be a real table or
	// another hypothetical table node.
	Child StableID
}

// PartitionDescriptor is the shape the planner expects when it asks for a
// table's partitioning: the bounds in canonical order, the child each bound
// maps to, and the default child if one exists. Canonical order is ascending
// lower bound for range partitioning and insertion order otherwise, so
// downstream pruning sees a stable, sorted view.
type PartitionDescriptor struct {
	Strategy   PartitionStrategy
	Partitions []Partition

	// DefaultChild is the DEFAULT partition's relation, or 0 if none.
	DefaultChild StableID
}

// ChildIDs returns the child relation IDs in canonical bound order, with the
// default child last if present.
func (d *PartitionDescriptor) ChildIDs() []StableID {
	ids := make([]StableID, 0, len(d.Partitions)+1)
	for i := range d.Partitions {
		ids = append(ids, d.Partitions[i].Child)
	}
	if d.DefaultChild != 0 {
		ids = append(ids, d.DefaultChild)
	}
	return ids
}
