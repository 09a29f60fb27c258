// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cat

import "context"

// RelationInfo is what the planner receives when it opens a relation for
// planning: the table itself plus the visible index list. An injecting
// catalog appends synthetic indexes to Indexes without touching the ones
// supplied by the real catalog.
type RelationInfo struct {
	Table   Table
	Indexes []Index

	// Partitioned is set when the relation is (really or hypothetically) a
	// partitioned parent, telling the planner to expand children.
	Partitioned bool
}

// RangeTableEntry is the planner's per-relation planning slot. The planner
// builds one per referenced relation and one per expanded partition child.
type RangeTableEntry struct {
	RelID StableID

	// ParentID is the parent relation for entries produced by inheritance
	// expansion, and 0 for top-level entries.
	ParentID StableID

	// Synthetic is true when the entry describes a hypothetical child that
	// has no backing relation. Execution must never see such an entry.
	Synthetic bool
}

// PathHint tells the planner how to treat a relation during path selection.
type PathHint int8

const (
	// PathDefault lets the planner build paths normally.
	PathDefault PathHint = iota
	// PathDummy marks the relation as provably empty for this query, so the
	// planner emits a dummy path set and skips it.
	PathDummy
)

// PlannerCatalog is the fixed set of extension points the planner calls while
// building a plan. The host's real catalog implements it directly; the
// injection engine implements it as a decorator composed in front of the real
// implementation, delegating whenever no hypothetical object applies.
type PlannerCatalog interface {
	// RelationInfo returns the table metadata and index list for the given
	// relation. inhParent is true when the planner treats the relation as an
	// inheritance parent.
	RelationInfo(ctx context.Context, id StableID, inhParent bool) (*RelationInfo, error)

	// RelPathHint is consulted during path selection for each range table
	// entry. Returning PathDummy excludes the relation from the plan.
	RelPathHint(ctx context.Context, rte RangeTableEntry) PathHint

	// PartitionDescriptor returns the partition descriptor of the relation,
	// or false if the relation is not partitioned.
	PartitionDescriptor(ctx context.Context, id StableID) (*PartitionDescriptor, bool)

	// PartitionKey returns the partition key of the relation, or false if the
	// relation is not partitioned.
	PartitionKey(ctx context.Context, id StableID) (*PartitionKey, bool)

	// HasSubclasses returns true if the relation has inheritance children.
	HasSubclasses(ctx context.Context, id StableID) bool

	// FindAllInheritors returns the relation itself followed by all
	// inheritance children, recursively, in expansion order.
	FindAllInheritors(ctx context.Context, id StableID) []StableID

	// ExpandChildRTE builds the child range table entries for a partitioned
	// parent entry using the given descriptor.
	ExpandChildRTE(ctx context.Context, parent RangeTableEntry, desc *PartitionDescriptor) []RangeTableEntry

	// BuildChildRTE fills in a single child range table entry derived from
	// its parent.
	BuildChildRTE(ctx context.Context, child RangeTableEntry, parentID, childID StableID) RangeTableEntry
}
