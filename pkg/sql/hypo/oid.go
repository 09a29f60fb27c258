// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hypo

import (
	"sync/atomic"

	"github.com/cockroachdb/hypo/pkg/sql/cat"
)

// FirstHypotheticalID is the lowest identifier the allocator hands out. Real
// catalog identifiers must stay below it; catalog registration validates
// this, which keeps the two identifier spaces disjoint without consulting the
// real catalog for every allocation.
const FirstHypotheticalID cat.StableID = 1 << 62

// IsHypotheticalID reports whether the identifier was (or could have been)
// produced by an IDAllocator.
func IsHypotheticalID(id cat.StableID) bool {
	return id >= FirstHypotheticalID
}

// IDAllocator produces collision-free synthetic identifiers. Identifiers are
// never reused while a catalog entry holds one, and are not persisted: the
// catalogs are memory-only and vanish on process restart.
//
// Both hypothetical catalogs of one registry share a single allocator, so an
// index and a table node can never collide either.
type IDAllocator struct {
	counter atomic.Uint64
}

// NewIDAllocator returns an allocator whose first identifier is
// FirstHypotheticalID.
func NewIDAllocator() *IDAllocator {
	a := &IDAllocator{}
	a.counter.Store(uint64(FirstHypotheticalID))
	return a
}

// Next returns a fresh identifier.
func (a *IDAllocator) Next() cat.StableID {
	return cat.StableID(a.counter.Add(1) - 1)
}
