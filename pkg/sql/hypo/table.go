// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hypo

import (
	"context"
	"fmt"

	"github.com/cockroachdb/hypo/pkg/sql/cat"
	"github.com/cockroachdb/hypo/pkg/util/log"
	"github.com/cockroachdb/hypo/pkg/util/syncutil"
	"github.com/google/btree"
)

// NestedPartitioning requests that a new hypothetical child be itself
// partitioned, enabling multi-level schemes.
type NestedPartitioning struct {
	Strategy   cat.PartitionStrategy
	KeyColumns []IndexColumnSpec
}

// ChildSpec describes the child side of AddPartition: either a reference to
// an existing real relation, or a new hypothetical node (optionally
// partitioned further).
type ChildSpec struct {
	// Relation, when non-zero, attaches an existing real relation as the
	// child.
	Relation cat.StableID

	// Name names a new hypothetical child node. Ignored when Relation is
	// set; defaulted when empty.
	Name string

	// Partitioning, when non-nil, declares the new hypothetical child as a
	// partitioned table of its own.
	Partitioning *NestedPartitioning
}

// partition pairs a bound with its child within one parent node.
type partition struct {
	bound   cat.PartitionBound
	childID cat.StableID

	// node is nil when childID references a real relation.
	node *HypoTable
}

// HypoTable is a node of the hypothetical partition forest: either the
// overlay root attached to a real table, or a hypothetical partition at any
// depth. The structure is a tree rooted at a real table; cycles are
// impossible because children are only ever created, never re-attached.
type HypoTable struct {
	id   cat.StableID
	name string

	// table is the root's real table; every node of a subtree shares its
	// schema for column resolution.
	table cat.Table

	// realID is the overlaid real relation for roots, or the real child
	// relation for leaves mapped onto real tables, else 0.
	realID cat.StableID

	// parentID is 0 for roots.
	parentID cat.StableID

	// bound is the node's bound within its parent; unset for roots.
	bound cat.PartitionBound

	// key is non-nil when this node is itself partitioned.
	key *cat.PartitionKey

	// parts holds children in insertion order. rangeIdx additionally orders
	// range partitions by lower bound for overlap checks and canonical
	// descriptor order. defaultPart is the DEFAULT partition, kept out of
	// parts.
	parts       []*partition
	rangeIdx    *btree.BTreeG[*partition]
	defaultPart *partition
}

// ID returns the node's synthetic identifier.
func (ht *HypoTable) ID() cat.StableID { return ht.id }

// Name returns the node's display name.
func (ht *HypoTable) Name() string { return ht.name }

// RealID returns the real relation the node overlays, or 0.
func (ht *HypoTable) RealID() cat.StableID { return ht.realID }

// ParentID returns the parent node's identifier, or 0 for roots.
func (ht *HypoTable) ParentID() cat.StableID { return ht.parentID }

// Bound returns the node's bound within its parent. Meaningless for roots.
func (ht *HypoTable) Bound() cat.PartitionBound { return ht.bound }

// PartitionKey returns the node's partition key, or nil if the node is not
// itself partitioned.
func (ht *HypoTable) PartitionKey() *cat.PartitionKey { return ht.key }

// descriptor builds the planner-facing partition descriptor: bounds in
// canonical order (ascending lower bound for range, insertion order
// otherwise), each mapped to its child, with the default slot filled only if
// the strategy permits one and a DEFAULT partition was declared.
func (ht *HypoTable) descriptor() *cat.PartitionDescriptor {
	if ht.key == nil {
		return nil
	}
	desc := &cat.PartitionDescriptor{Strategy: ht.key.Strategy}
	appendPart := func(p *partition) {
		desc.Partitions = append(desc.Partitions, cat.Partition{Bound: p.bound, Child: p.childID})
	}
	if ht.key.Strategy == cat.RangePartition {
		ht.rangeIdx.Ascend(func(p *partition) bool {
			appendPart(p)
			return true
		})
	} else {
		for _, p := range ht.parts {
			appendPart(p)
		}
	}
	if ht.defaultPart != nil {
		desc.DefaultChild = ht.defaultPart.childID
	}
	return desc
}

// TableCatalog is the registry of hypothetical partitioned tables: a forest
// of HypoTable nodes keyed by synthetic identifier, with roots additionally
// reachable through the real table they overlay.
type TableCatalog struct {
	ids *IDAllocator

	mu struct {
		syncutil.Mutex
		byID  map[cat.StableID]*HypoTable
		roots map[cat.StableID]*HypoTable // keyed by overlaid real table ID
	}
}

// NewTableCatalog returns an empty table catalog drawing identifiers from
// ids.
func NewTableCatalog(ids *IDAllocator) *TableCatalog {
	c := &TableCatalog{ids: ids}
	c.mu.byID = make(map[cat.StableID]*HypoTable)
	c.mu.roots = make(map[cat.StableID]*HypoTable)
	return c
}

// DeclarePartitioning creates the overlay root for a real table. It fails if
// the table is already declared or the key references columns the table does
// not have.
func (c *TableCatalog) DeclarePartitioning(
	ctx context.Context, tab cat.Table, strategy cat.PartitionStrategy, keyCols []IndexColumnSpec,
) (*HypoTable, error) {
	if tab == nil {
		return nil, validationf("no table to partition")
	}
	if IsHypotheticalID(tab.ID()) {
		return nil, validationf(
			"relation %d is not a real table; nest partitions through AddPartition instead", tab.ID())
	}
	key, err := buildPartitionKey(tab, strategy, keyCols)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.mu.roots[tab.ID()]; ok {
		return nil, validationf("table %q already has hypothetical partitioning", tab.Name())
	}
	root := &HypoTable{
		id:     c.ids.Next(),
		name:   tab.Name(),
		table:  tab,
		realID: tab.ID(),
		key:    key,
	}
	root.initChildIndex()
	c.mu.byID[root.id] = root
	c.mu.roots[tab.ID()] = root
	if log.V(1) {
		log.Infof(ctx, "declared hypothetical %s partitioning on table %q", strategy, tab.Name())
	}
	return root, nil
}

func (ht *HypoTable) initChildIndex() {
	if ht.key.Strategy == cat.RangePartition {
		ht.rangeIdx = btree.NewG[*partition](8, func(a, b *partition) bool {
			return a.bound.Lower.MustCompare(b.bound.Lower) < 0
		})
	}
}

func buildPartitionKey(
	tab cat.Table, strategy cat.PartitionStrategy, keyCols []IndexColumnSpec,
) (*cat.PartitionKey, error) {
	switch strategy {
	case cat.RangePartition, cat.ListPartition, cat.HashPartition:
	default:
		return nil, validationf("unknown partition strategy %d", strategy)
	}
	if len(keyCols) == 0 {
		return nil, validationf("partition key needs at least one column")
	}
	key := &cat.PartitionKey{Strategy: strategy, Columns: make([]cat.IndexColumn, len(keyCols))}
	for i, kc := range keyCols {
		ord, col := findColumn(tab, kc.Name)
		if col == nil {
			return nil, validationf("partition key column %q does not exist in table %q", kc.Name, tab.Name())
		}
		key.Columns[i] = cat.IndexColumn{
			Column:     col,
			Ordinal:    ord,
			Descending: kc.Descending,
			Collation:  kc.Collation,
		}
	}
	return key, nil
}

// AddPartition attaches a bound and a child to an existing partitioned node.
// The parent may be addressed by its synthetic identifier or, for roots, by
// the overlaid real table's identifier. The child is the real relation named
// in spec, or a freshly created hypothetical node. On any failure the parent
// is left exactly as it was.
func (c *TableCatalog) AddPartition(
	ctx context.Context, parentID cat.StableID, bound cat.PartitionBound, spec ChildSpec,
) (cat.StableID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parent := c.findLocked(parentID)
	if parent == nil {
		return 0, notFoundf("relation %d has no hypothetical partitioning", parentID)
	}
	if parent.key == nil {
		return 0, validationf(
			"hypothetical partition %q is not partitioned itself; declare nested partitioning when attaching it", parent.name)
	}
	if err := checkBoundShape(parent.key, bound); err != nil {
		return 0, err
	}
	if err := parent.checkOverlap(bound); err != nil {
		return 0, err
	}
	if spec.Relation != 0 && IsHypotheticalID(spec.Relation) {
		return 0, validationf(
			"child %d is a hypothetical relation; new hypothetical children are created via Name", spec.Relation)
	}
	var nestedKey *cat.PartitionKey
	if spec.Partitioning != nil {
		if spec.Relation != 0 {
			return 0, validationf("cannot declare nested hypothetical partitioning on real relation %d", spec.Relation)
		}
		var err error
		nestedKey, err = buildPartitionKey(parent.table, spec.Partitioning.Strategy, spec.Partitioning.KeyColumns)
		if err != nil {
			return 0, err
		}
	}

	// Validation done; mutate.
	p := &partition{bound: bound, childID: spec.Relation}
	if spec.Relation == 0 {
		node := &HypoTable{
			id:       c.ids.Next(),
			name:     spec.Name,
			table:    parent.table,
			parentID: parent.id,
			bound:    bound,
			key:      nestedKey,
		}
		if node.name == "" {
			node.name = fmt.Sprintf("%s_part%d", parent.name, len(parent.parts)+1)
		}
		if node.key != nil {
			node.initChildIndex()
		}
		c.mu.byID[node.id] = node
		p.childID = node.id
		p.node = node
	}
	if bound.IsDefault {
		parent.defaultPart = p
	} else {
		parent.parts = append(parent.parts, p)
		if parent.rangeIdx != nil {
			parent.rangeIdx.ReplaceOrInsert(p)
		}
	}
	if log.V(1) {
		log.Infof(ctx, "attached hypothetical partition %s to %q", p.bound, parent.name)
	}
	return p.childID, nil
}

// checkBoundShape rejects bounds whose populated fields do not match the
// declared strategy, or whose values do not match the type of the partition
// key's leading column. Validating value kinds here keeps every ordered
// comparison on the mutation path total: siblings accepted into one node are
// always mutually comparable.
func checkBoundShape(key *cat.PartitionKey, bound cat.PartitionBound) error {
	strategy := key.Strategy
	if bound.IsDefault {
		if !strategy.AllowsDefaultPartition() {
			return strategyMismatchf("%s partitioning does not admit a DEFAULT partition", strategy)
		}
		if len(bound.Values) > 0 || bound.Modulus != 0 ||
			bound.Lower.Kind() != cat.KindNull || bound.Upper.Kind() != cat.KindNull {
			return strategyMismatchf("a DEFAULT bound carries no values")
		}
		return nil
	}
	keyCol := key.Columns[0].Column
	want := boundKindFor(keyCol.Typ)
	switch strategy {
	case cat.RangePartition:
		if len(bound.Values) > 0 || bound.Modulus != 0 {
			return strategyMismatchf("%s bound under range strategy", boundShape(bound))
		}
		for _, d := range []cat.Datum{bound.Lower, bound.Upper} {
			if k := d.Kind(); k != want && k != cat.KindMinVal && k != cat.KindMaxVal {
				return validationf("bound value %s does not match the type of partition key column %q",
					d, keyCol.Name)
			}
		}
		cmp, err := bound.Lower.Compare(bound.Upper)
		if err != nil {
			return validationf("range bound %s mixes incomparable values", bound)
		}
		if cmp >= 0 {
			return validationf("empty range bound %s", bound)
		}
	case cat.ListPartition:
		if bound.Modulus != 0 || bound.Lower.Kind() != cat.KindNull || bound.Upper.Kind() != cat.KindNull {
			return strategyMismatchf("%s bound under list strategy", boundShape(bound))
		}
		if len(bound.Values) == 0 {
			return validationf("list bound needs at least one value")
		}
		for _, v := range bound.Values {
			if v.Kind() != want {
				return validationf("bound value %s does not match the type of partition key column %q",
					v, keyCol.Name)
			}
		}
	case cat.HashPartition:
		if len(bound.Values) > 0 || bound.Lower.Kind() != cat.KindNull || bound.Upper.Kind() != cat.KindNull {
			return strategyMismatchf("%s bound under hash strategy", boundShape(bound))
		}
		if bound.Modulus <= 0 {
			return validationf("hash bound modulus must be positive")
		}
		if bound.Remainder < 0 || bound.Remainder >= bound.Modulus {
			return validationf("hash bound remainder %d is out of range for modulus %d",
				bound.Remainder, bound.Modulus)
		}
	}
	return nil
}

// boundKindFor maps a partition key column type to the datum kind its bound
// values must carry. Timestamp keys partition by epoch value.
func boundKindFor(t cat.ColType) cat.DatumKind {
	switch t {
	case cat.Int, cat.Timestamp:
		return cat.KindInt
	case cat.Float:
		return cat.KindFloat
	case cat.Bool:
		return cat.KindBool
	default:
		return cat.KindString
	}
}

func boundShape(bound cat.PartitionBound) string {
	switch {
	case len(bound.Values) > 0:
		return "list"
	case bound.Modulus > 0:
		return "hash"
	default:
		return "range"
	}
}

// checkOverlap rejects bounds that conflict with an existing sibling under
// the node's strategy.
func (ht *HypoTable) checkOverlap(bound cat.PartitionBound) error {
	if bound.IsDefault {
		if ht.defaultPart != nil {
			return overlapf("table %q already has a DEFAULT partition", ht.name)
		}
		return nil
	}
	switch ht.key.Strategy {
	case cat.RangePartition:
		var conflict *partition
		// Any sibling starting below the new upper bound and ending above the
		// new lower bound overlaps. Walk the ordered index from the first
		// sibling with lower >= new lower and its predecessor.
		probe := &partition{bound: bound}
		ht.rangeIdx.AscendGreaterOrEqual(probe, func(p *partition) bool {
			if p.bound.Lower.MustCompare(bound.Upper) < 0 {
				conflict = p
			}
			return false
		})
		if conflict == nil {
			ht.rangeIdx.DescendLessOrEqual(probe, func(p *partition) bool {
				if p.bound.Upper.MustCompare(bound.Lower) > 0 {
					conflict = p
				}
				return false
			})
		}
		if conflict != nil {
			return overlapf("range bound %s overlaps partition bound %s of %q",
				bound, conflict.bound, ht.name)
		}
	case cat.ListPartition:
		for _, p := range ht.parts {
			for _, existing := range p.bound.Values {
				for _, v := range bound.Values {
					cmp, err := v.Compare(existing)
					if err == nil && cmp == 0 {
						return overlapf("value %s already routed by bound %s of %q",
							v, p.bound, ht.name)
					}
				}
			}
		}
	case cat.HashPartition:
		for _, p := range ht.parts {
			if p.bound.Modulus == bound.Modulus && p.bound.Remainder == bound.Remainder {
				return overlapf("hash bound %s duplicates a sibling of %q", bound, ht.name)
			}
		}
	}
	return nil
}

// IsHypothetical is the O(1) membership test gating every injection point:
// true for hypothetical node identifiers and for real tables overlaid by a
// hypothetical partitioning root.
func (c *TableCatalog) IsHypothetical(id cat.StableID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findLocked(id) != nil
}

// Find returns the node addressed by a synthetic identifier or by the real
// table a root overlays, or a NotFound error.
func (c *TableCatalog) Find(id cat.StableID) (*HypoTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ht := c.findLocked(id); ht != nil {
		return ht, nil
	}
	return nil, notFoundf("relation %d has no hypothetical partitioning", id)
}

func (c *TableCatalog) findLocked(id cat.StableID) *HypoTable {
	if ht, ok := c.mu.byID[id]; ok {
		return ht
	}
	return c.mu.roots[id]
}

// ChildrenOf returns the node's (bound, child) pairs in canonical order, the
// default partition last. The result is a snapshot.
func (c *TableCatalog) ChildrenOf(id cat.StableID) ([]cat.Partition, error) {
	desc, err := c.Descriptor(id)
	if err != nil {
		return nil, err
	}
	parts := desc.Partitions
	if desc.DefaultChild != 0 {
		parts = append(parts, cat.Partition{
			Bound: cat.PartitionBound{IsDefault: true},
			Child: desc.DefaultChild,
		})
	}
	return parts, nil
}

// Descriptor returns the partition descriptor for the node, or a NotFound
// error. The descriptor is freshly built: a snapshot unaffected by later
// catalog mutations.
func (c *TableCatalog) Descriptor(id cat.StableID) (*cat.PartitionDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ht := c.findLocked(id)
	if ht == nil {
		return nil, notFoundf("relation %d has no hypothetical partitioning", id)
	}
	if ht.key == nil {
		return nil, notFoundf("hypothetical partition %q is not partitioned itself", ht.name)
	}
	return ht.descriptor(), nil
}

// Key returns the partition key for the node, or a NotFound error.
func (c *TableCatalog) Key(id cat.StableID) (*cat.PartitionKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ht := c.findLocked(id)
	if ht == nil || ht.key == nil {
		return nil, notFoundf("relation %d has no hypothetical partition key", id)
	}
	return ht.key, nil
}

// Remove deletes one node and detaches its hypothetical descendants. Roots
// may be addressed through the overlaid real table identifier.
func (c *TableCatalog) Remove(id cat.StableID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ht := c.findLocked(id)
	if ht == nil {
		return notFoundf("relation %d has no hypothetical partitioning", id)
	}
	if ht.parentID != 0 {
		if parent := c.mu.byID[ht.parentID]; parent != nil {
			parent.detachChild(ht.id)
		}
	}
	c.removeSubtreeLocked(ht)
	return nil
}

func (ht *HypoTable) detachChild(childID cat.StableID) {
	if ht.defaultPart != nil && ht.defaultPart.childID == childID {
		ht.defaultPart = nil
		return
	}
	for i, p := range ht.parts {
		if p.childID == childID {
			if ht.rangeIdx != nil {
				ht.rangeIdx.Delete(p)
			}
			ht.parts = append(ht.parts[:i], ht.parts[i+1:]...)
			return
		}
	}
}

func (c *TableCatalog) removeSubtreeLocked(ht *HypoTable) {
	for _, p := range ht.parts {
		if p.node != nil {
			c.removeSubtreeLocked(p.node)
		}
	}
	if ht.defaultPart != nil && ht.defaultPart.node != nil {
		c.removeSubtreeLocked(ht.defaultPart.node)
	}
	delete(c.mu.byID, ht.id)
	if ht.realID != 0 && ht.parentID == 0 {
		delete(c.mu.roots, ht.realID)
	}
}

// Reset clears the whole forest.
func (c *TableCatalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mu.byID = make(map[cat.StableID]*HypoTable)
	c.mu.roots = make(map[cat.StableID]*HypoTable)
}

// Len returns the number of nodes in the forest.
func (c *TableCatalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mu.byID)
}

// inheritors appends id and all hypothetical descendants of the node in
// pre-order, the order inheritance expansion uses.
func (c *TableCatalog) inheritors(id cat.StableID) []cat.StableID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ht := c.findLocked(id)
	if ht == nil {
		return nil
	}
	var out []cat.StableID
	var walk func(ht *HypoTable, self cat.StableID)
	walk = func(ht *HypoTable, self cat.StableID) {
		out = append(out, self)
		if ht.key == nil {
			return
		}
		for _, p := range ht.orderedParts() {
			if p.node != nil {
				walk(p.node, p.childID)
			} else {
				out = append(out, p.childID)
			}
		}
	}
	walk(ht, id)
	return out
}

// orderedParts returns children in canonical order, default last.
func (ht *HypoTable) orderedParts() []*partition {
	var out []*partition
	if ht.rangeIdx != nil {
		ht.rangeIdx.Ascend(func(p *partition) bool {
			out = append(out, p)
			return true
		})
	} else {
		out = append(out, ht.parts...)
	}
	if ht.defaultPart != nil {
		out = append(out, ht.defaultPart)
	}
	return out
}
