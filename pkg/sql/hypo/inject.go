// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hypo

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/hypo/pkg/sql/cat"
	"github.com/cockroachdb/hypo/pkg/sql/stats"
	"github.com/cockroachdb/hypo/pkg/util/log"
	"github.com/cockroachdb/logtags"
)

// Injector implements cat.PlannerCatalog as a decorator: composed in front
// of the real catalog implementation, it answers from the hypothetical
// catalogs wherever a hypothetical object applies and delegates everything
// else unchanged. It is purely additive: it never suppresses real behavior
// for non-hypothetical objects.
//
// The injector is per session and single-threaded within it, mirroring the
// host's one-backend-one-planner model. Its per-pass state machine is
// Idle, Active, Idle: BeginPass enters Active only when the session's
// admission condition holds, and Pass.Close returns to Idle unconditionally,
// so synthetic data can never outlive the analysis that requested it.
type Injector struct {
	session  *Session
	indexes  *IndexCatalog
	tables   *TableCatalog
	est      *stats.Estimator
	fallback cat.PlannerCatalog

	// pass is the currently active planning pass, nil while Idle.
	pass *Pass
}

// NewInjector composes an injector in front of fallback.
func NewInjector(
	session *Session,
	indexes *IndexCatalog,
	tables *TableCatalog,
	est *stats.Estimator,
	fallback cat.PlannerCatalog,
) *Injector {
	return &Injector{
		session:  session,
		indexes:  indexes,
		tables:   tables,
		est:      est,
		fallback: fallback,
	}
}

var _ cat.PlannerCatalog = &Injector{}

// Reset empties both hypothetical catalogs. Estimator and session state are
// untouched: the feature flag keeps its value and a pass in flight keeps its
// wrappers until it closes.
func (inj *Injector) Reset() {
	inj.indexes.Reset()
	inj.tables.Reset()
}

// Pass holds the transient state of one planning pass: the predicates the
// planner is working with (for partition pruning) and every synthetic wrapper
// built during the pass. Wrappers reference catalog-owned descriptors and are
// discarded wholesale by Close; the descriptors themselves are never freed
// here.
type Pass struct {
	inj    *Injector
	active bool
	preds  []stats.Predicate

	// scratch accumulates the wrappers built during the pass, so their
	// lifetime is visibly bound to it.
	scratch []*injectedIndex
}

// BeginPass opens a planning pass. The pass is Active only if the session's
// admission condition holds (plan-only command and feature enabled); an
// inactive pass delegates every extension point unchanged. preds are the
// predicates of the statement being planned, used for partition pruning.
//
// Callers must close the pass when the analysis ends, normally via defer so
// abnormal termination takes the same path:
//
//	pass := inj.BeginPass(ctx, preds)
//	defer pass.Close()
func (inj *Injector) BeginPass(ctx context.Context, preds []stats.Predicate) *Pass {
	p := &Pass{inj: inj, active: inj.session.active(), preds: preds}
	inj.pass = p
	if p.active && log.V(2) {
		log.Infof(ctx, "hypothetical injection active for this pass")
	}
	return p
}

// Close discards the pass's synthetic state and returns the injector to
// Idle. It is idempotent and must run on every exit path, including
// statement cancellation and aborted analyses.
func (p *Pass) Close() {
	p.scratch = nil
	p.active = false
	if p.inj.pass == p {
		p.inj.pass = nil
	}
}

// active is the per-call admission check: the session condition must hold
// and a pass must be open. Every extension point funnels through it.
func (inj *Injector) active() bool {
	return inj.pass != nil && inj.pass.active && inj.session.active()
}

// RelationInfo implements cat.PlannerCatalog. For relations with matching
// hypothetical indexes it appends synthetic index metadata to the real index
// list; for hypothetically partitioned tables it marks the relation as a
// partitioned parent. Failures while building one synthetic entry skip that
// entry with a warning; they never abort the host's planning pass.
func (inj *Injector) RelationInfo(
	ctx context.Context, id cat.StableID, inhParent bool,
) (*cat.RelationInfo, error) {
	info, err := inj.fallback.RelationInfo(ctx, id, inhParent)
	if err != nil || !inj.active() {
		return info, err
	}
	ctx = logtags.AddTag(ctx, "hypo", nil)

	it := inj.indexes.LookupByTable(id)
	if it.Next() {
		// Baseline statistics are read once per relation under a short scope
		// and released before any synthetic work.
		ts, _ := inj.est.BaselineFor(ctx, id)
		it.Rewind()
		for it.Next() {
			entry := it.Cur()
			idx, err := inj.pass.wrapIndex(ctx, entry, ts)
			if err != nil {
				log.Warningf(ctx, "skipping hypothetical index %s: %v", entry.Name(), err)
				continue
			}
			info.Indexes = append(info.Indexes, idx)
		}
	}

	if inj.tables.IsHypothetical(id) {
		info.Partitioned = true
	}
	return info, nil
}

// RelPathHint implements cat.PlannerCatalog. A synthetic partition child
// whose bound provably excludes the pass's predicates is reported as a dummy
// relation so the planner skips it, exactly as it would for a pruned real
// partition.
func (inj *Injector) RelPathHint(ctx context.Context, rte cat.RangeTableEntry) cat.PathHint {
	if inj.active() && rte.ParentID != 0 && inj.tables.IsHypothetical(rte.ParentID) {
		if !inj.childSurvivesPruning(rte.ParentID, rte.RelID) {
			if log.V(2) {
				log.Infof(ctx, "hypothetical partition %d pruned from the plan", rte.RelID)
			}
			return cat.PathDummy
		}
		return cat.PathDefault
	}
	return inj.fallback.RelPathHint(ctx, rte)
}

func (inj *Injector) childSurvivesPruning(parentID, childID cat.StableID) bool {
	desc, err := inj.tables.Descriptor(parentID)
	if err != nil {
		return true
	}
	key, err := inj.tables.Key(parentID)
	if err != nil {
		return true
	}
	for _, id := range inj.est.PrunePartitions(desc, key, inj.pass.preds) {
		if id == childID {
			return true
		}
	}
	return false
}

// PartitionDescriptor implements cat.PlannerCatalog.
func (inj *Injector) PartitionDescriptor(
	ctx context.Context, id cat.StableID,
) (*cat.PartitionDescriptor, bool) {
	if inj.active() && inj.tables.IsHypothetical(id) {
		desc, err := inj.tables.Descriptor(id)
		if err != nil {
			// A node without its own partitioning has no descriptor; fall
			// through to the real catalog, which knows nothing of it either.
			return nil, false
		}
		return desc, true
	}
	return inj.fallback.PartitionDescriptor(ctx, id)
}

// PartitionKey implements cat.PlannerCatalog.
func (inj *Injector) PartitionKey(ctx context.Context, id cat.StableID) (*cat.PartitionKey, bool) {
	if inj.active() && inj.tables.IsHypothetical(id) {
		key, err := inj.tables.Key(id)
		if err != nil {
			return nil, false
		}
		return key, true
	}
	return inj.fallback.PartitionKey(ctx, id)
}

// HasSubclasses implements cat.PlannerCatalog.
func (inj *Injector) HasSubclasses(ctx context.Context, id cat.StableID) bool {
	if inj.active() && inj.tables.IsHypothetical(id) {
		return true
	}
	return inj.fallback.HasSubclasses(ctx, id)
}

// FindAllInheritors implements cat.PlannerCatalog. For a hypothetical parent
// the result is the relation itself followed by its partition tree in
// expansion order.
func (inj *Injector) FindAllInheritors(ctx context.Context, id cat.StableID) []cat.StableID {
	if inj.active() && inj.tables.IsHypothetical(id) {
		return inj.tables.inheritors(id)
	}
	return inj.fallback.FindAllInheritors(ctx, id)
}

// ExpandChildRTE implements cat.PlannerCatalog. For hypothetical parents it
// builds one synthetic child entry per partition in canonical bound order;
// otherwise it delegates.
func (inj *Injector) ExpandChildRTE(
	ctx context.Context, parent cat.RangeTableEntry, desc *cat.PartitionDescriptor,
) []cat.RangeTableEntry {
	if inj.active() && inj.tables.IsHypothetical(parent.RelID) {
		children := desc.ChildIDs()
		out := make([]cat.RangeTableEntry, 0, len(children))
		for _, childID := range children {
			child := inj.BuildChildRTE(ctx, cat.RangeTableEntry{}, parent.RelID, childID)
			out = append(out, child)
		}
		return out
	}
	return inj.fallback.ExpandChildRTE(ctx, parent, desc)
}

// BuildChildRTE implements cat.PlannerCatalog.
func (inj *Injector) BuildChildRTE(
	ctx context.Context, child cat.RangeTableEntry, parentID, childID cat.StableID,
) cat.RangeTableEntry {
	if inj.active() && inj.tables.IsHypothetical(parentID) {
		child.RelID = childID
		child.ParentID = parentID
		child.Synthetic = IsHypotheticalID(childID)
		return child
	}
	return inj.fallback.BuildChildRTE(ctx, child, parentID, childID)
}

// wrapIndex builds the transient cat.Index wrapper for one catalog entry,
// refreshing the size estimate from the baseline statistics current at this
// pass. The wrapper references the entry; it never copies ownership.
func (p *Pass) wrapIndex(
	ctx context.Context, entry *HypoIndex, ts *stats.TableStatistics,
) (cat.Index, error) {
	if entry.ColumnCount() == 0 {
		return nil, errors.AssertionFailedf("hypothetical index %d has no columns", entry.ID())
	}
	size := p.inj.est.EstimateIndexSize(ctx, ts, entry.AccessMethod(), entry.cols, entry.fill)
	w := &injectedIndex{entry: entry, size: size}
	p.scratch = append(p.scratch, w)
	return w, nil
}

// injectedIndex is the pass-scoped cat.Index the planner sees. Everything but
// the refreshed size estimate is served from the underlying catalog entry.
type injectedIndex struct {
	entry *HypoIndex
	size  stats.IndexSize
}

var _ cat.Index = &injectedIndex{}

func (ii *injectedIndex) ID() cat.StableID               { return ii.entry.ID() }
func (ii *injectedIndex) Name() string                   { return ii.entry.Name() }
func (ii *injectedIndex) Table() cat.StableID            { return ii.entry.OwnerID() }
func (ii *injectedIndex) IsUnique() bool                 { return ii.entry.IsUnique() }
func (ii *injectedIndex) AccessMethod() cat.AccessMethod { return ii.entry.AccessMethod() }
func (ii *injectedIndex) ColumnCount() int               { return ii.entry.ColumnCount() }
func (ii *injectedIndex) Column(i int) cat.IndexColumn   { return ii.entry.Column(i) }
func (ii *injectedIndex) Predicate() (string, bool)      { return ii.entry.Predicate() }
func (ii *injectedIndex) PageCount() int64               { return ii.size.PageCount }
func (ii *injectedIndex) TreeHeight() int32              { return ii.size.TreeHeight }
