// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"

	"github.com/cockroachdb/hypo/pkg/sql/cat"
	"github.com/cockroachdb/hypo/pkg/util/log"
)

// Options configures the estimator. Zero values are replaced by the
// corresponding defaults from DefaultOptions.
type Options struct {
	// PageSize is the on-disk page size in bytes.
	PageSize int64

	// PageHeaderSize is the per-page header overhead in bytes.
	PageHeaderSize int64

	// SpecialSpaceSize is the per-page special space reserved by tree-shaped
	// access methods.
	SpecialSpaceSize int64

	// TupleHeaderSize is the per-index-tuple header size in bytes.
	TupleHeaderSize int64

	// ItemOverhead is the per-tuple line pointer overhead in bytes.
	ItemOverhead int64

	// DefaultFillFactor is the percentage of a page filled by an index build
	// when the descriptor does not specify a fill factor.
	DefaultFillFactor int64

	// PagesPerRange is the number of heap pages summarized by one block-range
	// index entry.
	PagesPerRange int64

	// DefaultRowCount is assumed for tables that were never analyzed.
	DefaultRowCount uint64

	// DefaultAvgWidth is assumed for columns of variable-width types with no
	// collected statistics.
	DefaultAvgWidth int64

	// DefaultSelectivity is assumed for predicates the statistics cannot
	// price.
	DefaultSelectivity float64
}

// DefaultOptions are the stock estimator defaults, matching the page layout
// constants a real index build would use.
var DefaultOptions = Options{
	PageSize:           8192,
	PageHeaderSize:     24,
	SpecialSpaceSize:   16,
	TupleHeaderSize:    8,
	ItemOverhead:       4,
	DefaultFillFactor:  90,
	PagesPerRange:      128,
	DefaultRowCount:    1000,
	DefaultAvgWidth:    32,
	DefaultSelectivity: 1.0 / 3.0,
}

// Estimator derives synthetic sizes and selectivities for hypothetical
// objects from baseline statistics. All methods are pure given the provider's
// contents: the same inputs always yield the same outputs.
type Estimator struct {
	provider Provider
	opts     Options
}

// NewEstimator returns an Estimator reading baseline statistics from the
// given provider. Zero fields of opts are filled from DefaultOptions.
func NewEstimator(provider Provider, opts Options) *Estimator {
	def := DefaultOptions
	if opts.PageSize == 0 {
		opts.PageSize = def.PageSize
	}
	if opts.PageHeaderSize == 0 {
		opts.PageHeaderSize = def.PageHeaderSize
	}
	if opts.SpecialSpaceSize == 0 {
		opts.SpecialSpaceSize = def.SpecialSpaceSize
	}
	if opts.TupleHeaderSize == 0 {
		opts.TupleHeaderSize = def.TupleHeaderSize
	}
	if opts.ItemOverhead == 0 {
		opts.ItemOverhead = def.ItemOverhead
	}
	if opts.DefaultFillFactor == 0 {
		opts.DefaultFillFactor = def.DefaultFillFactor
	}
	if opts.PagesPerRange == 0 {
		opts.PagesPerRange = def.PagesPerRange
	}
	if opts.DefaultRowCount == 0 {
		opts.DefaultRowCount = def.DefaultRowCount
	}
	if opts.DefaultAvgWidth == 0 {
		opts.DefaultAvgWidth = def.DefaultAvgWidth
	}
	if opts.DefaultSelectivity == 0 {
		opts.DefaultSelectivity = def.DefaultSelectivity
	}
	return &Estimator{provider: provider, opts: opts}
}

// Options returns the estimator's effective options.
func (e *Estimator) Options() Options { return e.opts }

// BaselineFor returns the baseline statistics for the given table. The second
// result is false when the table was never analyzed, in which case estimation
// proceeds with defaults.
func (e *Estimator) BaselineFor(ctx context.Context, tableID cat.StableID) (*TableStatistics, bool) {
	if e.provider == nil {
		return nil, false
	}
	return e.provider.Lookup(ctx, tableID)
}

// IndexSize is the estimated physical shape of a hypothetical index.
type IndexSize struct {
	// PageCount is the estimated number of pages.
	PageCount int64

	// TreeHeight is the estimated height for tree-shaped access methods, and
	// zero otherwise.
	TreeHeight int32
}

// EstimateIndexSize estimates the page count and tree height a real build of
// the described index would produce, from the owning table's baseline row
// count and the indexed columns' widths. ts may be nil, in which case the
// configured defaults stand in for the missing statistics.
func (e *Estimator) EstimateIndexSize(
	ctx context.Context,
	ts *TableStatistics,
	am cat.AccessMethod,
	cols []cat.IndexColumn,
	fillFactor int64,
) IndexSize {
	rows := e.opts.DefaultRowCount
	if ts != nil && ts.RowCount > 0 {
		rows = ts.RowCount
	} else if log.V(2) {
		log.Infof(ctx, "no baseline row count, falling back to %d", rows)
	}
	if fillFactor <= 0 || fillFactor > 100 {
		fillFactor = e.opts.DefaultFillFactor
	}

	var keyWidth int64
	for i := range cols {
		keyWidth += e.columnWidth(ts, cols[i])
	}
	// Index tuples are laid out maxaligned with a per-tuple header, plus a
	// line pointer in the page header.
	tupleSize := maxAlign(keyWidth+e.opts.TupleHeaderSize) + e.opts.ItemOverhead
	usable := e.opts.PageSize - e.opts.PageHeaderSize
	if am.IsTreeShaped() {
		usable -= e.opts.SpecialSpaceSize
	}
	usable = usable * fillFactor / 100
	tuplesPerPage := usable / tupleSize
	if tuplesPerPage < 1 {
		tuplesPerPage = 1
	}

	if am == cat.Brin {
		return IndexSize{PageCount: e.brinPages(ts, rows)}
	}

	pages := int64(math.Ceil(float64(rows) / float64(tuplesPerPage)))
	if pages < 1 {
		pages = 1
	}
	size := IndexSize{PageCount: pages}
	if am.IsTreeShaped() {
		size.TreeHeight = treeHeight(pages, tuplesPerPage)
	}
	return size
}

// brinPages estimates the size of a block-range index: one summary entry per
// PagesPerRange heap pages, plus a meta page.
func (e *Estimator) brinPages(ts *TableStatistics, rows uint64) int64 {
	rowWidth := e.opts.DefaultAvgWidth
	if ts != nil && ts.AvgRowWidth > 0 {
		rowWidth = ts.AvgRowWidth
	}
	usableHeap := e.opts.PageSize - e.opts.PageHeaderSize
	rowsPerPage := usableHeap / maxAlign(rowWidth+e.opts.TupleHeaderSize)
	if rowsPerPage < 1 {
		rowsPerPage = 1
	}
	heapPages := int64(math.Ceil(float64(rows) / float64(rowsPerPage)))
	return int64(math.Ceil(float64(heapPages)/float64(e.opts.PagesPerRange))) + 1
}

// treeHeight returns the height of a balanced tree with the given number of
// leaf pages and fanout. A single-page index has height one.
func treeHeight(leafPages, fanout int64) int32 {
	if leafPages <= 1 {
		return 1
	}
	if fanout < 2 {
		fanout = 2
	}
	return 1 + int32(math.Ceil(math.Log(float64(leafPages))/math.Log(float64(fanout))))
}

func (e *Estimator) columnWidth(ts *TableStatistics, col cat.IndexColumn) int64 {
	if ts != nil {
		if cs := ts.Column(col.Column.Name); cs != nil && cs.AvgWidth > 0 {
			return cs.AvgWidth
		}
	}
	if col.Column.Width > 0 {
		return col.Column.Width
	}
	return col.Column.Typ.Width(e.opts.DefaultAvgWidth)
}

func maxAlign(n int64) int64 {
	return (n + 7) &^ 7
}

// EstimateSelectivity estimates the fraction of the table's rows matching the
// conjunction of the given predicates, using the histograms and distinct
// counts of the underlying real columns. Predicates the statistics cannot
// price contribute the configured default selectivity, so a hypothetical
// index on a never-analyzed table is still offered with conservative numbers.
func (e *Estimator) EstimateSelectivity(
	ctx context.Context, ts *TableStatistics, preds []Predicate,
) float64 {
	sel := 1.0
	for i := range preds {
		sel *= e.predicateSelectivity(ctx, ts, &preds[i])
	}
	if sel < 0 {
		sel = 0
	}
	if sel > 1 {
		sel = 1
	}
	return sel
}

func (e *Estimator) predicateSelectivity(
	ctx context.Context, ts *TableStatistics, pred *Predicate,
) float64 {
	cs := ts.Column(pred.Column)
	if cs == nil {
		if log.V(2) {
			log.Infof(ctx, "no statistics for column %q, falling back to default selectivity", pred.Column)
		}
		return e.opts.DefaultSelectivity
	}
	if cs.Histogram != nil {
		if sel, ok := cs.Histogram.selectivity(pred.Op, pred.Value); ok {
			return sel
		}
	}
	// No histogram: an equality can still use the distinct count; range
	// comparisons fall back to the default.
	if pred.Op == EQ && cs.DistinctCount > 0 && ts.RowCount > 0 {
		nonNullFrac := 1 - float64(cs.NullCount)/float64(ts.RowCount)
		return nonNullFrac / float64(cs.DistinctCount)
	}
	return e.opts.DefaultSelectivity
}

// PrunePartitions returns the children of the given partition descriptor
// whose bounds a row satisfying the predicates could possibly reach, in
// canonical bound order. The default partition, if any, is appended unless
// the explicit bounds provably cover every value the predicates admit. With
// no predicate on the partition key's leading column, every child survives.
// A predicate constant that is incomparable with the bound values proves
// nothing, so it prunes nothing.
func (e *Estimator) PrunePartitions(
	desc *cat.PartitionDescriptor, key *cat.PartitionKey, preds []Predicate,
) []cat.StableID {
	matched, err := prunePartitions(desc, key, preds)
	if err != nil {
		return desc.ChildIDs()
	}
	return matched
}

func prunePartitions(
	desc *cat.PartitionDescriptor, key *cat.PartitionKey, preds []Predicate,
) ([]cat.StableID, error) {
	iv, constrained, err := intervalForColumn(leadingColumnName(key), preds)
	if err != nil {
		return nil, err
	}
	if !constrained {
		return desc.ChildIDs(), nil
	}

	var matched []cat.StableID
	switch desc.Strategy {
	case cat.RangePartition:
		uncovered := iv
		for i := range desc.Partitions {
			p := &desc.Partitions[i]
			bound := interval{
				lo: p.Bound.Lower, loInclusive: true,
				hi: p.Bound.Upper, hiInclusive: false,
			}
			overlaps, err := iv.overlaps(bound)
			if err != nil {
				return nil, err
			}
			if overlaps {
				matched = append(matched, p.Child)
			}
			if uncovered, err = uncovered.subtractPrefix(bound); err != nil {
				return nil, err
			}
		}
		if desc.DefaultChild != 0 {
			empty, err := uncovered.empty()
			if err != nil {
				return nil, err
			}
			if !empty {
				matched = append(matched, desc.DefaultChild)
			}
		}
	case cat.ListPartition:
		_, isPoint, err := iv.point()
		if err != nil {
			return nil, err
		}
		covered := false
		for i := range desc.Partitions {
			p := &desc.Partitions[i]
			for _, v := range p.Bound.Values {
				contains, err := iv.contains(v)
				if err != nil {
					return nil, err
				}
				if contains {
					matched = append(matched, p.Child)
					if isPoint {
						covered = true
					}
					break
				}
			}
		}
		if desc.DefaultChild != 0 && !covered {
			matched = append(matched, desc.DefaultChild)
		}
	case cat.HashPartition:
		// Only an equality constrains a hash-partitioned table.
		pt, ok, err := iv.point()
		if err != nil {
			return nil, err
		}
		if !ok {
			return desc.ChildIDs(), nil
		}
		h := hashDatum(pt)
		for i := range desc.Partitions {
			p := &desc.Partitions[i]
			if p.Bound.Modulus > 0 && int32(h%uint64(p.Bound.Modulus)) == p.Bound.Remainder {
				matched = append(matched, p.Child)
			}
		}
	}
	return matched, nil
}

func leadingColumnName(key *cat.PartitionKey) string {
	if key == nil || len(key.Columns) == 0 {
		return ""
	}
	return key.Columns[0].Column.Name
}

// hashDatum hashes a datum for hash-partition routing. The exact function
// does not matter as long as it is deterministic and stable across the
// catalog and the pruner.
func hashDatum(d cat.Datum) uint64 {
	h := fnv.New64a()
	switch d.Kind() {
	case cat.KindInt:
		h.Write([]byte(strconv.FormatInt(d.Int(), 10)))
	case cat.KindFloat:
		h.Write([]byte(strconv.FormatFloat(d.Float(), 'g', -1, 64)))
	default:
		h.Write([]byte(d.String()))
	}
	return h.Sum64()
}

// interval is a possibly half-open range of datums used for pruning. Its
// methods surface incomparable datum kinds as errors instead of deciding
// either way; the pruner treats any such error as "cannot prune".
type interval struct {
	lo, hi                   cat.Datum
	loInclusive, hiInclusive bool
}

// intervalForColumn intersects all predicates on the named column into a
// single interval. The bool result is false when no predicate constrains the
// column.
func intervalForColumn(col string, preds []Predicate) (interval, bool, error) {
	iv := interval{lo: cat.MinVal(), loInclusive: true, hi: cat.MaxVal(), hiInclusive: true}
	constrained := false
	if col == "" {
		return iv, false, nil
	}
	for i := range preds {
		p := &preds[i]
		if p.Column != col {
			continue
		}
		constrained = true
		var other interval
		switch p.Op {
		case EQ:
			other = interval{lo: p.Value, loInclusive: true, hi: p.Value, hiInclusive: true}
		case LT:
			other = interval{lo: cat.MinVal(), loInclusive: true, hi: p.Value, hiInclusive: false}
		case LE:
			other = interval{lo: cat.MinVal(), loInclusive: true, hi: p.Value, hiInclusive: true}
		case GT:
			other = interval{lo: p.Value, loInclusive: false, hi: cat.MaxVal(), hiInclusive: true}
		case GE:
			other = interval{lo: p.Value, loInclusive: true, hi: cat.MaxVal(), hiInclusive: true}
		}
		var err error
		if iv, err = iv.intersect(other); err != nil {
			return iv, true, err
		}
	}
	return iv, constrained, nil
}

func (iv interval) intersect(other interval) (interval, error) {
	res := iv
	c, err := other.lo.Compare(res.lo)
	if err != nil {
		return res, err
	}
	if c > 0 || (c == 0 && !other.loInclusive) {
		res.lo, res.loInclusive = other.lo, other.loInclusive
	}
	c, err = other.hi.Compare(res.hi)
	if err != nil {
		return res, err
	}
	if c < 0 || (c == 0 && !other.hiInclusive) {
		res.hi, res.hiInclusive = other.hi, other.hiInclusive
	}
	return res, nil
}

func (iv interval) empty() (bool, error) {
	c, err := iv.lo.Compare(iv.hi)
	if err != nil {
		return false, err
	}
	if c > 0 {
		return true, nil
	}
	if c == 0 {
		return !(iv.loInclusive && iv.hiInclusive), nil
	}
	return false, nil
}

func (iv interval) overlaps(other interval) (bool, error) {
	x, err := iv.intersect(other)
	if err != nil {
		return false, err
	}
	empty, err := x.empty()
	if err != nil {
		return false, err
	}
	return !empty, nil
}

func (iv interval) contains(d cat.Datum) (bool, error) {
	return iv.overlaps(interval{lo: d, loInclusive: true, hi: d, hiInclusive: true})
}

// point reports whether the interval admits exactly one value, and which.
func (iv interval) point() (cat.Datum, bool, error) {
	if !iv.loInclusive || !iv.hiInclusive {
		return cat.Datum{}, false, nil
	}
	c, err := iv.lo.Compare(iv.hi)
	if err != nil {
		return cat.Datum{}, false, err
	}
	if c == 0 {
		return iv.lo, true, nil
	}
	return cat.Datum{}, false, nil
}

// subtractPrefix removes the covered range from the low end of iv, for
// default-partition coverage tracking. Range partitions are walked in
// ascending order, so coverage only ever eats the interval's prefix; anything
// left over after every explicit bound must route to the default partition.
func (iv interval) subtractPrefix(covered interval) (interval, error) {
	empty, err := iv.empty()
	if err != nil {
		return iv, err
	}
	overlaps, err := iv.overlaps(covered)
	if err != nil {
		return iv, err
	}
	if empty || !overlaps {
		return iv, nil
	}
	res := iv
	// If the covered range starts above iv's low end there is an uncovered
	// gap, and no later (higher) bound can close it; leave iv unchanged so
	// the default partition stays in play.
	c, err := covered.lo.Compare(res.lo)
	if err != nil {
		return iv, err
	}
	if c > 0 || (c == 0 && !covered.loInclusive && res.loInclusive) {
		return iv, nil
	}
	c, err = covered.hi.Compare(res.lo)
	if err != nil {
		return iv, err
	}
	if c > 0 || (c == 0 && covered.hiInclusive && res.loInclusive) {
		res.lo = covered.hi
		res.loInclusive = !covered.hiInclusive
		if res.lo.Kind() == cat.KindMaxVal {
			// MAXVALUE is an open sentinel no stored value reaches, so a
			// remainder that starts there is empty.
			res.loInclusive = false
		}
	}
	return res, nil
}
