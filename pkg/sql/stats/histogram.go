// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package stats

import "github.com/cockroachdb/hypo/pkg/sql/cat"

// Operator enumerates the comparison operators understood by the estimator.
type Operator int8

const (
	// EQ is '='.
	EQ Operator = iota
	// LT is '<'.
	LT
	// LE is '<='.
	LE
	// GT is '>'.
	GT
	// GE is '>='.
	GE
)

// String implements fmt.Stringer.
func (op Operator) String() string {
	switch op {
	case EQ:
		return "="
	case LT:
		return "<"
	case LE:
		return "<="
	case GT:
		return ">"
	case GE:
		return ">="
	}
	return "?"
}

// Predicate is a single comparison against a column, the unit the estimator
// prices. Conjunctions are expressed as []Predicate.
type Predicate struct {
	Column string
	Op     Operator
	Value  cat.Datum
}

// Bucket is a single histogram bucket. Its layout matches the collected
// histograms of real columns: NumEq rows equal to UpperBound, NumRange rows
// strictly between the previous bucket's upper bound and this one, spread
// over DistinctRange distinct values.
type Bucket struct {
	NumEq         float64
	NumRange      float64
	DistinctRange float64
	UpperBound    cat.Datum
}

// Histogram describes the distribution of values in a column as an ordered
// series of buckets. The first bucket always has NumRange == 0.
type Histogram struct {
	Buckets []Bucket
}

// rowCount returns the total number of rows the histogram covers.
func (h *Histogram) rowCount() float64 {
	var total float64
	for i := range h.Buckets {
		total += h.Buckets[i].NumEq + h.Buckets[i].NumRange
	}
	return total
}

// selectivity estimates the fraction of rows matching "col op val" from the
// histogram alone. The bool result is false when the histogram cannot price
// the comparison (incomparable datum kinds), in which case the caller falls
// back to a default.
func (h *Histogram) selectivity(op Operator, val cat.Datum) (float64, bool) {
	total := h.rowCount()
	if total == 0 || len(h.Buckets) == 0 {
		return 0, false
	}

	// rowsBelow accumulates rows with value < val, plus rows equal to val in
	// eqRows, walking buckets in upper-bound order.
	var rowsBelow, eqRows float64
	lower := cat.MinVal()
	for i := range h.Buckets {
		b := &h.Buckets[i]
		cmpUpper, err := val.Compare(b.UpperBound)
		if err != nil {
			return 0, false
		}
		switch {
		case cmpUpper > 0:
			// Entire bucket below val.
			rowsBelow += b.NumRange + b.NumEq
		case cmpUpper == 0:
			rowsBelow += b.NumRange
			eqRows = b.NumEq
		default:
			// val falls inside this bucket's range (or before it). Interpolate
			// for numeric bounds; otherwise assume half the range qualifies.
			cmpLower, err := val.Compare(lower)
			if err != nil {
				return 0, false
			}
			if cmpLower > 0 {
				frac := rangeFraction(lower, b.UpperBound, val)
				rowsBelow += frac * b.NumRange
				if b.DistinctRange > 0 {
					eqRows = b.NumRange / b.DistinctRange
				}
			}
			return clampSelectivity(op, rowsBelow, eqRows, total), true
		}
		lower = b.UpperBound
	}
	return clampSelectivity(op, rowsBelow, eqRows, total), true
}

func clampSelectivity(op Operator, rowsBelow, eqRows, total float64) float64 {
	var rows float64
	switch op {
	case EQ:
		rows = eqRows
	case LT:
		rows = rowsBelow
	case LE:
		rows = rowsBelow + eqRows
	case GT:
		rows = total - rowsBelow - eqRows
	case GE:
		rows = total - rowsBelow
	}
	sel := rows / total
	if sel < 0 {
		sel = 0
	}
	if sel > 1 {
		sel = 1
	}
	return sel
}

// rangeFraction returns the fraction of the (lower, upper) range that lies
// below val, interpolating linearly for numeric bounds and assuming one half
// otherwise.
func rangeFraction(lower, upper, val cat.Datum) float64 {
	lo, okLo := numeric(lower)
	hi, okHi := numeric(upper)
	v, okV := numeric(val)
	if !okLo || !okHi || !okV || hi <= lo {
		return 0.5
	}
	frac := (v - lo) / (hi - lo)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return frac
}

func numeric(d cat.Datum) (float64, bool) {
	switch d.Kind() {
	case cat.KindInt:
		return float64(d.Int()), true
	case cat.KindFloat:
		return d.Float(), true
	}
	return 0, false
}
