// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cat

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/redact"
)

// DatumKind identifies the scalar kind held by a Datum.
type DatumKind int8

const (
	// KindNull is the null datum kind.
	KindNull DatumKind = iota
	// KindInt holds an int64.
	KindInt
	// KindFloat holds a float64.
	KindFloat
	// KindString holds a string.
	KindString
	// KindBool holds a bool.
	KindBool
	// KindMinVal sorts before every other datum. It is used as the open lower
	// bound of a range partition (MINVALUE).
	KindMinVal
	// KindMaxVal sorts after every other datum. It is used as the open upper
	// bound of a range partition (MAXVALUE).
	KindMaxVal
)

// Datum is a minimal ordered scalar value. It is the currency of partition
// bounds, predicate constants and histogram upper bounds. Datums of different
// kinds are only comparable when one of them is MinVal or MaxVal.
type Datum struct {
	kind DatumKind
	i    int64
	f    float64
	s    string
	b    bool
}

// NullDatum returns the null datum.
func NullDatum() Datum { return Datum{kind: KindNull} }

// IntDatum returns an int64 datum.
func IntDatum(v int64) Datum { return Datum{kind: KindInt, i: v} }

// FloatDatum returns a float64 datum.
func FloatDatum(v float64) Datum { return Datum{kind: KindFloat, f: v} }

// StringDatum returns a string datum.
func StringDatum(v string) Datum { return Datum{kind: KindString, s: v} }

// BoolDatum returns a bool datum.
func BoolDatum(v bool) Datum { return Datum{kind: KindBool, b: v} }

// MinVal returns the datum that sorts before every other datum.
func MinVal() Datum { return Datum{kind: KindMinVal} }

// MaxVal returns the datum that sorts after every other datum.
func MaxVal() Datum { return Datum{kind: KindMaxVal} }

// Kind returns the datum's kind.
func (d Datum) Kind() DatumKind { return d.kind }

// IsNull returns true if the datum is null.
func (d Datum) IsNull() bool { return d.kind == KindNull }

// Int returns the int64 value. The datum must be of kind KindInt.
func (d Datum) Int() int64 { return d.i }

// Float returns the float64 value. The datum must be of kind KindFloat.
func (d Datum) Float() float64 { return d.f }

// String implements fmt.Stringer.
func (d Datum) String() string {
	switch d.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return fmt.Sprintf("%d", d.i)
	case KindFloat:
		return fmt.Sprintf("%g", d.f)
	case KindString:
		return fmt.Sprintf("%q", d.s)
	case KindBool:
		return fmt.Sprintf("%t", d.b)
	case KindMinVal:
		return "MINVALUE"
	case KindMaxVal:
		return "MAXVALUE"
	}
	return "?"
}

// SafeFormat implements redact.SafeFormatter. Only string datums carry
// user data; everything else is safe to print unredacted.
func (d Datum) SafeFormat(s redact.SafePrinter, _ rune) {
	if d.kind == KindString {
		s.Printf("%s", redact.Unsafe(d.String()))
		return
	}
	s.Printf("%s", redact.SafeString(d.String()))
}

// Compare compares d with other. It returns -1 if d sorts before other, 0 if
// they are equal and +1 if d sorts after other. Nulls sort first, matching the
// ordering used for histogram bounds. Comparing incompatible kinds returns an
// error rather than panicking so that catalog validation can surface it.
func (d Datum) Compare(other Datum) (int, error) {
	// MinVal/MaxVal compare against anything.
	switch {
	case d.kind == KindMinVal:
		if other.kind == KindMinVal {
			return 0, nil
		}
		return -1, nil
	case d.kind == KindMaxVal:
		if other.kind == KindMaxVal {
			return 0, nil
		}
		return 1, nil
	case other.kind == KindMinVal:
		return 1, nil
	case other.kind == KindMaxVal:
		return -1, nil
	}

	if d.kind == KindNull || other.kind == KindNull {
		if d.kind == other.kind {
			return 0, nil
		}
		if d.kind == KindNull {
			return -1, nil
		}
		return 1, nil
	}

	if d.kind != other.kind {
		return 0, errors.Newf("cannot compare %s with %s", d, other)
	}

	switch d.kind {
	case KindInt:
		return compareOrdered(d.i, other.i), nil
	case KindFloat:
		return compareOrdered(d.f, other.f), nil
	case KindString:
		return compareOrdered(d.s, other.s), nil
	case KindBool:
		db, ob := 0, 0
		if d.b {
			db = 1
		}
		if other.b {
			ob = 1
		}
		return compareOrdered(db, ob), nil
	}
	return 0, errors.AssertionFailedf("unhandled datum kind %d", d.kind)
}

// MustCompare is like Compare but asserts that the datums are comparable.
// It is used on paths where kinds were already validated at catalog-add time.
func (d Datum) MustCompare(other Datum) int {
	c, err := d.Compare(other)
	if err != nil {
		panic(errors.HandleAsAssertionFailure(err))
	}
	return c
}

func compareOrdered[T int | int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
