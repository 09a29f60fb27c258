// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hypo

import "github.com/cockroachdb/errors"

// Sentinel errors for catalog mutations. Callers classify failures with
// errors.Is; the concrete errors wrap these with descriptive detail. A failed
// mutation never leaves a partial write behind.
var (
	// ErrValidation marks creation requests rejected before entering the
	// catalog: unknown columns, unsupported access methods, invalid option
	// combinations or malformed partition keys.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks operations addressing an identifier with no catalog
	// entry.
	ErrNotFound = errors.New("hypothetical object not found")

	// ErrOverlap marks partition bounds conflicting with an existing sibling
	// bound under the declared strategy.
	ErrOverlap = errors.New("partition bound overlaps")

	// ErrStrategyMismatch marks partition bounds whose shape does not match
	// the parent's declared partition strategy.
	ErrStrategyMismatch = errors.New("partition bound does not match strategy")
)

func validationf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func notFoundf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

func overlapf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrOverlap)
}

func strategyMismatchf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrStrategyMismatch)
}
