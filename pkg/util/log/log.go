// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log is a small logging facade in the style used throughout the
// sql packages: context-first formatted logging with verbosity gating, e.g.
//
//	if log.V(2) {
//		log.Infof(ctx, "r%d: lookup statistics", tableID)
//	}
//
// Log tags attached to the context via logtags are rendered as structured
// fields. The backend is a zap logger; the default emits nothing until
// Init is called.
package log

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/logtags"
	"go.uber.org/zap"
)

var (
	logger    atomic.Pointer[zap.SugaredLogger]
	verbosity atomic.Int32
)

func init() {
	logger.Store(zap.NewNop().Sugar())
}

// Init installs the given zap logger as the process-wide backend and sets the
// verbosity level for V. It returns a function restoring the previous
// configuration, for use in tests.
func Init(l *zap.Logger, v int32) func() {
	prev := logger.Swap(l.Sugar())
	prevV := verbosity.Swap(v)
	return func() {
		logger.Store(prev)
		verbosity.Store(prevV)
	}
}

// V returns true if logging at the given verbosity level is enabled.
func V(level int32) bool {
	return verbosity.Load() >= level
}

// Infof logs a formatted message at info severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	withTags(ctx).Infof(format, args...)
}

// Warningf logs a formatted message at warning severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	withTags(ctx).Warnf(format, args...)
}

// Errorf logs a formatted message at error severity.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	withTags(ctx).Errorf(format, args...)
}

func withTags(ctx context.Context) *zap.SugaredLogger {
	l := logger.Load()
	b := logtags.FromContext(ctx)
	if b == nil {
		return l
	}
	tags := b.Get()
	kv := make([]interface{}, 0, 2*len(tags))
	for _, t := range tags {
		kv = append(kv, t.Key(), t.ValueStr())
	}
	return l.With(kv...)
}
