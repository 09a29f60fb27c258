// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package hypo maintains catalogs of hypothetical indexes and hypothetical
// partitioned tables, and splices them into a planner's view of the world
// during plan-only analyses. No storage is ever created: the objects exist
// only as descriptors plus estimated statistics, and the injection is scoped
// to a single planning pass so that execution never sees them.
//
// The moving parts:
//
//   - Session tracks the per-backend admission state: whether the current
//     command is a plan-only analysis, and whether injection is enabled at
//     all.
//   - IndexCatalog and TableCatalog are the long-lived registries of
//     hypothetical objects. They survive across analyses and are only
//     emptied by explicit removal or reset.
//   - Injector implements cat.PlannerCatalog as a decorator in front of the
//     real implementation, answering from the catalogs when a hypothetical
//     object applies and delegating otherwise.
//
// Registries are constructed explicitly and passed by reference rather than
// living in package globals, so tests and multi-tenant hosts can hold
// independent instances.
package hypo

import (
	"github.com/cockroachdb/hypo/pkg/sql/sem/tree"
	"github.com/cockroachdb/hypo/pkg/util/syncutil"
)

// Session is the per-backend-session admission state. Injection runs only
// while both flags hold: the current command was recognized as plan-only and
// the feature is enabled. The two flags are independent: Enabled is a user
// setting that survives across commands, planOnly is derived per command and
// must never leak past it.
type Session struct {
	mu struct {
		syncutil.Mutex
		planOnly bool
		enabled  bool
	}
}

// NewSession returns a Session with injection enabled.
func NewSession() *Session {
	s := &Session{}
	s.mu.enabled = true
	return s
}

// StartCommand inspects the statement about to run and records whether it is
// a plan-only analysis. It is the analog of a utility-command hook: the host
// calls it once per top-level command, before planning starts.
func (s *Session) StartCommand(stmt tree.Statement) {
	planOnly := tree.PlanOnly(stmt)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.planOnly = planOnly
}

// FinishCommand unconditionally clears the plan-only flag. The host must call
// it when the command's execution phase completes, including on error or
// abort, typically via defer. It is idempotent.
func (s *Session) FinishCommand() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.planOnly = false
}

// SetEnabled toggles the feature flag. Disabling does not touch the catalogs;
// it only prevents the injection engine from entering its active state.
func (s *Session) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.enabled = enabled
}

// Enabled returns the feature flag.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.enabled
}

// active is the single admission condition checked at every injection point.
func (s *Session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mu.planOnly && s.mu.enabled
}
