// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package tree holds the minimal statement representation the hypothetical
// catalogs need from the host: just enough node kinds to recognize plan-only
// analyses. The host's parser produces these nodes; nothing here parses SQL.
package tree

import "strings"

// Statement is a parsed top-level statement.
type Statement interface {
	// StatementTag returns a short uppercase tag identifying the statement
	// kind, in the style of command tags.
	StatementTag() string
}

// Explain requests a plan explanation for the wrapped statement.
type Explain struct {
	// Options are the options given in parentheses, e.g. ANALYZE, VERBOSE,
	// COSTS OFF. An option with no explicit value has Value "".
	Options []ExplainOption

	// Statement is the statement being explained. It may itself be an
	// Explain.
	Statement Statement
}

// ExplainOption is a single EXPLAIN option. Names are matched
// case-insensitively.
type ExplainOption struct {
	Name  string
	Value string
}

// StatementTag implements Statement.
func (*Explain) StatementTag() string { return "EXPLAIN" }

// Execute runs a previously prepared statement. Executing under EXPLAIN still
// executes, so it is never plan-only.
type Execute struct {
	Name string
}

// StatementTag implements Statement.
func (*Execute) StatementTag() string { return "EXECUTE" }

// Query is any plannable DML statement (SELECT, INSERT, UPDATE, DELETE). The
// host does not need to distinguish them for plan-only detection.
type Query struct {
	Tag string
}

// StatementTag implements Statement.
func (q *Query) StatementTag() string { return q.Tag }

// Utility is any other utility statement, identified by tag.
type Utility struct {
	Tag string
}

// StatementTag implements Statement.
func (u *Utility) StatementTag() string { return u.Tag }

// PlanOnly reports whether running the statement performs only planning, with
// no execution of the underlying command. Only such statements may see
// hypothetical objects.
//
// Detection inspects the EXPLAIN options rather than the statement shape: an
// EXPLAIN carrying an effective ANALYZE option executes the statement and is
// therefore not plan-only, while EXPLAIN (ANALYZE FALSE) is. The walk is pure
// and never mutates the tree.
func PlanOnly(stmt Statement) bool {
	e, ok := stmt.(*Explain)
	if !ok {
		return false
	}
	for _, opt := range e.Options {
		if strings.EqualFold(opt.Name, "analyze") && optionEnabled(opt.Value) {
			return false
		}
	}
	// EXPLAIN EXECUTE plans the prepared statement without running it, so a
	// nested Execute is fine. A nested Explain is plan-only iff it is itself
	// plan-only.
	if nested, ok := e.Statement.(*Explain); ok {
		return PlanOnly(nested)
	}
	return true
}

// optionEnabled interprets an option value the way boolean options are
// parsed: absent or unparsable values count as true.
func optionEnabled(val string) bool {
	switch strings.ToLower(val) {
	case "false", "off", "no", "0":
		return false
	default:
		return true
	}
}
