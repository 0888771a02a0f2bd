package governor

import (
	"fmt"

	"github.com/nsxbet/sql-governor/pkg/differ"
	"github.com/nsxbet/sql-governor/pkg/store"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// StatementReview pairs one statement's validation result with the online
// DDL advisory attached to ALTER statements. The advisory annotates, it
// never blocks.
type StatementReview struct {
	Validation *types.ValidationResult `json:"validation"`
	Advisory   *types.AlterAdvisory    `json:"advisory,omitempty"`
}

// ReviewResult holds the per-statement results of one Review call, in
// statement order, plus aggregate counts.
type ReviewResult struct {
	Connection string             `json:"connection"`
	Statements []*StatementReview `json:"statements"`
	Summary    Summary            `json:"summary"`
}

// Summary aggregates review findings for quick gating.
type Summary struct {
	// Statements is the number of classified statements reviewed.
	Statements int `json:"statements"`

	// Valid counts statements whose result permits execution.
	Valid int `json:"valid"`

	// Blocked counts statements whose result prevents execution.
	Blocked int `json:"blocked"`

	// Warnings counts warning-level violations across all statements.
	Warnings int `json:"warnings"`
}

// HasBlocking reports whether any statement must not execute.
//
// This is the gate for pipelines that execute after review:
//
//	if review.HasBlocking() {
//	    os.Exit(1)
//	}
func (r *ReviewResult) HasBlocking() bool {
	return r.Summary.Blocked > 0
}

// HasWarnings reports whether any statement carries warning findings.
func (r *ReviewResult) HasWarnings() bool {
	return r.Summary.Warnings > 0
}

// IsClean reports whether the review found nothing at all.
func (r *ReviewResult) IsClean() bool {
	return r.Summary.Blocked == 0 && r.Summary.Warnings == 0
}

// String returns a one-line summary.
//
// Example output:
//
//	review: 3 statements (2 valid, 1 blocked, 2 warnings)
func (r *ReviewResult) String() string {
	return fmt.Sprintf("review: %d statements (%d valid, %d blocked, %d warnings)",
		r.Summary.Statements, r.Summary.Valid, r.Summary.Blocked, r.Summary.Warnings)
}

func summarize(reviews []*StatementReview) Summary {
	summary := Summary{Statements: len(reviews)}
	for _, review := range reviews {
		if review.Validation.Blocking() {
			summary.Blocked++
		} else {
			summary.Valid++
		}
		summary.Warnings += len(review.Validation.Warnings())
	}
	return summary
}

// SchemaComparison is the difference between two stored versions of one
// table, rendered as field-level changes, a unified text diff of the
// definitions and a side-by-side line pairing.
type SchemaComparison struct {
	Connection string               `json:"connection"`
	Table      string               `json:"table"`
	From       *store.SchemaVersion `json:"from"`
	To         *store.SchemaVersion `json:"to"`
	Diff       *differ.TableDiff    `json:"diff"`
	Unified    string               `json:"unified,omitempty"`
	SideBySide []*differ.LinePair   `json:"sideBySide,omitempty"`
}

// Identical reports whether the two versions share the same structure.
func (c *SchemaComparison) Identical() bool {
	return c.Diff.IsEmpty()
}
