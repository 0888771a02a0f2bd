package governor

import (
	"testing"

	"github.com/nsxbet/sql-governor/pkg/differ"
	"github.com/nsxbet/sql-governor/pkg/types"
)

func TestReviewResult_HasBlocking(t *testing.T) {
	tests := []struct {
		name     string
		summary  Summary
		expected bool
	}{
		{
			name:     "all valid",
			summary:  Summary{Statements: 2, Valid: 2},
			expected: false,
		},
		{
			name:     "one blocked",
			summary:  Summary{Statements: 2, Valid: 1, Blocked: 1},
			expected: true,
		},
		{
			name:     "warnings do not block",
			summary:  Summary{Statements: 1, Valid: 1, Warnings: 3},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ReviewResult{Summary: tt.summary}
			if got := r.HasBlocking(); got != tt.expected {
				t.Errorf("HasBlocking() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestReviewResult_HasWarnings(t *testing.T) {
	tests := []struct {
		name     string
		summary  Summary
		expected bool
	}{
		{
			name:     "no warnings",
			summary:  Summary{Statements: 1, Valid: 1},
			expected: false,
		},
		{
			name:     "has warnings",
			summary:  Summary{Statements: 1, Valid: 1, Warnings: 1},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ReviewResult{Summary: tt.summary}
			if got := r.HasWarnings(); got != tt.expected {
				t.Errorf("HasWarnings() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestReviewResult_IsClean(t *testing.T) {
	tests := []struct {
		name     string
		summary  Summary
		expected bool
	}{
		{
			name:     "clean",
			summary:  Summary{Statements: 1, Valid: 1},
			expected: true,
		},
		{
			name:     "blocked",
			summary:  Summary{Statements: 1, Blocked: 1},
			expected: false,
		},
		{
			name:     "warnings only",
			summary:  Summary{Statements: 1, Valid: 1, Warnings: 2},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ReviewResult{Summary: tt.summary}
			if got := r.IsClean(); got != tt.expected {
				t.Errorf("IsClean() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestReviewResult_String(t *testing.T) {
	r := &ReviewResult{
		Summary: Summary{Statements: 3, Valid: 2, Blocked: 1, Warnings: 2},
	}

	str := r.String()
	expected := "review: 3 statements (2 valid, 1 blocked, 2 warnings)"
	if str != expected {
		t.Errorf("String() = %q, want %q", str, expected)
	}
}

func TestSummarize(t *testing.T) {
	stmt := &types.Statement{Text: "SELECT 1"}
	reviews := []*StatementReview{
		{Validation: types.NewValidResult(stmt)},
		{Validation: types.NewSyntaxInvalidResult(stmt, "syntax error", nil)},
		{Validation: types.NewSemanticResult(stmt, []*types.Violation{
			{Severity: types.Severity_WARNING, Code: types.DanglingForeignKeyReference},
		})},
		{Validation: types.NewSemanticResult(stmt, []*types.Violation{
			{Severity: types.Severity_ERROR, Code: types.MissingColumn},
			{Severity: types.Severity_WARNING, Code: types.DanglingForeignKeyReference},
		})},
	}

	summary := summarize(reviews)
	if summary.Statements != 4 {
		t.Errorf("Statements = %d, want 4", summary.Statements)
	}
	// The warning-only statement stays valid.
	if summary.Valid != 2 {
		t.Errorf("Valid = %d, want 2", summary.Valid)
	}
	if summary.Blocked != 2 {
		t.Errorf("Blocked = %d, want 2", summary.Blocked)
	}
	if summary.Warnings != 2 {
		t.Errorf("Warnings = %d, want 2", summary.Warnings)
	}
}

func TestSummarize_Empty(t *testing.T) {
	summary := summarize(nil)
	if summary.Statements != 0 {
		t.Errorf("Statements = %d, want 0", summary.Statements)
	}

	r := &ReviewResult{Summary: summary}
	if !r.IsClean() {
		t.Error("An empty review should be clean")
	}
}

func TestSchemaComparison_Identical(t *testing.T) {
	structure := &types.TableMetadata{
		Name:    "users",
		Columns: []*types.ColumnMetadata{{Name: "id", Position: 1, Type: "bigint"}},
	}

	cmp := &SchemaComparison{Diff: differ.Diff(structure, structure)}
	if !cmp.Identical() {
		t.Error("Expected identical structures to compare clean")
	}

	changed := &types.TableMetadata{
		Name: "users",
		Columns: []*types.ColumnMetadata{
			{Name: "id", Position: 1, Type: "bigint"},
			{Name: "email", Position: 2, Type: "varchar(255)"},
		},
	}
	cmp = &SchemaComparison{Diff: differ.Diff(structure, changed)}
	if cmp.Identical() {
		t.Error("Expected the added column to show up")
	}
}
