package types

// Severity represents how serious a violation is
type Severity int32

const (
	Severity_SEVERITY_UNSPECIFIED Severity = 0
	Severity_ERROR                Severity = 1
	Severity_WARNING              Severity = 2
)

func (s Severity) String() string {
	switch s {
	case Severity_ERROR:
		return "ERROR"
	case Severity_WARNING:
		return "WARNING"
	default:
		return "SEVERITY_UNSPECIFIED"
	}
}

// Violation is one semantic finding against a statement. Warnings never
// block execution; errors do.
type Violation struct {
	Severity      Severity  `json:"severity"`
	Code          Code      `json:"code"`
	Identifier    string    `json:"identifier"`
	Content       string    `json:"content"`
	StartPosition *Position `json:"startPosition"`
}

// ValidationResult_Status is the tag of the ValidationResult variant.
type ValidationResult_Status int32

const (
	ValidationResult_STATUS_UNSPECIFIED ValidationResult_Status = 0
	ValidationResult_VALID              ValidationResult_Status = 1
	ValidationResult_SYNTAX_INVALID     ValidationResult_Status = 2
	ValidationResult_SEMANTIC_INVALID   ValidationResult_Status = 3
	ValidationResult_UNCLASSIFIABLE     ValidationResult_Status = 4
)

func (s ValidationResult_Status) String() string {
	switch s {
	case ValidationResult_VALID:
		return "VALID"
	case ValidationResult_SYNTAX_INVALID:
		return "SYNTAX_INVALID"
	case ValidationResult_SEMANTIC_INVALID:
		return "SEMANTIC_INVALID"
	case ValidationResult_UNCLASSIFIABLE:
		return "UNCLASSIFIABLE"
	default:
		return "STATUS_UNSPECIFIED"
	}
}

// ValidationResult is the tagged outcome of validating one statement.
// Exactly one variant applies: VALID carries nothing extra, SYNTAX_INVALID
// carries the engine or parser message verbatim, SEMANTIC_INVALID carries a
// non-empty violation list, UNCLASSIFIABLE marks a statement whose leading
// keyword belongs to no governed kind. Warning-only findings leave the
// result VALID with the warnings attached.
type ValidationResult struct {
	Statement     *Statement              `json:"statement"`
	Status        ValidationResult_Status `json:"status"`
	Message       string                  `json:"message,omitempty"`
	StartPosition *Position               `json:"startPosition,omitempty"`
	Violations    []*Violation            `json:"violations,omitempty"`
}

// NewValidResult returns a VALID result for the statement.
func NewValidResult(stmt *Statement) *ValidationResult {
	return &ValidationResult{
		Statement: stmt,
		Status:    ValidationResult_VALID,
	}
}

// NewSyntaxInvalidResult returns a SYNTAX_INVALID result carrying the
// engine message verbatim.
func NewSyntaxInvalidResult(stmt *Statement, message string, pos *Position) *ValidationResult {
	return &ValidationResult{
		Statement:     stmt,
		Status:        ValidationResult_SYNTAX_INVALID,
		Message:       message,
		StartPosition: pos,
	}
}

// NewUnclassifiableResult marks a statement that could not be classified.
// The statement carries the raw text only; no kind or class is assigned.
func NewUnclassifiableResult(text, message string, pos *Position) *ValidationResult {
	return &ValidationResult{
		Statement:     &Statement{Text: text, Start: pos},
		Status:        ValidationResult_UNCLASSIFIABLE,
		Message:       message,
		StartPosition: pos,
	}
}

// NewSemanticResult builds a result from semantic findings. Error-level
// violations make the result SEMANTIC_INVALID; warning-only findings keep
// it VALID with the warnings attached.
func NewSemanticResult(stmt *Statement, violations []*Violation) *ValidationResult {
	status := ValidationResult_VALID
	for _, v := range violations {
		if v.Severity == Severity_ERROR {
			status = ValidationResult_SEMANTIC_INVALID
			break
		}
	}
	return &ValidationResult{
		Statement:  stmt,
		Status:     status,
		Violations: violations,
	}
}

// Blocking reports whether the result must prevent execution.
func (r *ValidationResult) Blocking() bool {
	switch r.Status {
	case ValidationResult_SYNTAX_INVALID, ValidationResult_SEMANTIC_INVALID, ValidationResult_UNCLASSIFIABLE:
		return true
	}
	return false
}

// Warnings returns the warning-level violations.
func (r *ValidationResult) Warnings() []*Violation {
	var warnings []*Violation
	for _, v := range r.Violations {
		if v.Severity == Severity_WARNING {
			warnings = append(warnings, v)
		}
	}
	return warnings
}
