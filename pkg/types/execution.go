package types

import "time"

// StatementOutcome_Status is the per-statement execution status.
type StatementOutcome_Status int32

const (
	StatementOutcome_STATUS_UNSPECIFIED StatementOutcome_Status = 0
	StatementOutcome_SUCCESS            StatementOutcome_Status = 1
	StatementOutcome_FAILED             StatementOutcome_Status = 2
	StatementOutcome_SKIPPED            StatementOutcome_Status = 3
)

func (s StatementOutcome_Status) String() string {
	switch s {
	case StatementOutcome_SUCCESS:
		return "SUCCESS"
	case StatementOutcome_FAILED:
		return "FAILED"
	case StatementOutcome_SKIPPED:
		return "SKIPPED"
	default:
		return "STATUS_UNSPECIFIED"
	}
}

// StatementOutcome records the execution of one statement within a batch.
// Index is the 0-based position in the batch. Statements after the first
// failure are SKIPPED and were never sent to the engine.
type StatementOutcome struct {
	Index        int                     `json:"index"`
	Statement    *Statement              `json:"statement"`
	Status       StatementOutcome_Status `json:"status"`
	RowsAffected int64                   `json:"rowsAffected"`
	Elapsed      time.Duration           `json:"elapsed"`
	// Error holds the engine error verbatim for FAILED outcomes.
	Error string `json:"error,omitempty"`
	// Columns and Rows carry the (possibly truncated) result set for DQL.
	Columns   []string   `json:"columns,omitempty"`
	Rows      [][]string `json:"rows,omitempty"`
	Truncated bool       `json:"truncated,omitempty"`
}

// BatchOutcome is the overall result of a batch: committed as a whole or
// rolled back as a whole. There is no partial application.
type BatchOutcome int32

const (
	BatchOutcome_OUTCOME_UNSPECIFIED BatchOutcome = 0
	BatchOutcome_COMMITTED           BatchOutcome = 1
	BatchOutcome_ROLLED_BACK         BatchOutcome = 2
)

func (o BatchOutcome) String() string {
	switch o {
	case BatchOutcome_COMMITTED:
		return "COMMITTED"
	case BatchOutcome_ROLLED_BACK:
		return "ROLLED_BACK"
	default:
		return "OUTCOME_UNSPECIFIED"
	}
}

// SchemaChange pairs the before/after snapshots captured around one DDL
// statement. Both snapshots are kept even when the after checksum matched
// the latest stored version: Deduplicated marks that reuse and Version
// carries the reused number. Version stays zero when the batch rolled back
// or the table no longer exists after the statement.
type SchemaChange struct {
	// StatementIndex is the 0-based batch position of the DDL statement
	// that produced this change.
	StatementIndex int             `json:"statementIndex"`
	Table          string          `json:"table"`
	Before         *SchemaSnapshot `json:"before,omitempty"`
	After          *SchemaSnapshot `json:"after,omitempty"`
	Version        int64           `json:"version,omitempty"`
	Deduplicated   bool            `json:"deduplicated,omitempty"`
}

// BatchResult is the complete result of executing a batch. FailureCode
// distinguishes TimeoutExceeded from ordinary ExecutionFailure on rollback;
// it is Ok for committed batches.
type BatchResult struct {
	BatchID     string              `json:"batchId"`
	Connection  string              `json:"connection"`
	Operator    string              `json:"operator"`
	Outcome     BatchOutcome        `json:"outcome"`
	FailedIndex int                 `json:"failedIndex"`
	FailureCode Code                `json:"failureCode"`
	Error       string              `json:"error,omitempty"`
	Statements  []*StatementOutcome `json:"statements"`
	Changes     []*SchemaChange     `json:"changes,omitempty"`
	StartedAt   time.Time           `json:"startedAt"`
	Elapsed     time.Duration       `json:"elapsed"`
}

// Committed reports whether the batch was applied.
func (r *BatchResult) Committed() bool {
	return r.Outcome == BatchOutcome_COMMITTED
}

// TimedOut reports whether the rollback was caused by the batch deadline.
func (r *BatchResult) TimedOut() bool {
	return r.FailureCode == TimeoutExceeded
}
