// Package store persists schema versions and execution history in an
// embedded SQLite database and writes an append-only JSONL audit trail.
// Version numbers per (connection, table) are kept strictly increasing by
// an atomic compare-and-insert, so concurrent DDL batches race to a
// conflict instead of producing duplicate versions.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/nsxbet/sql-governor/pkg/types"
)

// ErrVersionConflict is returned when the latest stored version moved
// between the caller's read and its insert. The caller re-reads the latest
// version and retries or deduplicates.
var ErrVersionConflict = errors.New("schema version conflict")

// ErrVersionNotFound is returned when a requested version does not exist.
var ErrVersionNotFound = errors.New("schema version not found")

// SchemaVersion is one stored version of a table's structure.
type SchemaVersion struct {
	ID         int64                `json:"id"`
	Connection string               `json:"connection"`
	Table      string               `json:"table"`
	Version    int64                `json:"version"`
	Checksum   string               `json:"checksum"`
	Definition string               `json:"definition"`
	Structure  *types.TableMetadata `json:"structure"`
	CapturedAt time.Time            `json:"capturedAt"`
	CreatedAt  time.Time            `json:"createdAt"`
}

// Snapshot converts the stored version back into a snapshot, the shape the
// differ consumes.
func (v *SchemaVersion) Snapshot() *types.SchemaSnapshot {
	if v == nil {
		return nil
	}
	return &types.SchemaSnapshot{
		Table:      v.Table,
		Definition: v.Definition,
		Structure:  v.Structure,
		Checksum:   v.Checksum,
		CapturedAt: v.CapturedAt,
	}
}

// VersionTag is a named marker on a stored version.
type VersionTag struct {
	Tag       string    `json:"tag"`
	Memo      string    `json:"memo,omitempty"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// VersionStore is the schema version collaborator. GetLatestVersion
// returns nil without error when no version exists yet.
type VersionStore interface {
	GetLatestVersion(ctx context.Context, connection, table string) (*SchemaVersion, error)
	// InsertVersion creates version expectedPreviousVersion+1 from the
	// snapshot. It fails with ErrVersionConflict when the stored latest
	// version is no longer expectedPreviousVersion.
	InsertVersion(ctx context.Context, connection, table string, snap *types.SchemaSnapshot, expectedPreviousVersion int64) (*SchemaVersion, error)
	GetVersion(ctx context.Context, connection, table string, version int64) (*SchemaVersion, error)
	ListVersions(ctx context.Context, connection, table string) ([]*SchemaVersion, error)
	TagVersion(ctx context.Context, connection, table string, version int64, tag, memo, createdBy string) error
	ListTags(ctx context.Context, connection, table string, version int64) ([]*VersionTag, error)
}

// ExecutionRecord is one statement of a recorded batch, read back from
// history.
type ExecutionRecord struct {
	ID            int64                 `json:"id"`
	BatchID       string                `json:"batchId"`
	Connection    string                `json:"connection"`
	Operator      string                `json:"operator"`
	Index         int                   `json:"index"`
	Statement     string                `json:"statement"`
	Class         string                `json:"class"`
	Kind          string                `json:"kind"`
	Status        string                `json:"status"`
	Outcome       string                `json:"outcome"`
	Error         string                `json:"error,omitempty"`
	RowsAffected  int64                 `json:"rowsAffected"`
	DurationMS    int64                 `json:"durationMs"`
	SchemaChanges []*types.SchemaChange `json:"schemaChanges,omitempty"`
	ExecutedAt    time.Time             `json:"executedAt"`
}

// ExecutionFilter narrows a history listing. Zero fields match
// everything; Search matches a substring of the statement text.
type ExecutionFilter struct {
	Connection string
	BatchID    string
	Class      string
	Kind       string
	Status     string
	Outcome    string
	Operator   string
	Search     string
	Since      time.Time
	Until      time.Time
	Limit      int
}

// ExecutionStore is the history collaborator. RecordExecution is called
// unconditionally after every batch, committed or rolled back.
type ExecutionStore interface {
	RecordExecution(ctx context.Context, result *types.BatchResult) error
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*ExecutionRecord, error)
}
