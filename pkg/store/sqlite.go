package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/nsxbet/sql-governor/pkg/types"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_versions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		connection  TEXT NOT NULL,
		table_name  TEXT NOT NULL,
		version     INTEGER NOT NULL,
		checksum    TEXT NOT NULL,
		definition  TEXT NOT NULL,
		structure   TEXT NOT NULL,
		captured_at DATETIME NOT NULL,
		created_at  DATETIME NOT NULL,
		UNIQUE (connection, table_name, version)
	)`,
	`CREATE TABLE IF NOT EXISTS schema_version_tags (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		version_id INTEGER NOT NULL REFERENCES schema_versions (id),
		tag        TEXT NOT NULL,
		memo       TEXT,
		created_by TEXT,
		created_at DATETIME NOT NULL,
		UNIQUE (version_id, tag)
	)`,
	`CREATE TABLE IF NOT EXISTS executions (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id       TEXT NOT NULL,
		connection     TEXT NOT NULL,
		operator       TEXT NOT NULL,
		query_index    INTEGER NOT NULL,
		statement      TEXT NOT NULL,
		class          TEXT NOT NULL,
		kind           TEXT NOT NULL,
		status         TEXT NOT NULL,
		outcome        TEXT NOT NULL,
		error          TEXT,
		rows_affected  INTEGER NOT NULL DEFAULT 0,
		duration_ms    INTEGER NOT NULL DEFAULT 0,
		schema_changes TEXT,
		executed_at    DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_executions_batch ON executions (batch_id)`,
	`CREATE INDEX IF NOT EXISTS idx_executions_time ON executions (executed_at)`,
}

// Store is the SQLite-backed implementation of VersionStore and
// ExecutionStore.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path and ensures the schema
// exists. ":memory:" opens a throwaway in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, errors.Wrap(err, "failed to create store directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store")
	}
	// SQLite allows a single writer. One connection serializes access and
	// keeps an in-memory store on its only copy of the schema.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "failed to create store schema")
		}
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const versionColumns = `id, connection, table_name, version, checksum, definition, structure, captured_at, created_at`

// GetLatestVersion returns the highest stored version for the pair, or nil
// when none exists.
func (s *Store) GetLatestVersion(ctx context.Context, connection, table string) (*SchemaVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+`
		 FROM schema_versions
		 WHERE connection = ? AND table_name = ?
		 ORDER BY version DESC
		 LIMIT 1`,
		connection, table,
	)
	version, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read latest version")
	}
	return version, nil
}

// InsertVersion creates version expectedPreviousVersion+1. The stored
// maximum is re-checked inside the transaction and the UNIQUE constraint
// backs it up, so exactly one of two racing inserts wins; the loser gets
// ErrVersionConflict.
func (s *Store) InsertVersion(ctx context.Context, connection, table string, snap *types.SchemaSnapshot, expectedPreviousVersion int64) (*SchemaVersion, error) {
	if snap == nil || snap.Structure == nil {
		return nil, errors.New("cannot store a version without a snapshot")
	}

	structure, err := json.Marshal(snap.Structure)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode structure")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin version insert")
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_versions WHERE connection = ? AND table_name = ?`,
		connection, table,
	).Scan(&current); err != nil {
		return nil, errors.Wrap(err, "failed to read current version")
	}
	if current != expectedPreviousVersion {
		return nil, errors.Wrapf(ErrVersionConflict,
			"expected latest version %d for %s.%s, found %d",
			expectedPreviousVersion, connection, table, current)
	}

	created := time.Now().UTC()
	next := expectedPreviousVersion + 1
	res, err := tx.ExecContext(ctx,
		`INSERT INTO schema_versions (connection, table_name, version, checksum, definition, structure, captured_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		connection, table, next, snap.Checksum, snap.Definition, string(structure), snap.CapturedAt.UTC(), created,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrapf(ErrVersionConflict,
				"version %d for %s.%s already exists", next, connection, table)
		}
		return nil, errors.Wrap(err, "failed to insert version")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read version id")
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit version insert")
	}

	return &SchemaVersion{
		ID:         id,
		Connection: connection,
		Table:      table,
		Version:    next,
		Checksum:   snap.Checksum,
		Definition: snap.Definition,
		Structure:  snap.Structure,
		CapturedAt: snap.CapturedAt.UTC(),
		CreatedAt:  created,
	}, nil
}

// GetVersion returns one stored version, or ErrVersionNotFound.
func (s *Store) GetVersion(ctx context.Context, connection, table string, version int64) (*SchemaVersion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+`
		 FROM schema_versions
		 WHERE connection = ? AND table_name = ? AND version = ?`,
		connection, table, version,
	)
	found, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrVersionNotFound, "version %d of %s.%s", version, connection, table)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read version")
	}
	return found, nil
}

// ListVersions returns all stored versions for the pair, newest first.
func (s *Store) ListVersions(ctx context.Context, connection, table string) ([]*SchemaVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+`
		 FROM schema_versions
		 WHERE connection = ? AND table_name = ?
		 ORDER BY version DESC`,
		connection, table,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list versions")
	}
	defer rows.Close()

	var versions []*SchemaVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan version")
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to list versions")
	}
	return versions, nil
}

// TagVersion attaches a named marker to a stored version. Tagging the same
// version twice with the same tag fails.
func (s *Store) TagVersion(ctx context.Context, connection, table string, version int64, tag, memo, createdBy string) error {
	target, err := s.GetVersion(ctx, connection, table, version)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO schema_version_tags (version_id, tag, memo, created_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		target.ID, tag, memo, createdBy, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Errorf("version %d of %s.%s is already tagged %q", version, connection, table, tag)
		}
		return errors.Wrap(err, "failed to tag version")
	}
	return nil
}

// ListTags returns the tags of one stored version, oldest first.
func (s *Store) ListTags(ctx context.Context, connection, table string, version int64) ([]*VersionTag, error) {
	target, err := s.GetVersion(ctx, connection, table, version)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag, memo, created_by, created_at FROM schema_version_tags WHERE version_id = ? ORDER BY created_at, id`,
		target.ID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tags")
	}
	defer rows.Close()

	var tags []*VersionTag
	for rows.Next() {
		var tag VersionTag
		var memo, createdBy sql.NullString
		if err := rows.Scan(&tag.Tag, &memo, &createdBy, &tag.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan tag")
		}
		tag.Memo = memo.String
		tag.CreatedBy = createdBy.String
		tags = append(tags, &tag)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to list tags")
	}
	return tags, nil
}

// RecordExecution writes one history row per statement of the batch,
// with the schema changes serialized onto the row of the DDL statement
// that produced them.
func (s *Store) RecordExecution(ctx context.Context, result *types.BatchResult) error {
	changesByIndex := make(map[int][]*types.SchemaChange)
	for _, change := range result.Changes {
		changesByIndex[change.StatementIndex] = append(changesByIndex[change.StatementIndex], change)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin history insert")
	}
	defer func() { _ = tx.Rollback() }()

	executedAt := result.StartedAt.UTC()
	for _, outcome := range result.Statements {
		var changes any
		if attached := changesByIndex[outcome.Index]; len(attached) > 0 {
			encoded, err := json.Marshal(attached)
			if err != nil {
				return errors.Wrap(err, "failed to encode schema changes")
			}
			changes = string(encoded)
		}

		var text, class, kind string
		if outcome.Statement != nil {
			text = outcome.Statement.Text
			class = outcome.Statement.Class.String()
			kind = outcome.Statement.Kind.String()
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO executions (batch_id, connection, operator, query_index, statement, class, kind, status, outcome, error, rows_affected, duration_ms, schema_changes, executed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.BatchID,
			result.Connection,
			result.Operator,
			outcome.Index,
			text,
			class,
			kind,
			outcome.Status.String(),
			result.Outcome.String(),
			outcome.Error,
			outcome.RowsAffected,
			outcome.Elapsed.Milliseconds(),
			changes,
			executedAt,
		); err != nil {
			return errors.Wrap(err, "failed to insert history row")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit history insert")
	}
	return nil
}

// ListExecutions returns history rows matching the filter, newest first.
func (s *Store) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*ExecutionRecord, error) {
	query := `SELECT id, batch_id, connection, operator, query_index, statement, class, kind, status, outcome, error, rows_affected, duration_ms, schema_changes, executed_at
		 FROM executions`
	var conditions []string
	var args []any

	add := func(condition string, value any) {
		conditions = append(conditions, condition)
		args = append(args, value)
	}
	if filter.Connection != "" {
		add("connection = ?", filter.Connection)
	}
	if filter.BatchID != "" {
		add("batch_id = ?", filter.BatchID)
	}
	if filter.Class != "" {
		add("class = ?", filter.Class)
	}
	if filter.Kind != "" {
		add("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		add("status = ?", filter.Status)
	}
	if filter.Outcome != "" {
		add("outcome = ?", filter.Outcome)
	}
	if filter.Operator != "" {
		add("operator = ?", filter.Operator)
	}
	if filter.Search != "" {
		add("statement LIKE ?", "%"+filter.Search+"%")
	}
	if !filter.Since.IsZero() {
		add("executed_at >= ?", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		add("executed_at <= ?", filter.Until.UTC())
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY executed_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list executions")
	}
	defer rows.Close()

	var records []*ExecutionRecord
	for rows.Next() {
		var record ExecutionRecord
		var errText, changes sql.NullString
		if err := rows.Scan(
			&record.ID,
			&record.BatchID,
			&record.Connection,
			&record.Operator,
			&record.Index,
			&record.Statement,
			&record.Class,
			&record.Kind,
			&record.Status,
			&record.Outcome,
			&errText,
			&record.RowsAffected,
			&record.DurationMS,
			&changes,
			&record.ExecutedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan execution")
		}
		record.Error = errText.String
		if changes.Valid && changes.String != "" {
			if err := json.Unmarshal([]byte(changes.String), &record.SchemaChanges); err != nil {
				return nil, errors.Wrap(err, "failed to decode schema changes")
			}
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to list executions")
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*SchemaVersion, error) {
	var version SchemaVersion
	var structure string
	if err := row.Scan(
		&version.ID,
		&version.Connection,
		&version.Table,
		&version.Version,
		&version.Checksum,
		&version.Definition,
		&structure,
		&version.CapturedAt,
		&version.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(structure), &version.Structure); err != nil {
		return nil, errors.Wrap(err, "failed to decode structure")
	}
	return &version, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
