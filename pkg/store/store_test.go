package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nsxbet/sql-governor/pkg/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "governor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func snapshotFixture(checksum string) *types.SchemaSnapshot {
	return &types.SchemaSnapshot{
		Table:      "orders",
		Definition: "CREATE TABLE `orders` (\n  `id` bigint NOT NULL\n)",
		Structure: &types.TableMetadata{
			Name: "orders",
			Columns: []*types.ColumnMetadata{
				{Name: "id", Position: 1, Type: "bigint"},
			},
		},
		Checksum:   checksum,
		CapturedAt: time.Now().UTC(),
	}
}

func TestGetLatestVersionEmpty(t *testing.T) {
	s := openStore(t)
	latest, err := s.GetLatestVersion(context.Background(), "staging", "orders")
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestInsertAndReadVersions(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	first, err := s.InsertVersion(ctx, "staging", "orders", snapshotFixture("aaa"), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Version)

	second, err := s.InsertVersion(ctx, "staging", "orders", snapshotFixture("bbb"), 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), second.Version)

	latest, err := s.GetLatestVersion(ctx, "staging", "orders")
	require.NoError(t, err)
	require.Equal(t, int64(2), latest.Version)
	require.Equal(t, "bbb", latest.Checksum)
	require.Equal(t, "orders", latest.Structure.Name)
	require.Len(t, latest.Structure.Columns, 1)

	got, err := s.GetVersion(ctx, "staging", "orders", 1)
	require.NoError(t, err)
	require.Equal(t, "aaa", got.Checksum)

	versions, err := s.ListVersions(ctx, "staging", "orders")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, int64(2), versions[0].Version)
	require.Equal(t, int64(1), versions[1].Version)

	snap := got.Snapshot()
	require.Equal(t, "orders", snap.Table)
	require.Equal(t, "aaa", snap.Checksum)
}

func TestVersionsAreScopedPerConnectionAndTable(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.InsertVersion(ctx, "staging", "orders", snapshotFixture("aaa"), 0)
	require.NoError(t, err)

	other, err := s.InsertVersion(ctx, "production", "orders", snapshotFixture("aaa"), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), other.Version)

	latest, err := s.GetLatestVersion(ctx, "staging", "users")
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestInsertVersionConflict(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.InsertVersion(ctx, "staging", "orders", snapshotFixture("aaa"), 0)
	require.NoError(t, err)

	// A second writer that still believes the table is unversioned.
	_, err = s.InsertVersion(ctx, "staging", "orders", snapshotFixture("bbb"), 0)
	require.ErrorIs(t, err, ErrVersionConflict)

	latest, err := s.GetLatestVersion(ctx, "staging", "orders")
	require.NoError(t, err)
	require.Equal(t, int64(1), latest.Version)
}

func TestGetVersionNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetVersion(context.Background(), "staging", "orders", 7)
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestTagVersion(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.InsertVersion(ctx, "staging", "orders", snapshotFixture("aaa"), 0)
	require.NoError(t, err)

	require.NoError(t, s.TagVersion(ctx, "staging", "orders", 1, "approved", "signed off after review", "dba"))
	require.Error(t, s.TagVersion(ctx, "staging", "orders", 1, "approved", "", "dba"))
	require.NoError(t, s.TagVersion(ctx, "staging", "orders", 1, "baseline", "", ""))

	tags, err := s.ListTags(ctx, "staging", "orders", 1)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	require.Equal(t, "approved", tags[0].Tag)
	require.Equal(t, "signed off after review", tags[0].Memo)
	require.Equal(t, "dba", tags[0].CreatedBy)
	require.Empty(t, tags[1].Memo)

	err = s.TagVersion(ctx, "staging", "orders", 9, "approved", "", "dba")
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func batchFixture(batchID string, outcome types.BatchOutcome, statements []*types.StatementOutcome, changes []*types.SchemaChange) *types.BatchResult {
	return &types.BatchResult{
		BatchID:     batchID,
		Connection:  "staging",
		Operator:    "alice",
		Outcome:     outcome,
		FailedIndex: -1,
		Statements:  statements,
		Changes:     changes,
		StartedAt:   time.Now().UTC(),
		Elapsed:     25 * time.Millisecond,
	}
}

func TestRecordAndListExecutions(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ddl := &types.Statement{
		Text:  "ALTER TABLE orders ADD COLUMN note TEXT NULL;",
		Class: types.StatementClass_DDL,
		Kind:  types.StatementKind_ALTER,
	}
	committed := batchFixture("batch-1", types.BatchOutcome_COMMITTED,
		[]*types.StatementOutcome{
			{
				Index:        0,
				Statement:    ddl,
				Status:       types.StatementOutcome_SUCCESS,
				RowsAffected: 0,
				Elapsed:      12 * time.Millisecond,
			},
		},
		[]*types.SchemaChange{
			{
				StatementIndex: 0,
				Table:          "orders",
				Before:         snapshotFixture("aaa"),
				After:          snapshotFixture("bbb"),
				Version:        2,
			},
		},
	)
	require.NoError(t, s.RecordExecution(ctx, committed))

	update := &types.Statement{
		Text:  "UPDATE users SET email = 'x' WHERE id = 1;",
		Class: types.StatementClass_DML,
		Kind:  types.StatementKind_UPDATE,
	}
	rolledBack := batchFixture("batch-2", types.BatchOutcome_ROLLED_BACK,
		[]*types.StatementOutcome{
			{
				Index:     0,
				Statement: update,
				Status:    types.StatementOutcome_FAILED,
				Error:     "Error 1054: Unknown column 'email'",
				Elapsed:   3 * time.Millisecond,
			},
		},
		nil,
	)
	rolledBack.FailedIndex = 0
	require.NoError(t, s.RecordExecution(ctx, rolledBack))

	all, err := s.ListExecutions(ctx, ExecutionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)

	failed, err := s.ListExecutions(ctx, ExecutionFilter{Status: "FAILED"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "batch-2", failed[0].BatchID)
	require.Equal(t, "ROLLED_BACK", failed[0].Outcome)
	require.Contains(t, failed[0].Error, "Unknown column")

	ddlRows, err := s.ListExecutions(ctx, ExecutionFilter{Class: "DDL"})
	require.NoError(t, err)
	require.Len(t, ddlRows, 1)
	require.Equal(t, "ALTER", ddlRows[0].Kind)
	require.Len(t, ddlRows[0].SchemaChanges, 1)
	require.Equal(t, "orders", ddlRows[0].SchemaChanges[0].Table)
	require.Equal(t, int64(2), ddlRows[0].SchemaChanges[0].Version)
	require.NotNil(t, ddlRows[0].SchemaChanges[0].Before)
	require.NotNil(t, ddlRows[0].SchemaChanges[0].After)

	byBatch, err := s.ListExecutions(ctx, ExecutionFilter{BatchID: "batch-1"})
	require.NoError(t, err)
	require.Len(t, byBatch, 1)

	bySearch, err := s.ListExecutions(ctx, ExecutionFilter{Search: "users"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	require.Equal(t, "batch-2", bySearch[0].BatchID)

	byOperator, err := s.ListExecutions(ctx, ExecutionFilter{Operator: "nobody"})
	require.NoError(t, err)
	require.Empty(t, byOperator)

	limited, err := s.ListExecutions(ctx, ExecutionFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	recent, err := s.ListExecutions(ctx, ExecutionFilter{Since: time.Now().UTC().Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, recent, 2)

	old, err := s.ListExecutions(ctx, ExecutionFilter{Until: time.Now().UTC().Add(-time.Hour)})
	require.NoError(t, err)
	require.Empty(t, old)
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.InsertVersion(context.Background(), "staging", "orders", snapshotFixture("aaa"), 0)
	require.NoError(t, err)
}
