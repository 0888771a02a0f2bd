package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nsxbet/sql-governor/pkg/types"
)

func TestAuditLoggerWritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	logger, err := NewAuditLogger(path, 0)
	require.NoError(t, err)

	logger.Record(&types.BatchResult{
		BatchID:     "batch-1",
		Connection:  "staging",
		Operator:    "alice",
		Outcome:     types.BatchOutcome_COMMITTED,
		FailedIndex: -1,
		Statements:  []*types.StatementOutcome{{Index: 0}},
		StartedAt:   time.Now().UTC(),
		Elapsed:     40 * time.Millisecond,
	})
	logger.Record(&types.BatchResult{
		BatchID:     "batch-2",
		Connection:  "staging",
		Operator:    "alice",
		Outcome:     types.BatchOutcome_ROLLED_BACK,
		FailedIndex: 1,
		FailureCode: types.TimeoutExceeded,
		Error:       "batch deadline exceeded",
		Statements:  []*types.StatementOutcome{{Index: 0}, {Index: 1}},
		StartedAt:   time.Now().UTC(),
		Elapsed:     5 * time.Second,
	})
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry AuditEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, entries, 2)

	require.Equal(t, "batch-1", entries[0].BatchID)
	require.Equal(t, "COMMITTED", entries[0].Outcome)
	require.Equal(t, 1, entries[0].Statements)
	require.Empty(t, entries[0].FailureCode)

	require.Equal(t, "ROLLED_BACK", entries[1].Outcome)
	require.Equal(t, 1, entries[1].FailedIndex)
	require.Equal(t, "TimeoutExceeded", entries[1].FailureCode)
	require.Equal(t, int64(5000), entries[1].DurationMS)
}

func TestAuditLoggerNilIsNoOp(t *testing.T) {
	var logger *AuditLogger
	logger.Record(&types.BatchResult{BatchID: "batch-1"})
	require.NoError(t, logger.Close())
}
