package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nsxbet/sql-governor/pkg/types"
)

// AuditEntry is one line of the append-only audit trail. The trail is a
// flat summary per batch; the full per-statement detail lives in the
// execution history.
type AuditEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	BatchID     string    `json:"batchId"`
	Connection  string    `json:"connection"`
	Operator    string    `json:"operator"`
	Outcome     string    `json:"outcome"`
	Statements  int       `json:"statements"`
	FailedIndex int       `json:"failedIndex"`
	FailureCode string    `json:"failureCode,omitempty"`
	Error       string    `json:"error,omitempty"`
	DurationMS  int64     `json:"durationMs"`
}

// AuditLogger writes JSON Lines audit entries to a file.
type AuditLogger struct {
	mu        sync.Mutex
	f         *os.File
	enc       *json.Encoder
	path      string
	maxSizeMB int
}

// NewAuditLogger creates parent directories (0o700) and opens the file in
// append mode (0o600). If maxSizeMB > 0 the file is rotated when it
// exceeds that size.
func NewAuditLogger(path string, maxSizeMB int) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create audit directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open audit file")
	}
	return &AuditLogger{
		f:         f,
		enc:       json.NewEncoder(f),
		path:      path,
		maxSizeMB: maxSizeMB,
	}, nil
}

// Record appends one entry for the batch. It is safe for concurrent use,
// and calling it on a nil logger is a no-op.
func (l *AuditLogger) Record(result *types.BatchResult) {
	if l == nil {
		return
	}

	entry := AuditEntry{
		Timestamp:   result.StartedAt.UTC(),
		BatchID:     result.BatchID,
		Connection:  result.Connection,
		Operator:    result.Operator,
		Outcome:     result.Outcome.String(),
		Statements:  len(result.Statements),
		FailedIndex: result.FailedIndex,
		Error:       result.Error,
		DurationMS:  result.Elapsed.Milliseconds(),
	}
	if result.FailureCode != types.Ok {
		entry.FailureCode = result.FailureCode.String()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.enc.Encode(entry)

	if l.maxSizeMB > 0 {
		l.rotateIfNeeded()
	}
}

// Close closes the underlying file. Calling Close on a nil logger is a
// no-op.
func (l *AuditLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

func (l *AuditLogger) rotateIfNeeded() {
	info, err := l.f.Stat()
	if err != nil {
		return
	}
	if info.Size() < int64(l.maxSizeMB)*1024*1024 {
		return
	}

	_ = l.f.Close()
	_ = os.Rename(l.path, l.path+".1")

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return
	}
	l.f = f
	l.enc = json.NewEncoder(f)
}
