package txlog

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/archivelab/bookhaven/internal/records"
	"go.uber.org/zap"
)

var (
	// ErrMissingLogPath indicates the writer was built without a file path.
	ErrMissingLogPath = errors.New("txlog: log file path is required")
)

// WriterConfig configures the transaction log writer.
type WriterConfig struct {
	Path   string
	Clock  func() time.Time
	Logger *zap.Logger
}

// Writer appends transaction lines to the log file. A single mutex guards
// every append, so lines from concurrent callers never interleave mid-line
// and file order is a valid linearization of call order.
//
// An append failure is reported to the caller but the in-memory mutation
// that produced it is never rolled back upstream; the store can drift ahead
// of the log. That weak-durability tradeoff is part of this contract.
type Writer struct {
	path   string
	mu     sync.Mutex
	clock  func() time.Time
	logger *zap.Logger
}

// NewWriter constructs a Writer and makes sure the log file exists.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Path == "" {
		return nil, ErrMissingLogPath
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	writer := &Writer{path: cfg.Path, clock: clock, logger: logger}

	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		file, createErr := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY, 0o644)
		if createErr != nil {
			logger.Warn("could not create transaction log file",
				zap.String("path", cfg.Path), zap.Error(createErr))
		} else {
			file.Close()
		}
	}

	return writer, nil
}

// Path returns the log file location.
func (w *Writer) Path() string {
	return w.path
}

// LogInsert records a committed insert with the full record payload.
func (w *Writer) LogInsert(username string, record *records.Record) error {
	if username == "" || record == nil {
		return nil
	}
	extra := encodePayload(
		payloadField{key: "author", value: record.Author},
		payloadField{key: "extraInfo", value: record.ExtraInfo},
		payloadField{key: "url", value: record.SourceURL},
		payloadField{key: "fetchedAt", value: strconv.FormatInt(record.FetchedAt, 10), numeric: true},
		payloadField{key: "fetchedByUser", value: record.FetchedByUser},
	)
	return w.append(username, ActionInsert, record.ID(), record.Title, extra)
}

// LogModify records a title/author change. The payload carries only the
// changed title and author, not the full prior record; see Rebuilder for
// the replay consequence.
func (w *Writer) LogModify(username string, oldRecord, newRecord *records.Record) error {
	if username == "" || oldRecord == nil || newRecord == nil {
		return nil
	}
	extra := encodePayload(
		payloadField{key: "oldTitle", value: oldRecord.Title},
		payloadField{key: "newTitle", value: newRecord.Title},
		payloadField{key: "oldAuthor", value: oldRecord.Author},
		payloadField{key: "newAuthor", value: newRecord.Author},
	)
	return w.append(username, ActionModify, newRecord.ID(), newRecord.Title, extra)
}

// LogDelete records a committed delete. The title of the removed record is
// kept for the audit trail when available.
func (w *Writer) LogDelete(username, id, title string) error {
	if username == "" || id == "" {
		return nil
	}
	return w.append(username, ActionDelete, id, title, "{}")
}

// LogSearchOnline records an online search. Audit-only.
func (w *Writer) LogSearchOnline(username, query string) error {
	if username == "" {
		return nil
	}
	extra := encodePayload(payloadField{key: "query", value: query})
	return w.append(username, ActionSearchOnline, "", "", extra)
}

// LogSearchOffline records an offline query. queryType is TIME_RANGE or
// TITLE. Audit-only.
func (w *Writer) LogSearchOffline(username, queryType, query string) error {
	if username == "" {
		return nil
	}
	extra := encodePayload(
		payloadField{key: "queryType", value: queryType},
		payloadField{key: "query", value: query},
	)
	return w.append(username, ActionSearchOffline, "", "", extra)
}

// LogFavoriteAdd records a favorite flag being set. Audit-only.
func (w *Writer) LogFavoriteAdd(username, recordID string) error {
	if username == "" || recordID == "" {
		return nil
	}
	extra := encodePayload(payloadField{key: "recordId", value: recordID})
	return w.append(username, ActionFavoriteAdd, recordID, "", extra)
}

// LogFavoriteRemove records a favorite flag being cleared. Audit-only.
func (w *Writer) LogFavoriteRemove(username, recordID string) error {
	if username == "" || recordID == "" {
		return nil
	}
	extra := encodePayload(payloadField{key: "recordId", value: recordID})
	return w.append(username, ActionFavoriteRemove, recordID, "", extra)
}

// LogNoteUpdate records a note edit. Audit-only.
func (w *Writer) LogNoteUpdate(username, recordID string) error {
	if username == "" || recordID == "" {
		return nil
	}
	extra := encodePayload(payloadField{key: "recordId", value: recordID})
	return w.append(username, ActionNoteUpdate, recordID, "", extra)
}

func (w *Writer) append(username string, action Action, id, title, extra string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	line := formatLine(w.clock().UnixMilli(), username, action, id, title, extra)

	file, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("txlog: open log for append: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("txlog: append log line: %w", err)
	}
	return nil
}
