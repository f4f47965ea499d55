// Package library exposes the record catalog operations: storing and
// querying records, per-user favorites and notes, and the admin surface
// over the transaction log.
package library

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/archivelab/bookhaven/internal/auth"
	"github.com/archivelab/bookhaven/internal/records"
	"github.com/archivelab/bookhaven/internal/txlog"
	"github.com/archivelab/bookhaven/internal/usermeta"
)

var (
	ErrMissingStore = errors.New("library: record store is required")
	ErrMissingMeta  = errors.New("library: user metadata store is required")
	ErrMissingTxLog = errors.New("library: transaction log writer is required")
	// ErrAccessDenied is returned before any side effect when the acting
	// session lacks the role an operation demands.
	ErrAccessDenied   = errors.New("library: access denied")
	ErrRecordNotFound = errors.New("library: record not found")
)

// ServiceConfig carries the dependencies for NewService.
type ServiceConfig struct {
	Store  records.Store
	Meta   *usermeta.Store
	TxLog  *txlog.Writer
	Clock  func() time.Time
	Logger *zap.Logger
}

// Service coordinates record storage, user metadata and the transaction
// log. Mutations write storage first and append to the log second; a
// failed append is logged and swallowed, never rolled back, so the
// in-memory state can run ahead of the log until the next rebuild.
//
// The stores themselves are plain maps; the service is their single
// caller and serializes access with mu. Rebuild takes the write lock for
// its whole clear-and-replay pass, so replay never interleaves with an
// ordinary mutation.
type Service struct {
	mu     sync.RWMutex
	store  records.Store
	meta   *usermeta.Store
	txlog  *txlog.Writer
	clock  func() time.Time
	logger *zap.Logger
}

// NewService validates the configuration and returns a ready Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, ErrMissingStore
	}
	if cfg.Meta == nil {
		return nil, ErrMissingMeta
	}
	if cfg.TxLog == nil {
		return nil, ErrMissingTxLog
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  cfg.Store,
		meta:   cfg.Meta,
		txlog:  cfg.TxLog,
		clock:  clock,
		logger: logger,
	}, nil
}

// StoreRecords inserts or updates the given records on behalf of actor and
// appends one INSERT or MODIFY log line per record stored. A record the
// store rejects is skipped; the rest still go through. Returns how many
// records were stored.
func (s *Service) StoreRecords(actor auth.Session, batch []*records.Record) (int, error) {
	if !actor.CanStoreData() {
		return 0, fmt.Errorf("%w: guests cannot store records", ErrAccessDenied)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := 0
	for _, record := range batch {
		if record == nil {
			continue
		}
		existing := s.store.Get(record.ID())
		if existing != nil {
			if _, err := s.store.Update(record); err != nil {
				s.logger.Warn("record update rejected",
					zap.String("record_id", record.ID()),
					zap.Error(err))
				continue
			}
			stored++
			s.logAppend(s.txlog.LogModify(actor.Username, existing, record))
			continue
		}
		if err := s.store.Insert(record); err != nil {
			s.logger.Warn("record insert rejected",
				zap.String("record_id", record.ID()),
				zap.Error(err))
			continue
		}
		stored++
		s.logAppend(s.txlog.LogInsert(actor.Username, record))
	}
	return stored, nil
}

// DeleteRecord removes a record and appends a DELETE log line when it was
// present. Returns whether the record existed.
func (s *Service) DeleteRecord(actor auth.Session, id string) (bool, error) {
	if !actor.CanStoreData() {
		return false, fmt.Errorf("%w: guests cannot delete records", ErrAccessDenied)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.store.Get(id)
	if existing == nil {
		return false, nil
	}
	s.store.Delete(id)
	s.logAppend(s.txlog.LogDelete(actor.Username, id, existing.Title))
	return true, nil
}

// GetRecord returns the record with the given id, or nil when absent.
func (s *Service) GetRecord(id string) *records.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Get(id)
}

// AllRecords returns a snapshot of every stored record.
func (s *Service) AllRecords() []*records.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.GetAll()
}

// QueryByTimeRange logs the offline search and returns records fetched
// within [start, end], newest first.
func (s *Service) QueryByTimeRange(actor auth.Session, start, end int64) []*records.Record {
	query := fmt.Sprintf("from %d to %d", start, end)
	s.logAppend(s.txlog.LogSearchOffline(actor.Username, "TIME_RANGE", query))
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.QueryByTimeRange(start, end)
}

// QueryByTitle logs the offline search and returns records whose title
// contains keyword, case-insensitively.
func (s *Service) QueryByTitle(actor auth.Session, keyword string) []*records.Record {
	s.logAppend(s.txlog.LogSearchOffline(actor.Username, "TITLE", keyword))
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.QueryByTitleContains(keyword)
}

// ToggleFavorite flips the favorite flag for (actor, recordID), creating
// the metadata entry on first touch, and logs the transition it produced.
// Returns the new favorite state.
func (s *Service) ToggleFavorite(actor auth.Session, recordID string) (bool, error) {
	if !actor.CanStoreData() {
		return false, fmt.Errorf("%w: guests cannot manage favorites", ErrAccessDenied)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Get(recordID) == nil {
		return false, fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	current := s.meta.Get(actor.Username, recordID)
	favorite := true
	note := ""
	if current != nil {
		favorite = !current.IsFavorite
		note = current.Note
	}
	updated, err := usermeta.New(recordID, actor.Username, favorite, note, s.clock().UnixMilli())
	if err != nil {
		return false, err
	}
	if err := s.meta.Put(updated); err != nil {
		return false, err
	}
	if favorite {
		s.logAppend(s.txlog.LogFavoriteAdd(actor.Username, recordID))
	} else {
		s.logAppend(s.txlog.LogFavoriteRemove(actor.Username, recordID))
	}
	return favorite, nil
}

// UpdateNote sets the free-form note for (actor, recordID), creating the
// metadata entry when absent, and logs a NOTE_UPDATE line.
func (s *Service) UpdateNote(actor auth.Session, recordID, note string) error {
	if !actor.CanStoreData() {
		return fmt.Errorf("%w: guests cannot edit notes", ErrAccessDenied)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Get(recordID) == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, recordID)
	}
	favorite := s.meta.IsFavorite(actor.Username, recordID)
	updated, err := usermeta.New(recordID, actor.Username, favorite, note, s.clock().UnixMilli())
	if err != nil {
		return err
	}
	if err := s.meta.Put(updated); err != nil {
		return err
	}
	s.logAppend(s.txlog.LogNoteUpdate(actor.Username, recordID))
	return nil
}

// GetNote returns the note for (actor, recordID), empty when none exists.
func (s *Service) GetNote(actor auth.Session, recordID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.GetNote(actor.Username, recordID)
}

// Favorites joins the actor's favorite IDs against record storage. IDs
// whose record has since been deleted are dropped, not reported.
func (s *Service) Favorites(actor auth.Session) []*records.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.meta.GetFavorites(actor.Username)
	result := make([]*records.Record, 0, len(ids))
	for _, id := range ids {
		if record := s.store.Get(id); record != nil {
			result = append(result, record)
		}
	}
	return result
}

// UserMetadata returns every metadata entry belonging to the actor.
func (s *Service) UserMetadata(actor auth.Session) []*usermeta.Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.GetUserMetadata(actor.Username)
}

// logAppend reports a failed log append without undoing the mutation that
// preceded it. Storage state deliberately wins over log completeness.
func (s *Service) logAppend(err error) {
	if err != nil {
		s.logger.Warn("transaction log append failed", zap.Error(err))
	}
}
