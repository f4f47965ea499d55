package records

import (
	"sort"
	"strings"
)

// Store is the capability contract for record storage. A single hash-indexed
// implementation exists today; the interface is the extension point for an
// ordered or indexed backend later. Implementations provide no internal
// locking: callers serialize mutating access.
type Store interface {
	// Insert adds or overwrites the entry at record.ID(). Overwriting an
	// existing id is last-write-wins, not an error.
	Insert(record *Record) error
	// Update overwrites the entry only when the id is already present and
	// reports whether it was. Updating a missing id is not an error.
	Update(record *Record) (bool, error)
	// Delete removes the entry if present and reports whether it was.
	Delete(id string) bool
	// Get returns the stored record, or nil when absent.
	Get(id string) *Record
	// QueryByTimeRange returns records with FetchedAt in [start, end],
	// both ends inclusive, most recent first.
	QueryByTimeRange(start, end int64) []*Record
	// QueryByTitleContains returns records whose title contains the keyword,
	// case-insensitively. A blank keyword matches nothing.
	QueryByTitleContains(keyword string) []*Record
	Size() int
	IsEmpty() bool
	Clear()
	// GetAll returns a snapshot slice of the stored records.
	GetAll() []*Record
}

// HashStore is the map-backed Store implementation. Point operations are
// O(1) amortized; range and substring queries scan the whole table.
type HashStore struct {
	table map[string]*Record
}

// NewHashStore returns an empty HashStore.
func NewHashStore() *HashStore {
	return &HashStore{table: make(map[string]*Record)}
}

func (s *HashStore) Insert(record *Record) error {
	if record == nil {
		return ErrNilRecord
	}
	if record.ID() == "" {
		return ErrInvalidRecordID
	}
	s.table[record.ID()] = record
	return nil
}

func (s *HashStore) Update(record *Record) (bool, error) {
	if record == nil {
		return false, ErrNilRecord
	}
	if record.ID() == "" {
		return false, ErrInvalidRecordID
	}
	if _, ok := s.table[record.ID()]; !ok {
		return false, nil
	}
	s.table[record.ID()] = record
	return true, nil
}

func (s *HashStore) Delete(id string) bool {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return false
	}
	if _, ok := s.table[trimmed]; !ok {
		return false
	}
	delete(s.table, trimmed)
	return true
}

func (s *HashStore) Get(id string) *Record {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil
	}
	return s.table[trimmed]
}

func (s *HashStore) QueryByTimeRange(start, end int64) []*Record {
	results := make([]*Record, 0)
	for _, record := range s.table {
		if record.FetchedAt >= start && record.FetchedAt <= end {
			results = append(results, record)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].FetchedAt > results[j].FetchedAt
	})
	return results
}

func (s *HashStore) QueryByTitleContains(keyword string) []*Record {
	trimmed := strings.TrimSpace(keyword)
	if trimmed == "" {
		return []*Record{}
	}
	lowered := strings.ToLower(trimmed)
	results := make([]*Record, 0)
	for _, record := range s.table {
		if strings.Contains(strings.ToLower(record.Title), lowered) {
			results = append(results, record)
		}
	}
	return results
}

func (s *HashStore) Size() int {
	return len(s.table)
}

func (s *HashStore) IsEmpty() bool {
	return len(s.table) == 0
}

func (s *HashStore) Clear() {
	s.table = make(map[string]*Record)
}

func (s *HashStore) GetAll() []*Record {
	all := make([]*Record, 0, len(s.table))
	for _, record := range s.table {
		all = append(all, record)
	}
	return all
}
