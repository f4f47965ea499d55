package usermeta

import "strings"

// Store holds user annotations in a hash table keyed by username#recordId.
// Entries are never persisted: a storage rebuild wipes them wholesale, which
// is a documented data-loss boundary, not corruption. The store provides no
// internal locking; its single caller serializes mutation.
type Store struct {
	table map[string]*Meta
}

// NewStore returns an empty metadata store.
func NewStore() *Store {
	return &Store{table: make(map[string]*Meta)}
}

// Put upserts an entry under its composite key.
func (s *Store) Put(meta *Meta) error {
	if meta == nil {
		return ErrNilMeta
	}
	s.table[meta.StorageKey()] = meta
	return nil
}

// Get returns the entry for (username, recordID), or nil when absent.
func (s *Store) Get(username, recordID string) *Meta {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(recordID) == "" {
		return nil
	}
	return s.table[storageKey(username, recordID)]
}

// Remove deletes the entry if present and reports whether it was.
func (s *Store) Remove(username, recordID string) bool {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(recordID) == "" {
		return false
	}
	key := storageKey(username, recordID)
	if _, ok := s.table[key]; !ok {
		return false
	}
	delete(s.table, key)
	return true
}

// GetFavorites returns the record ids the user has flagged as favorite.
// Callers join the ids against the record store and drop the ones whose
// record no longer exists.
func (s *Store) GetFavorites(username string) []string {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return []string{}
	}
	prefix := trimmed + "#"
	favorites := make([]string, 0)
	for key, meta := range s.table {
		if strings.HasPrefix(key, prefix) && meta.IsFavorite {
			favorites = append(favorites, meta.RecordID())
		}
	}
	return favorites
}

// GetUserMetadata returns every annotation owned by the user, favorite or not.
func (s *Store) GetUserMetadata(username string) []*Meta {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return []*Meta{}
	}
	prefix := trimmed + "#"
	result := make([]*Meta, 0)
	for key, meta := range s.table {
		if strings.HasPrefix(key, prefix) {
			result = append(result, meta)
		}
	}
	return result
}

// IsFavorite reports whether the user has flagged the record.
func (s *Store) IsFavorite(username, recordID string) bool {
	meta := s.Get(username, recordID)
	return meta != nil && meta.IsFavorite
}

// GetNote returns the user's note for the record, or "" when absent.
func (s *Store) GetNote(username, recordID string) string {
	meta := s.Get(username, recordID)
	if meta == nil {
		return ""
	}
	return meta.Note
}

// Clear wipes every entry. Only the rebuild workflow calls this; the loss is
// deliberate because annotations are not represented in the transaction log.
func (s *Store) Clear() {
	s.table = make(map[string]*Meta)
}

// Size returns the number of entries.
func (s *Store) Size() int {
	return len(s.table)
}
