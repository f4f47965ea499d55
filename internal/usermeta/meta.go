package usermeta

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilMeta indicates a nil metadata entry was passed to the store.
	ErrNilMeta = errors.New("usermeta: metadata is required")
	// ErrInvalidRecordID indicates an empty record identifier.
	ErrInvalidRecordID = errors.New("usermeta: invalid record id")
	// ErrInvalidUsername indicates an empty username.
	ErrInvalidUsername = errors.New("usermeta: invalid username")
)

// Meta is a per-(user, record) annotation. It lives independently of the
// record it references: deleting the record leaves the annotation behind,
// and lookups are expected to drop dangling ids. A false favorite flag with
// an empty note is a valid entry, distinct from the entry being absent.
type Meta struct {
	recordID    string
	username    string
	IsFavorite  bool
	Note        string
	LastUpdated int64
}

// New validates the composite key parts and returns a Meta.
func New(recordID, username string, isFavorite bool, note string, lastUpdated int64) (*Meta, error) {
	trimmedRecord := strings.TrimSpace(recordID)
	if trimmedRecord == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidRecordID)
	}
	trimmedUser := strings.TrimSpace(username)
	if trimmedUser == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidUsername)
	}
	return &Meta{
		recordID:    trimmedRecord,
		username:    trimmedUser,
		IsFavorite:  isFavorite,
		Note:        note,
		LastUpdated: lastUpdated,
	}, nil
}

// RecordID returns the annotated record's identifier.
func (m *Meta) RecordID() string {
	return m.recordID
}

// Username returns the owning user.
func (m *Meta) Username() string {
	return m.username
}

// StorageKey returns the composite hash key, username + "#" + recordId.
func (m *Meta) StorageKey() string {
	return storageKey(m.username, m.recordID)
}

func storageKey(username, recordID string) string {
	return strings.TrimSpace(username) + "#" + strings.TrimSpace(recordID)
}
