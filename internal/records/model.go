package records

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilRecord indicates a nil record was passed to a store operation.
	ErrNilRecord = errors.New("records: record is required")
	// ErrInvalidRecordID indicates an empty or blank record identifier.
	ErrInvalidRecordID = errors.New("records: invalid record id")
	// ErrInvalidProvenance indicates the fetched-by username is missing.
	ErrInvalidProvenance = errors.New("records: fetched-by user is required")
)

// Record is a single item scraped from a source site. The ID is immutable
// after construction; every other field may be rewritten in place.
type Record struct {
	id            string
	Title         string
	Author        string
	ExtraInfo     string
	SourceURL     string
	FetchedAt     int64
	FetchedByUser string
}

// NewRecord validates required fields and returns a Record. Author, extra
// info and source URL may be empty; FetchedAt is milliseconds since epoch.
func NewRecord(id, title, author, extraInfo, sourceURL string, fetchedAt int64, fetchedByUser string) (*Record, error) {
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidRecordID)
	}
	if fetchedByUser == "" {
		return nil, ErrInvalidProvenance
	}
	return &Record{
		id:            trimmedID,
		Title:         title,
		Author:        author,
		ExtraInfo:     extraInfo,
		SourceURL:     sourceURL,
		FetchedAt:     fetchedAt,
		FetchedByUser: fetchedByUser,
	}, nil
}

// ID returns the immutable record identifier.
func (r *Record) ID() string {
	return r.id
}

// Equal reports identity equality: two records are the same record iff
// their identifiers match, regardless of field values.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.id == other.id
}

// Copy returns a detached record with the same field values.
func (r *Record) Copy() *Record {
	if r == nil {
		return nil
	}
	duplicate := *r
	return &duplicate
}

func (r *Record) String() string {
	return fmt.Sprintf("Record{id=%q, title=%q, author=%q, fetchedAt=%d, fetchedBy=%q}",
		r.id, r.Title, r.Author, r.FetchedAt, r.FetchedByUser)
}
