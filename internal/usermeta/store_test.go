package usermeta

import (
	"errors"
	"testing"
)

func mustMeta(t *testing.T, recordID, username string, favorite bool, note string) *Meta {
	t.Helper()
	meta, err := New(recordID, username, favorite, note, 1000)
	if err != nil {
		t.Fatalf("failed to build metadata: %v", err)
	}
	return meta
}

func TestPutThenGetByCompositeKey(t *testing.T) {
	store := NewStore()
	if err := store.Put(mustMeta(t, "B1", "bob", true, "great read")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	meta := store.Get("bob", "B1")
	if meta == nil {
		t.Fatalf("expected metadata for bob#B1")
	}
	if !meta.IsFavorite || meta.Note != "great read" {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if store.Get("alice", "B1") != nil {
		t.Fatalf("metadata must be scoped per user")
	}
	if store.Get("bob", "B2") != nil {
		t.Fatalf("metadata must be scoped per record")
	}
}

func TestPutUpsertsExistingEntry(t *testing.T) {
	store := NewStore()
	if err := store.Put(mustMeta(t, "B1", "bob", false, "first")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Put(mustMeta(t, "B1", "bob", true, "second")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if store.Size() != 1 {
		t.Fatalf("expected single entry after upsert, got %d", store.Size())
	}
	if got := store.Get("bob", "B1").Note; got != "second" {
		t.Fatalf("expected upserted note, got %q", got)
	}
}

func TestPutRejectsNil(t *testing.T) {
	store := NewStore()
	if err := store.Put(nil); !errors.Is(err, ErrNilMeta) {
		t.Fatalf("expected ErrNilMeta, got %v", err)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := NewStore()
	if store.Remove("bob", "B1") {
		t.Fatalf("removing a missing entry must report false")
	}
	if err := store.Put(mustMeta(t, "B1", "bob", true, "")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if !store.Remove("bob", "B1") {
		t.Fatalf("expected removal of present entry to report true")
	}
	if store.Remove("bob", "B1") {
		t.Fatalf("expected repeat removal to report false")
	}
}

func TestGetFavoritesFiltersFlagAndUser(t *testing.T) {
	store := NewStore()
	entries := []*Meta{
		mustMeta(t, "B1", "bob", true, ""),
		mustMeta(t, "B2", "bob", false, "noted but not loved"),
		mustMeta(t, "B3", "bob", true, ""),
		mustMeta(t, "B1", "alice", true, ""),
	}
	for _, meta := range entries {
		if err := store.Put(meta); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	favorites := store.GetFavorites("bob")
	if len(favorites) != 2 {
		t.Fatalf("expected 2 favorites for bob, got %d", len(favorites))
	}
	for _, id := range favorites {
		if id != "B1" && id != "B3" {
			t.Fatalf("unexpected favorite id %q", id)
		}
	}

	all := store.GetUserMetadata("bob")
	if len(all) != 3 {
		t.Fatalf("expected 3 metadata rows for bob, got %d", len(all))
	}
}

func TestFalseFlagWithEmptyNoteIsDistinctFromAbsent(t *testing.T) {
	store := NewStore()
	if err := store.Put(mustMeta(t, "B1", "bob", false, "")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if store.Get("bob", "B1") == nil {
		t.Fatalf("uninteresting entry must still be present")
	}
	if store.IsFavorite("bob", "B1") {
		t.Fatalf("present entry with false flag is not a favorite")
	}
	if len(store.GetFavorites("bob")) != 0 {
		t.Fatalf("false flag must not appear in favorites")
	}
}

func TestClearWipesEverything(t *testing.T) {
	store := NewStore()
	if err := store.Put(mustMeta(t, "B1", "bob", true, "x")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.Put(mustMeta(t, "B2", "alice", true, "y")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	store.Clear()
	if store.Size() != 0 {
		t.Fatalf("expected empty store after clear, got %d", store.Size())
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New("", "bob", false, "", 0); !errors.Is(err, ErrInvalidRecordID) {
		t.Fatalf("expected ErrInvalidRecordID, got %v", err)
	}
	if _, err := New("B1", "  ", false, "", 0); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
	meta, err := New(" B1 ", " bob ", false, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.StorageKey() != "bob#B1" {
		t.Fatalf("expected trimmed composite key, got %q", meta.StorageKey())
	}
}
