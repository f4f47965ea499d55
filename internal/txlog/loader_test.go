package txlog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/archivelab/bookhaven/internal/records"
)

func writeBootstrapFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "initial_data.txt")
	content := ""
	for _, line := range lines {
		content += line + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write bootstrap fixture: %v", err)
	}
	return path
}

func TestLoadMissingFileFails(t *testing.T) {
	loader := NewLoader(LoaderConfig{Clock: fixedClock(9000)})
	store := records.NewHashStore()
	_, err := loader.Load(store, filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, ErrBootstrapNotFound) {
		t.Fatalf("expected ErrBootstrapNotFound, got %v", err)
	}
}

func TestLoadAppliesOnlyInsertLines(t *testing.T) {
	path := writeBootstrapFile(t,
		`# seed data`,
		`1000|seed|INSERT|B1|Dune|{"author":"Herbert","fetchedAt":1000,"fetchedByUser":"seed"}`,
		`1100|seed|DELETE|B1|Dune|{}`,
		`1200|seed|MODIFY|B1|Dune II|{"newTitle":"Dune II"}`,
		`1300|seed|SEARCH_ONLINE|||{"query":"dune"}`,
		`1400|seed|INSERT|B2|Hyperion|{"author":"Simmons","fetchedAt":1400,"fetchedByUser":"seed"}`,
	)
	loader := NewLoader(LoaderConfig{Clock: fixedClock(9000)})
	store := records.NewHashStore()

	loaded, err := loader.Load(store, path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded != 2 {
		t.Fatalf("expected 2 loaded records, got %d", loaded)
	}
	// DELETE and MODIFY are not replayed by the loader: it seeds a store,
	// it does not reconstruct one.
	if store.Get("B1") == nil || store.Get("B2") == nil {
		t.Fatalf("expected both INSERT records present")
	}
	if got := store.Get("B1").Title; got != "Dune" {
		t.Fatalf("MODIFY must not apply during load, got title %q", got)
	}
}

func TestLoadSkipsMalformedLinesAndContinues(t *testing.T) {
	path := writeBootstrapFile(t,
		`garbage with | too | few fields`,
		`1000|seed|INSERT|B1|Dune|{"fetchedByUser":"seed","fetchedAt":1000}`,
		`1100|seed|INSERT||Untitled|{}`,
		`1200|seed|INSERT|B2||{}`,
		`1300|seed|INSERT|B3|Solaris|{"fetchedByUser":"seed","fetchedAt":1300}`,
	)
	loader := NewLoader(LoaderConfig{Clock: fixedClock(9000)})
	store := records.NewHashStore()

	loaded, err := loader.Load(store, path)
	if err != nil {
		t.Fatalf("load must continue past bad lines: %v", err)
	}
	if loaded != 2 {
		t.Fatalf("expected 2 loaded records, got %d", loaded)
	}
	if store.Get("B1") == nil || store.Get("B3") == nil {
		t.Fatalf("expected valid records to load")
	}
}

func TestLoadDefaultsMissingFields(t *testing.T) {
	path := writeBootstrapFile(t,
		`1000|seed|INSERT|B1|Dune|{}`,
	)
	loader := NewLoader(LoaderConfig{Clock: fixedClock(9000)})
	store := records.NewHashStore()

	if _, err := loader.Load(store, path); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	record := store.Get("B1")
	if record == nil {
		t.Fatalf("expected record B1")
	}
	if record.FetchedByUser != "system" {
		t.Fatalf("expected system provenance default, got %q", record.FetchedByUser)
	}
	if record.FetchedAt != 9000 {
		t.Fatalf("expected current-time fallback 9000, got %d", record.FetchedAt)
	}
	if record.Author != "" || record.SourceURL != "" {
		t.Fatalf("expected empty defaults, got %v", record)
	}
}
