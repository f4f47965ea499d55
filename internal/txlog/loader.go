package txlog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/archivelab/bookhaven/internal/records"
	"go.uber.org/zap"
)

// ErrBootstrapNotFound indicates the initial-data file does not exist.
var ErrBootstrapNotFound = errors.New("txlog: initial data file not found")

// LoaderConfig configures the bootstrap loader.
type LoaderConfig struct {
	Clock  func() time.Time
	Logger *zap.Logger
}

// Loader seeds a fresh store from a bootstrap file written in the log line
// format. It is deliberately narrower than replay: only INSERT lines apply,
// everything else is skipped without ceremony, because the loader seeds a
// store rather than reconstructing one.
type Loader struct {
	clock  func() time.Time
	logger *zap.Logger
}

// NewLoader constructs a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{clock: clock, logger: logger}
}

// Load reads the bootstrap file and inserts its INSERT lines into the
// store, returning how many records landed. Lines starting with '#' are
// comments. Malformed lines are logged and skipped; only a missing file
// fails the load.
func (l *Loader) Load(store records.Store, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrBootstrapNotFound, path)
		}
		return 0, fmt.Errorf("txlog: open initial data file: %w", err)
	}
	defer file.Close()

	loaded := 0
	lineNumber := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNumber++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}

		line, ok := parseLine(raw)
		if !ok {
			l.logger.Warn("invalid initial data line", zap.Int("line", lineNumber))
			continue
		}
		if line.Action != ActionInsert {
			continue
		}
		if line.ID == "" || line.Title == "" {
			l.logger.Warn("initial data INSERT missing id or title", zap.Int("line", lineNumber))
			continue
		}

		record, err := l.recordFromLine(line)
		if err != nil {
			l.logger.Warn("unusable initial data line",
				zap.Int("line", lineNumber), zap.Error(err))
			continue
		}
		if err := store.Insert(record); err != nil {
			l.logger.Warn("initial data insert rejected",
				zap.Int("line", lineNumber), zap.Error(err))
			continue
		}
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return loaded, fmt.Errorf("txlog: read initial data file: %w", err)
	}

	return loaded, nil
}

func (l *Loader) recordFromLine(line Line) (*records.Record, error) {
	author := ExtractPayloadField(line.Extra, "author")
	extraInfo := ExtractPayloadField(line.Extra, "extraInfo")
	url := ExtractPayloadField(line.Extra, "url")
	fetchedByUser := ExtractPayloadField(line.Extra, "fetchedByUser")
	if fetchedByUser == "" {
		fetchedByUser = replaySystemUser
	}

	fetchedAt := l.clock().UnixMilli()
	if raw := ExtractPayloadField(line.Extra, "fetchedAt"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			fetchedAt = parsed
		}
	}

	return records.NewRecord(line.ID, line.Title, author, extraInfo, url, fetchedAt, fetchedByUser)
}
