package library

import (
	"bufio"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/archivelab/bookhaven/internal/auth"
	"github.com/archivelab/bookhaven/internal/txlog"
)

// StorageStats is the admin snapshot of storage and log sizes.
type StorageStats struct {
	Records         int    `json:"records"`
	MetadataEntries int    `json:"metadataEntries"`
	LogLines        int    `json:"logLines"`
	LogPath         string `json:"logPath"`
}

// ReadTransactionLog returns every raw line of the transaction log in file
// order. Admin only.
func (s *Service) ReadTransactionLog(actor auth.Session) ([]string, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: transaction log is admin-only", ErrAccessDenied)
	}
	file, err := os.Open(s.txlog.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", txlog.ErrLogNotFound, s.txlog.Path())
		}
		return nil, fmt.Errorf("library: read transaction log: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("library: read transaction log: %w", err)
	}
	return lines, nil
}

// Rebuild wipes user metadata and replays the transaction log into record
// storage. Metadata is not logged, so it cannot be reconstructed; wiping it
// keeps the two stores consistent with each other. Admin only.
func (s *Service) Rebuild(actor auth.Session) (txlog.RebuildResult, error) {
	if !actor.IsAdmin() {
		return txlog.RebuildResult{}, fmt.Errorf("%w: rebuild is admin-only", ErrAccessDenied)
	}
	// Check the log exists before wiping anything; a missing log must not
	// cost the caller their metadata.
	if _, err := os.Stat(s.txlog.Path()); err != nil {
		if os.IsNotExist(err) {
			return txlog.RebuildResult{}, fmt.Errorf("%w: %s", txlog.ErrLogNotFound, s.txlog.Path())
		}
		return txlog.RebuildResult{}, fmt.Errorf("library: rebuild: %w", err)
	}
	rebuilder, err := txlog.NewRebuilder(txlog.RebuilderConfig{
		Path:   s.txlog.Path(),
		Clock:  s.clock,
		Logger: s.logger,
	})
	if err != nil {
		return txlog.RebuildResult{}, err
	}

	// Hold the write lock across the whole clear-and-replay pass so no
	// ordinary mutation can land between the wipe and the replay.
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta.Clear()
	result, err := rebuilder.Rebuild(s.store)
	if err != nil {
		return result, err
	}
	s.logger.Info("storage rebuilt from transaction log",
		zap.Int("inserts", result.Inserts),
		zap.Int("modifies", result.Modifies),
		zap.Int("deletes", result.Deletes),
		zap.Int("errors", result.Errors),
		zap.Int("total_lines", result.TotalLines))
	return result, nil
}

// StorageStats reports store, metadata and log sizes. Admin only.
func (s *Service) StorageStats(actor auth.Session) (StorageStats, error) {
	if !actor.IsAdmin() {
		return StorageStats{}, fmt.Errorf("%w: stats are admin-only", ErrAccessDenied)
	}
	s.mu.RLock()
	stats := StorageStats{
		Records:         s.store.Size(),
		MetadataEntries: s.meta.Size(),
		LogPath:         s.txlog.Path(),
	}
	s.mu.RUnlock()
	file, err := os.Open(s.txlog.Path())
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			stats.LogLines++
		}
	}
	return stats, nil
}
