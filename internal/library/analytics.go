package library

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/archivelab/bookhaven/internal/auth"
	"github.com/archivelab/bookhaven/internal/txlog"
)

// QueryCount is one entry of the search-frequency ranking.
type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// TopSearchQueries ranks the most frequent search queries recorded in the
// log, online and offline combined, and returns at most limit entries.
// Ties break alphabetically so the ranking is stable across runs. Admin
// only.
func (s *Service) TopSearchQueries(actor auth.Session, limit int) ([]QueryCount, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: analytics are admin-only", ErrAccessDenied)
	}
	counts := map[string]int{}
	err := txlog.ScanFile(s.txlog.Path(), func(line txlog.Line) {
		if line.Action != txlog.ActionSearchOnline && line.Action != txlog.ActionSearchOffline {
			return
		}
		query := txlog.ExtractPayloadField(line.Extra, "query")
		if query == "" {
			return
		}
		counts[query]++
	})
	if err != nil {
		return nil, err
	}
	ranking := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		ranking = append(ranking, QueryCount{Query: query, Count: count})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Count != ranking[j].Count {
			return ranking[i].Count > ranking[j].Count
		}
		return ranking[i].Query < ranking[j].Query
	})
	if limit > 0 && len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking, nil
}

// RecordsPerDay buckets INSERT log lines by the UTC day they were
// committed, keyed YYYY-MM-DD. Lines with a garbage timestamp are skipped.
// Admin only.
func (s *Service) RecordsPerDay(actor auth.Session) (map[string]int, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: analytics are admin-only", ErrAccessDenied)
	}
	buckets := map[string]int{}
	err := txlog.ScanFile(s.txlog.Path(), func(line txlog.Line) {
		if line.Action != txlog.ActionInsert {
			return
		}
		millis, parseErr := strconv.ParseInt(line.Timestamp, 10, 64)
		if parseErr != nil {
			return
		}
		day := time.UnixMilli(millis).UTC().Format("2006-01-02")
		buckets[day]++
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

// ActiveUsers lists the distinct usernames that committed any log line in
// the last days days, excluding the guest and replay provenance names,
// sorted alphabetically. Admin only.
func (s *Service) ActiveUsers(actor auth.Session, days int) ([]string, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: analytics are admin-only", ErrAccessDenied)
	}
	cutoff := s.clock().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	seen := map[string]struct{}{}
	err := txlog.ScanFile(s.txlog.Path(), func(line txlog.Line) {
		if line.Username == "" || line.Username == "guest" || line.Username == "system" {
			return
		}
		millis, parseErr := strconv.ParseInt(line.Timestamp, 10, 64)
		if parseErr != nil || millis < cutoff {
			return
		}
		seen[line.Username] = struct{}{}
	})
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(seen))
	for username := range seen {
		users = append(users, username)
	}
	sort.Strings(users)
	return users, nil
}
