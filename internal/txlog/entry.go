// Package txlog implements the append-only transaction log: the line codec,
// the locked writer, the replay engine that reconstructs record storage from
// the log, and the bootstrap loader.
//
// Each committed action becomes one immutable line:
//
//	TIMESTAMP | USERNAME | ACTION | ID | TITLE | EXTRA_JSON
//
// Lines are appended in commit order and never rewritten; replaying them
// from the top is the sole recovery path for record storage.
package txlog

import (
	"fmt"
	"strings"
)

// Action is the fixed enumeration of loggable events. Only Insert, Modify
// and Delete mutate record storage on replay; the rest are audit-only.
type Action string

const (
	ActionInsert         Action = "INSERT"
	ActionModify         Action = "MODIFY"
	ActionDelete         Action = "DELETE"
	ActionSearchOnline   Action = "SEARCH_ONLINE"
	ActionSearchOffline  Action = "SEARCH_OFFLINE"
	ActionFavoriteAdd    Action = "FAVORITE_ADD"
	ActionFavoriteRemove Action = "FAVORITE_REMOVE"
	ActionNoteUpdate     Action = "NOTE_UPDATE"
)

// Mutating reports whether replaying the action changes record storage.
func (a Action) Mutating() bool {
	return a == ActionInsert || a == ActionModify || a == ActionDelete
}

const lineFieldCount = 6

// Line is one parsed log line. Timestamp stays a string here: consumers that
// need the number parse it themselves and skip lines where it is garbage.
type Line struct {
	Timestamp string
	Username  string
	Action    Action
	ID        string
	Title     string
	Extra     string
}

// formatLine renders the canonical six-field line. The pipe delimiter is not
// escaped; the producer substitutes "_" for literal pipes in the title.
func formatLine(timestamp int64, username string, action Action, id, title, extra string) string {
	safeTitle := strings.ReplaceAll(title, "|", "_")
	return fmt.Sprintf("%d | %s | %s | %s | %s | %s", timestamp, username, action, id, safeTitle, extra)
}

// parseLine splits a raw line into its six fields, trimming each. It reports
// false for any other field count, including pipes leaking in from payloads.
func parseLine(raw string) (Line, bool) {
	parts := strings.Split(raw, "|")
	if len(parts) != lineFieldCount {
		return Line{}, false
	}
	return Line{
		Timestamp: strings.TrimSpace(parts[0]),
		Username:  strings.TrimSpace(parts[1]),
		Action:    Action(strings.TrimSpace(parts[2])),
		ID:        strings.TrimSpace(parts[3]),
		Title:     strings.TrimSpace(parts[4]),
		Extra:     strings.TrimSpace(parts[5]),
	}, true
}
