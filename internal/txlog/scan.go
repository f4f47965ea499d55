package txlog

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ScanFile reads the log at path and invokes fn for every well-formed
// six-field line, in file order. Malformed lines are silently skipped; a
// missing file is treated as an empty log. Read-side consumers (analytics)
// use this without touching replay.
func ScanFile(path string, fn func(line Line)) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("txlog: open log for scan: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		if line, ok := parseLine(raw); ok {
			fn(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("txlog: read log during scan: %w", err)
	}
	return nil
}
