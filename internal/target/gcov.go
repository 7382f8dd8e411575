package target

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"greyfuzz/internal/coverage"
)

// ParseGcov extracts covered locations from a gcov text report. Each line
// has the form "count:lineno:source". A count of "-" marks a line with no
// executable code, "#####" and "=====" mark executable lines that were not
// reached; everything else is covered. Line number 0 carries file headers
// and is skipped.
func ParseGcov(r io.Reader, unit string) (coverage.Snapshot, error) {
	snap := coverage.NewSnapshot()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 3)
		if len(parts) < 2 {
			continue
		}
		count := strings.TrimSpace(parts[0])
		lineNo, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || lineNo <= 0 {
			continue
		}
		if strings.HasPrefix(count, "-") ||
			strings.HasPrefix(count, "#") ||
			strings.HasPrefix(count, "=") {
			continue
		}
		snap.Add(coverage.Location{Unit: unit, Line: lineNo})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}
	return snap, nil
}
