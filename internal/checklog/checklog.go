// Package checklog classifies the text of a single subtask log file
// into one Status. It is the log-parser collaborator consumed by the
// status aggregator; the aggregation rules live elsewhere.
package checklog

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/openmech/subfarm/pkg/core"
)

// maxLineBytes bounds scanner buffers; payload logs can carry very
// long matrix dumps on one line.
const maxLineBytes = 1024 * 1024

// Parser classifies a log file by scanning it for marker substrings.
// Matching is case-insensitive. The zero value is unusable; start from
// Default and override marker sets as needed.
type Parser struct {
	// CompleteMarkers mark a finished run.
	CompleteMarkers []string
	// ErrorMarkers mark a failed run and dominate everything else.
	ErrorMarkers []string
	// WarningMarkers downgrade a completed run from OK to WARNING.
	WarningMarkers []string
}

// Default returns a parser for the wrapper sentinel convention used by
// the dispatch engine, plus common hard-failure signatures scientific
// payloads leave behind when they die before the sentinel is written.
func Default() *Parser {
	return &Parser{
		CompleteMarkers: []string{
			"subfarm: task complete",
		},
		ErrorMarkers: []string{
			"subfarm: task failed",
			"traceback (most recent call last)",
			"segmentation fault",
			"error termination",
		},
		WarningMarkers: []string{
			"warning",
		},
	}
}

// Classify reads the log at path and returns exactly one Status:
// ERROR on any error marker, otherwise OK or WARNING once a complete
// marker is seen, otherwise RUNNING. A log observed mid-write at worst
// misclassifies transiently and self-corrects on the next poll.
func (p *Parser) Classify(path string) (core.Status, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	var complete, warned, failed bool

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.ToLower(scanner.Text())
		switch {
		case containsAny(line, p.ErrorMarkers):
			failed = true
		case containsAny(line, p.CompleteMarkers):
			complete = true
		case containsAny(line, p.WarningMarkers):
			warned = true
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read log %s: %w", path, err)
	}

	switch {
	case failed:
		return core.StatusError, nil
	case complete && warned:
		return core.StatusWarning, nil
	case complete:
		return core.StatusOK, nil
	default:
		return core.StatusRunning, nil
	}
}

func containsAny(line string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(line, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// Ensure Parser implements the classifier contract.
var _ core.LogClassifier = (*Parser)(nil)
