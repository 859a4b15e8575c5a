package ticket

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
)

const (
	dirPerms  = 0o750
	filePerms = 0o600
)

// readCounter reads the counter file: a single plain-text integer that is
// the lower bound for the next allocated number. A missing or garbled file
// falls back to the project's start number; the on-disk scan compensates
// for any desync.
func readCounter(path string, startNumber int) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return startNumber
	}

	value, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
	if parseErr != nil || value < startNumber {
		return startNumber
	}

	return value
}

// writeCounter persists the counter atomically.
func writeCounter(path string, value int) error {
	writeErr := atomic.WriteFile(path, strings.NewReader(strconv.Itoa(value)+"\n"))
	if writeErr != nil {
		return fmt.Errorf("writing counter file: %w", writeErr)
	}

	return nil
}
