package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const logFilePrefix = "sldlx_"

// LogFilePath returns the daily log file for t inside dir.
func LogFilePath(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s%s.log", logFilePrefix, t.Format("2006-01-02")))
}

// NewFileLogger opens (or appends to) today's log file in dir and prunes log files older than retentionDays.
//
// The returned close function must be called once logging is finished.
func NewFileLogger(dir string, retentionDays int) (*log.Logger, func() error, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(LogFilePath(dir, time.Now()), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := log.NewWithOptions(f, log.Options{ReportTimestamp: true, Level: log.DebugLevel})

	if retentionDays > 0 {
		removed, err := PruneLogs(dir, time.Now().AddDate(0, 0, -retentionDays))
		if err != nil {
			logger.Warn("failed to prune old logs", "error", err)
		} else if removed > 0 {
			logger.Debug("pruned old logs", "count", removed)
		}
	}

	return logger, f.Close, nil
}

// PruneLogs deletes log files in dir last written before cutoff. Files that can't be removed are skipped.
func PruneLogs(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}

		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}
