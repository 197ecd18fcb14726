package logger

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs one HTTP attempt at debug level
func LogRequest(log Logger, method, url string, statusCode int, duration time.Duration) {
	log.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	})
}

// LogPageProgress logs the outcome of one merged page. When the expected
// record count is known the completion percentage is included.
func LogPageProgress(log Logger, page, received, added, total int, expected *int) {
	fields := map[string]interface{}{
		"page":     page,
		"received": received,
		"added":    added,
		"total":    total,
	}
	if expected != nil && *expected > 0 {
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(total)/float64(*expected)*100)
	}
	log.InfoWithFields("Page merged", fields)
}

// LogJobStart logs when a job starts
func LogJobStart(log Logger, job string, fields map[string]interface{}) {
	l := log.WithField("job", job)
	if len(fields) > 0 {
		l = l.WithFields(fields)
	}
	l.Info("Job started")
}

// LogJobStop logs when a job finishes, successfully or not
func LogJobStop(log Logger, job string, elapsed time.Duration, err error) {
	l := log.WithFields(map[string]interface{}{
		"job":     job,
		"elapsed": elapsed.Round(time.Millisecond).String(),
	})
	if err != nil {
		l.WithError(err).Error("Job failed")
		return
	}
	l.Info("Job finished")
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return FromZerolog(zerolog.Nop())
}
