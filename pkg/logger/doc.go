// Package logger provides the structured logging interface used across the
// harvester.
//
// It wraps zerolog with:
//   - leveled logging (Debug, Info, Warn, Error, Fatal)
//   - immutable field scoping via WithField, WithFields and WithError
//   - colored console output on stderr, optionally teed as JSON to a file
//   - a global logger for code that is not handed one explicitly
//   - NewNopLogger and NewTestLogger for tests
//
// Basic usage:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithFields(map[string]interface{}{
//	    "job":    "users",
//	    "run_id": runID,
//	})
//	log.Info("Job started")
//
// The helpers LogPageProgress, LogRequest, LogJobStart and LogJobStop keep
// field names consistent between components.
package logger
