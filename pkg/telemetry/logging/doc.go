// Package logging provides structured logging on top of log/slog.
//
// # Overview
//
//   - JSON, text and console output formats
//   - Configurable levels (debug, info, warn, error)
//   - Context-aware logging: request ID, limiter name and client address
//     stored in a context.Context are added to every record
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    return err
//	}
//	logger.SetDefault()
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "decision", "allowed", true)
//
// Rate limiter decisions are logged at debug level; enable "debug" to see a
// line per admission or denial.
package logging
