// Package logging builds the structured loggers used across wiretap.
//
// It wraps log/slog so every component logs the same way. Recorder-internal
// failures (a file that will not decode, a snapshot that cannot be written,
// an operation dropped because the queue is full) are reported here and
// nowhere else: they never reach the HTTP call being recorded.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//	logger.Warn("persist failed", "path", path, "error", err)
//
// Components accept a *slog.Logger in their options. When none is given they
// use Nop, which discards everything.
package logging
