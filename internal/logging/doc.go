// Package logging provides structured logging for capctl.
//
// This package wraps Go's log/slog to provide JSON-formatted logs. Every
// controller component takes a *Logger and derives a child logger carrying
// its own context, so a single log file can be filtered per device, work
// mode or component after the fact.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logs", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	dev := logger.WithDevice("demo-logic").WithComponent("rate")
//	dev.Warn("samplerate list unavailable", "error", err)
//
// # Rotation
//
// [NewRotatingLogger] writes through a [RotatingWriter] backed by an
// afero.Fs. When the file would grow past MaxSizeMB it is renamed to
// capctl.log.1 and older backups are shifted up to MaxBackups.
//
// # Testing
//
// Use [NopLogger] where log output is irrelevant, or pass an
// afero.NewMemMapFs() to [NewRotatingLogger] and read the file back.
package logging
