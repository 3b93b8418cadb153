// Package logger provides the structured logging interface used across the
// downloader.
//
// It wraps zerolog with a small Logger interface so components can be handed
// a logger at construction time and tests can substitute a TestLogger:
//
//	log, err := logger.New(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	log.WithField("url", ref.URL).Info("Downloading")
//
// Console output is human readable on stderr. When a log file is configured
// every line is additionally written to it as JSON.
package logger
