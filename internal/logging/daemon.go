package logging

import (
	"log/slog"
)

// SetupDaemonMode initializes logging for the watcher daemon process.
//
// The daemon is spawned detached; its stdout/stderr are not attached to a
// terminal, so all structured logs go to the rotating file only. It always
// runs at debug level so a status/reindex investigation after the fact has
// full diagnostics available.
func SetupDaemonMode() (func(), error) {
	cfg := Config{
		Level:         "debug",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)

	slog.Info("daemon logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}

// SetupDaemonModeWithLevel initializes daemon-safe logging with a specific level.
func SetupDaemonModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}
