package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mailgroom/mailgroom/internal/config"
	"github.com/mailgroom/mailgroom/internal/session"
)

// loadConfig resolves and validates the configuration file, honoring
// the --config flag.
func loadConfig() (*config.Config, error) {
	path, err := config.FindConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// setupLogger builds the process logger. --verbose forces debug,
// --trace forces wire-level logging.
func setupLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	level := cfg.LogLevel
	if flagTrace {
		level = "trace"
	} else if flagVerbose {
		level = "debug"
	}
	return config.SetupLogger(level, cfg.LogFile)
}

// connect dials the configured IMAP server and wraps the session with
// retry and dry-run handling.
func connect(cfg *config.Config, logger *slog.Logger, dryRun bool) (*session.Resilient, func(), error) {
	sess := session.New(session.Config{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: cfg.IMAP.Username,
		Password: cfg.IMAP.Password,
		TLS:      !cfg.IMAP.Insecure,
		Timeout:  30 * time.Second,
		Trace:    flagTrace,
	}, logger)
	if err := sess.Connect(); err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.IMAP.Host, err)
	}
	cleanup := func() {
		if err := sess.Logout(); err != nil {
			logger.Debug("logout failed", "error", err)
		}
	}

	policy := session.RetryPolicy{
		Retries: cfg.Organize.Retries,
		Backoff: time.Duration(cfg.Organize.BackoffSeconds * float64(time.Second)),
	}
	return session.NewResilient(sess, policy, dryRun, logger), cleanup, nil
}
