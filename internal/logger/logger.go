// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger configures the global diagnostic log.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup initializes the global zerolog logger. Output goes to a file,
// never to the terminal: stderr belongs to the full-screen UI. With an
// empty path or level "off", logging is disabled entirely.
//
// The returned closer flushes and closes the log file; call it on
// shutdown. It is never nil.
func Setup(level, path string) (io.Closer, error) {
	if path == "" || level == "off" {
		zerolog.SetGlobalLevel(zerolog.Disabled)
		log.Logger = zerolog.Nop()
		return io.NopCloser(nil), nil
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	zerolog.SetGlobalLevel(parsed)
	log.Logger = zerolog.New(file).With().Timestamp().Logger()
	return file, nil
}
