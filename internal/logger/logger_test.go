// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestSetupWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	closer, err := Setup("debug", path)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer closer.Close()

	log.Info().Str("key", "value").Msg("hello from test")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log entry missing from file: %s", data)
	}
}

func TestSetupDisabled(t *testing.T) {
	closer, err := Setup("off", filepath.Join(t.TempDir(), "unused.log"))
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer closer.Close()

	// Must not panic with logging disabled.
	log.Error().Msg("dropped")
}

func TestSetupRejectsBadLevel(t *testing.T) {
	if _, err := Setup("shouty", filepath.Join(t.TempDir(), "app.log")); err == nil {
		t.Error("expected error for unknown level")
	}
}
