// chatterm - a terminal chat client for OpenAI chat models.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/jeranaias/chatterm/internal/completion"
	"github.com/jeranaias/chatterm/internal/config"
	"github.com/jeranaias/chatterm/internal/logger"
	"github.com/jeranaias/chatterm/internal/openai"
	"github.com/jeranaias/chatterm/internal/storage"
	"github.com/jeranaias/chatterm/internal/store"
	"github.com/jeranaias/chatterm/internal/tokens"
	"github.com/jeranaias/chatterm/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for messages sent from non-UI goroutines.
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

// sendToProgram delivers a message to the running program, dropping it
// when the UI has not started yet or already exited.
func sendToProgram(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// =============================================================================
// RUNTIME SETTINGS
// =============================================================================

// settings holds the live configuration, shared between the UI, the
// completion session, and the config file watcher.
type settings struct {
	mu   sync.RWMutex
	cfg  config.Config
	path string
}

func (s *settings) ModelID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Chat.Model
}

// SetModel persists a model change made from the UI.
func (s *settings) SetModel(id string) error {
	s.mu.Lock()
	s.cfg.Chat.Model = id
	cfg := s.cfg
	path := s.path
	s.mu.Unlock()
	return cfg.Save(path)
}

// apply replaces the configuration after a file reload.
func (s *settings) apply(cfg config.Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// =============================================================================
// API KEY SOURCE
// =============================================================================

// liveKey is an openai.KeySource that can be updated from the /key
// command without restarting.
type liveKey struct {
	mu  sync.RWMutex
	key string
}

func (k *liveKey) APIKey() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.key
}

func (k *liveKey) set(key string) {
	k.mu.Lock()
	k.key = key
	k.mu.Unlock()
}

// =============================================================================
// NOTIFIER
// =============================================================================

// teaNotifier forwards session notifications to the UI as notices.
type teaNotifier struct{}

func (teaNotifier) Notify(message string) {
	sendToProgram(chat.NoticeMsg{Text: message})
}

// =============================================================================
// MAIN
// =============================================================================

func main() {
	var (
		configPath  = flag.String("config", "", "path to the config file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("chatterm %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if configPath == "" {
		var err error
		configPath, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCloser, err := logger.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	log.Info().Str("version", Version).Msg("Starting chatterm")

	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}

	// ==========================================================================
	// STORAGE
	// ==========================================================================

	backend, err := storage.Open(filepath.Join(dataDir, "chats"), storage.Backend(cfg.Storage.Backend))
	if err != nil {
		return err
	}
	defer backend.Close()

	chats, err := backend.LoadChats()
	if err != nil {
		return err
	}
	st := store.New(backend, cfg.Chat.Preamble, chats)

	// ==========================================================================
	// API KEY
	// ==========================================================================

	keyring, err := storage.NewKeyring(dataDir)
	if err != nil {
		return err
	}

	apiKey, err := keyring.LoadAPIKey()
	if errors.Is(err, storage.ErrNoAPIKey) {
		apiKey, err = promptAPIKey()
		if err != nil {
			return err
		}
		if apiKey != "" {
			if err := keyring.StoreAPIKey(apiKey); err != nil {
				return err
			}
		}
	} else if err != nil {
		return err
	}
	keys := &liveKey{key: apiKey}

	// ==========================================================================
	// COMPLETION PIPELINE
	// ==========================================================================

	client := openai.NewClient(keys)
	if cfg.API.BaseURL != "" {
		client.SetBaseURL(cfg.API.BaseURL)
	}

	sets := &settings{cfg: cfg, path: configPath}
	session := completion.New(st, client, tokens.NewCounter(), teaNotifier{},
		sets.ModelID,
		func() { sendToProgram(chat.StoreUpdatedMsg{}) },
	)

	// ==========================================================================
	// UI
	// ==========================================================================

	ui := chat.New(chat.Options{
		Store:    st,
		Session:  session,
		ModelID:  sets.ModelID,
		SetModel: sets.SetModel,
		StoreKey: func(key string) error {
			if err := keyring.StoreAPIKey(key); err != nil {
				return err
			}
			keys.set(key)
			return nil
		},
		ExportDir: filepath.Join(dataDir, "exports"),
	})

	p := tea.NewProgram(ui, tea.WithAltScreen())
	programMu.Lock()
	programRef = p
	programMu.Unlock()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		err := config.Watch(watchCtx, configPath, func(cfg config.Config) {
			sets.apply(cfg)
			sendToProgram(chat.ConfigChangedMsg{Config: cfg})
		})
		if err != nil {
			log.Warn().Err(err).Msg("Config watcher stopped")
		}
	}()

	_, err = p.Run()

	programMu.Lock()
	programRef = nil
	programMu.Unlock()

	session.Abort()
	session.Wait()
	return err
}

// promptAPIKey asks for the API key on first run. A non-interactive
// stdin skips the prompt; the key can be set later with /key.
func promptAPIKey() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Print("OpenAI API key (leave empty to configure later): ")
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
