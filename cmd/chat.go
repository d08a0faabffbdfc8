package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sefaria-labs/explorer/internal/config"
	"github.com/sefaria-labs/explorer/internal/credential"
	"github.com/sefaria-labs/explorer/internal/engine"
	"github.com/sefaria-labs/explorer/internal/log"
	"github.com/sefaria-labs/explorer/internal/openrouter"
	"github.com/sefaria-labs/explorer/internal/persona"
	"github.com/sefaria-labs/explorer/internal/sefaria"
	"github.com/sefaria-labs/explorer/internal/session"
	"github.com/sefaria-labs/explorer/internal/ui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// app bundles the wired components of one chat process.
type app struct {
	cfg     *config.Config
	store   *credential.Store
	engine  *engine.Engine
	console *ui.Console
	logger  log.Logger
}

// newApp loads configuration and wires every component of the chat
// pipeline: credential store, validator, tool registry, retrieval adapter,
// completion client and the orchestration engine.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelWarn
	if debugMode {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	store, err := credential.NewStore(cfg.CredentialFile, logger.With("component", "credential"))
	if err != nil {
		return nil, fmt.Errorf("creating credential store: %w", err)
	}
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("loading credential: %w", err)
	}

	validator, err := credential.NewValidator(credential.ValidatorConfig{
		BaseURL: cfg.OpenRouterBaseURL,
		Model:   cfg.ModelName,
		Timeout: cfg.ProbeTimeout(),
		Logger:  logger.With("component", "validator"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating validator: %w", err)
	}

	registry, err := sefaria.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("building tool registry: %w", err)
	}

	adapter, err := sefaria.NewAdapter(sefaria.AdapterConfig{
		Registry: registry,
		BaseURL:  cfg.SefariaBaseURL,
		Timeout:  cfg.ToolTimeout(),
		Logger:   logger.With("component", "sefaria"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating retrieval adapter: %w", err)
	}

	client, err := openrouter.New(openrouter.Config{
		BaseURL: cfg.OpenRouterBaseURL,
		Model:   cfg.ModelName,
		Timeout: cfg.RequestTimeout(),
		Creds:   store,
		Logger:  logger.With("component", "openrouter"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating completion client: %w", err)
	}

	eng, err := engine.New(engine.Config{
		Backend:    client,
		Dispatcher: adapter,
		Catalog:    registry,
		Validator:  validator,
		Store:      store,
		Logger:     logger.With("component", "engine"),
		MaxTokens:  cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	return &app{
		cfg:     cfg,
		store:   store,
		engine:  eng,
		console: ui.NewConsole(os.Stdout, logger.With("component", "ui")),
		logger:  logger,
	}, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp()
	if err != nil {
		return err
	}

	_, hasKey := a.store.Get()
	sess := session.New(session.Config{
		HasCredential: hasKey,
		MaxHistory:    a.cfg.MaxHistoryMessages,
		Logger:        a.logger.With("component", "session"),
	})

	if hasKey {
		a.console.Say(ui.PersonaMenu(persona.List()))
	} else {
		a.console.Say(ui.SetupMessage("No OpenRouter API key was found."))
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		a.console.Prompt("\nYou: ")

		if !scanner.Scan() {
			// EOF (Ctrl+D)
			fmt.Println("\nGoodbye!")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if done := a.handleLocalCommand(input); done {
			break
		}
		if isLocalCommand(input) {
			continue
		}

		a.step(ctx, sess, input)
	}
	return scanner.Err()
}

// step routes one line of input through the session state machine and
// presents the result.
func (a *app) step(ctx context.Context, sess *session.Session, input string) {
	// Persona selection happens in the UI layer; everything else,
	// including credential commands and bare key pastes, goes through the
	// engine.
	if sess.State() == session.StateAwaitingPersona && !strings.HasPrefix(input, "/") &&
		!strings.HasPrefix(input, credential.Prefix) {
		p, err := a.engine.SelectPersona(sess, strings.ToLower(input))
		if err != nil {
			a.console.Sayf("Could not select persona: %v", err)
			return
		}
		a.console.Say(ui.PersonaWelcome(p))
		return
	}

	before := sess.State()
	reply, err := a.engine.HandleInput(ctx, sess, input)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNeedsCredential):
			a.console.Say(ui.SetupMessage("An OpenRouter API key is required before chatting."))
		case errors.Is(err, session.ErrNoPersona):
			a.console.Say(ui.PersonaMenu(persona.List()))
		default:
			a.logger.Error("turn failed", "session_id", sess.ID(), "error", err)
			a.console.Sayf("Something went wrong: %v", err)
		}
		return
	}

	a.console.Say(reply)

	// A credential accepted during setup moves the session to persona
	// selection; surface the menu right away.
	if before == session.StateNeedsCredential && sess.State() == session.StateAwaitingPersona {
		a.console.Say(ui.PersonaMenu(persona.List()))
	}
}

// handleLocalCommand processes client-side commands. It returns true when
// the loop should exit.
func (a *app) handleLocalCommand(input string) bool {
	switch input {
	case "/exit", "/quit":
		fmt.Println("Goodbye!")
		return true
	case "/help":
		a.console.Say(helpText())
	case "/settings":
		key, ok := a.store.Get()
		if !ok {
			a.console.Say(ui.SetupMessage("No OpenRouter API key was found."))
			break
		}
		a.console.Say(ui.SettingsMessage(key))
	case "/personas":
		a.console.Say(ui.PersonaMenu(persona.List()))
	}
	return false
}

// isLocalCommand reports whether the input was consumed by
// handleLocalCommand rather than the engine. The credential command is
// deliberately excluded; it belongs to the engine.
func isLocalCommand(input string) bool {
	switch input {
	case "/exit", "/quit", "/help", "/settings", "/personas":
		return true
	}
	return false
}

func helpText() string {
	return `## Commands

- ` + "`/setkey sk-or-...`" + ` — validate and save a new OpenRouter API key
- ` + "`/settings`" + ` — show the current (masked) API key
- ` + "`/personas`" + ` — list the available personas
- ` + "`/help`" + ` — show this help
- ` + "`/exit`" + ` — leave the chat

Anything else is sent to the assistant.`
}
