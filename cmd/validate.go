package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sefaria-labs/explorer/internal/config"
	"github.com/sefaria-labs/explorer/internal/credential"
	"github.com/sefaria-labs/explorer/internal/log"
)

var validateCmd = &cobra.Command{
	Use:   "validate [key]",
	Short: "Validate an OpenRouter API key",
	Long: `Validate an OpenRouter API key with a minimal probe completion.

With an argument the given key is checked; without one the stored key is
checked. The key is never saved by this command.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelWarn
	if debugMode {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	var candidate string
	if len(args) == 1 {
		candidate = args[0]
	} else {
		store, err := credential.NewStore(cfg.CredentialFile, logger.With("component", "credential"))
		if err != nil {
			return fmt.Errorf("creating credential store: %w", err)
		}
		if err := store.Load(); err != nil {
			return fmt.Errorf("loading credential: %w", err)
		}
		key, ok := store.Get()
		if !ok {
			return fmt.Errorf("no stored API key; pass one as an argument or run the chat to set one")
		}
		candidate = key
	}

	validator, err := credential.NewValidator(credential.ValidatorConfig{
		BaseURL: cfg.OpenRouterBaseURL,
		Model:   cfg.ModelName,
		Timeout: cfg.ProbeTimeout(),
		Logger:  logger.With("component", "validator"),
	})
	if err != nil {
		return fmt.Errorf("creating validator: %w", err)
	}

	result := validator.Validate(context.Background(), candidate)
	fmt.Printf("Key:    %s\n", credential.Mask(candidate))
	fmt.Printf("Status: %s\n", result.Status)
	fmt.Printf("Detail: %s\n", result.Message())

	if !result.Valid() {
		os.Exit(1)
	}
	return nil
}
