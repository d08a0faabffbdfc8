package cmd

import (
	"github.com/spf13/cobra"
)

// debugMode enables debug-level logging on stderr.
var debugMode bool

var rootCmd = &cobra.Command{
	Use:   "explorer",
	Short: "Sefaria Explorer - an AI guide through the Jewish library",
	Long: `Sefaria Explorer is a terminal chatbot for exploring Jewish texts.

It routes conversation through OpenRouter and answers questions by
retrieving sources from the Sefaria library: texts, search, links
between texts, topics and reference-name clarification.

Running explorer with no arguments starts an interactive chat session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand starts the chat loop.
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
}
