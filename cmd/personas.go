package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sefaria-labs/explorer/internal/persona"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the available chat personas",
	Run: func(cmd *cobra.Command, args []string) {
		for _, p := range persona.List() {
			marker := " "
			if p.Key == persona.DefaultKey {
				marker = "*"
			}
			fmt.Printf("%s %-12s %s\n    %s\n", marker, p.Key, p.Name, p.Description)
		}
		fmt.Println("\n* default persona")
	},
}

func init() {
	rootCmd.AddCommand(personasCmd)
}
