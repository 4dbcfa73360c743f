package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "aim",
		Short:   "AI Memory Search - semantic search over Claude Code conversation history",
		Version: version,
	}

	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(quickCmd())
	rootCmd.AddCommand(fileCmd())
	rootCmd.AddCommand(conceptCmd())
	rootCmd.AddCommand(recentCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(whenCmd())
	rootCmd.AddCommand(moreCmd())
	rootCmd.AddCommand(reflectCmd())
	rootCmd.AddCommand(modeCmd())
	rootCmd.AddCommand(conversationCmd())
	rootCmd.AddCommand(doctorCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
