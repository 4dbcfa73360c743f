package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-memory-search/internal/memsearch"
)

func quickCmd() *cobra.Command {
	var proj string

	cmd := &cobra.Command{
		Use:   "quick <query>",
		Short: "Fast yes/no check: hit count and the top match only",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			count, top, err := a.engine.QuickCheck(cmd.Context(), args[0], proj)
			if err != nil {
				return err
			}
			if count == 0 {
				fmt.Println("hits: 0")
				return nil
			}
			fmt.Printf("hits: %d\n", count)
			fmt.Printf("top: %s (%.3f) %s\n", top.ConversationID, top.Score,
				memsearch.Preview(top.Text, 120))
			return nil
		},
	}
	cmd.Flags().StringVar(&proj, "project", "", "Restrict to one project path")
	return cmd
}

func fileCmd() *cobra.Command {
	var limit int
	var proj string

	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Find conversations that analyzed or edited a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.engine.SearchByFile(cmd.Context(), args[0], limit, proj)
			if err != nil {
				return err
			}
			text, err := memsearch.Format(out, args[0], memsearch.FormatMarkdown)
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Max results")
	cmd.Flags().StringVar(&proj, "project", "", "Restrict to one project path")
	return cmd
}

func conceptCmd() *cobra.Command {
	var limit int
	var proj string
	var includeFiles bool

	cmd := &cobra.Command{
		Use:   "concept <concept>",
		Short: "Find conversations tagged with a concept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.engine.SearchByConcept(cmd.Context(), args[0], limit, includeFiles, proj)
			if err != nil {
				return err
			}
			text, err := memsearch.Format(out, args[0], memsearch.FormatMarkdown)
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Max results")
	cmd.Flags().StringVar(&proj, "project", "", "Restrict to one project path")
	cmd.Flags().BoolVar(&includeFiles, "files", false, "Include file context in results")
	return cmd
}

func moreCmd() *cobra.Command {
	var offset, limit int
	var proj string

	cmd := &cobra.Command{
		Use:   "more <query>",
		Short: "Fetch the next page of an earlier search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.engine.GetMore(cmd.Context(), args[0], offset, limit, proj)
			if err != nil {
				return err
			}
			text, err := memsearch.Format(out, args[0], memsearch.FormatMarkdown)
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 5, "Results to skip")
	cmd.Flags().IntVar(&limit, "limit", 5, "Max results")
	cmd.Flags().StringVar(&proj, "project", "", "Restrict to one project path")
	return cmd
}

func recencyWindow(expr string) memsearch.TimeRange {
	return memsearch.ParseTimeRange(expr, time.Now())
}
