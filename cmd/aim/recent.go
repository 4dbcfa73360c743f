package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-memory-search/internal/memsearch"
)

func recentCmd() *cobra.Command {
	var limit int
	var groupBy, proj string

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show recent work grouped by conversation, session, or day",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			groups, err := a.engine.RecentWork(cmd.Context(), limit, groupBy, proj)
			if err != nil {
				return err
			}
			printGroups(groups)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Max groups")
	cmd.Flags().StringVar(&groupBy, "group-by", "conversation", "Grouping: conversation, session, or day")
	cmd.Flags().StringVar(&proj, "project", "", "Restrict to one project path")
	return cmd
}

func timelineCmd() *cobra.Command {
	var rangeExpr, granularity, proj string

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Bucket activity over a time range",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			groups, err := a.engine.Timeline(cmd.Context(), recencyWindow(rangeExpr), granularity, proj)
			if err != nil {
				return err
			}
			printGroups(groups)
			return nil
		},
	}
	cmd.Flags().StringVar(&rangeExpr, "range", "last week", "Time range (e.g. \"yesterday\", \"past 3 days\")")
	cmd.Flags().StringVar(&granularity, "granularity", "day", "Bucket size: hour, day, week, or month")
	cmd.Flags().StringVar(&proj, "project", "", "Restrict to one project path")
	return cmd
}

func whenCmd() *cobra.Command {
	var rangeExpr, proj string
	var limit int

	cmd := &cobra.Command{
		Use:   "when <query>",
		Short: "Semantic search constrained to a time range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			out, err := a.engine.SearchByRecency(cmd.Context(), args[0], recencyWindow(rangeExpr), limit, proj)
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
	cmd.Flags().StringVar(&rangeExpr, "range", "past 7 days", "Time range expression")
	cmd.Flags().IntVar(&limit, "limit", 5, "Max results")
	cmd.Flags().StringVar(&proj, "project", "", "Restrict to one project path")
	return cmd
}

func printGroups(groups []memsearch.WorkGroup) {
	now := time.Now().UTC()
	for _, g := range groups {
		fmt.Printf("%s  (%d points, %s)\n", g.Key, g.Count, memsearch.FormatRelative(g.End, now))
		if len(g.Concepts) > 0 {
			fmt.Printf("  concepts: %s\n", strings.Join(g.Concepts, ", "))
		}
		if len(g.Files) > 0 {
			files := g.Files
			if len(files) > 5 {
				files = files[:5]
			}
			fmt.Printf("  files: %s\n", strings.Join(files, ", "))
		}
	}
	if len(groups) == 0 {
		fmt.Println("No activity found.")
	}
}
