package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/ai-memory-search/internal/memsearch"
)

var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	styleMeta  = lipgloss.NewStyle().Faint(true)
	styleScore = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleNote  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

func searchCmd() *cobra.Command {
	var limit int
	var minScore float64
	var proj, decay, format string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Semantic search across imported conversations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			opts := memsearch.Options{
				Limit:    limit,
				MinScore: &minScore,
				Project:  proj,
				Hybrid:   true,
			}
			switch decay {
			case "on":
				opts.UseDecay = boolFlag(true)
			case "off":
				opts.UseDecay = boolFlag(false)
			case "", "default":
			default:
				return fmt.Errorf("--decay must be on, off, or default")
			}

			out, err := a.engine.Search(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			// Styled output on a terminal, structured format for pipes.
			if format == "" && term.IsTerminal(int(os.Stdout.Fd())) {
				renderTerminal(out)
				return nil
			}
			text, err := memsearch.Format(out, args[0], format)
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "Max results")
	cmd.Flags().Float64Var(&minScore, "min-score", 0.3, "Minimum final score to keep")
	cmd.Flags().StringVar(&proj, "project", "", "Restrict to one project path (default: all)")
	cmd.Flags().StringVar(&decay, "decay", "default", "Time decay: on, off, or default (follow config)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: markdown, xml, or tsv")
	return cmd
}

func renderTerminal(out *memsearch.Outcome) {
	if len(out.Results) == 0 {
		fmt.Fprintln(os.Stderr, "No results found.")
	}
	now := time.Now().UTC()
	for i, r := range out.Results {
		label := r.ConversationID
		if r.IsReflection {
			label = "reflection"
		}
		fmt.Printf("%d. %s %s %s\n",
			i+1,
			styleTitle.Render(label),
			styleScore.Render(fmt.Sprintf("%.3f", r.Score)),
			styleMeta.Render(fmt.Sprintf("%s · %s", r.ProjectName, memsearch.FormatRelative(r.Timestamp, now))),
		)
		if p := memsearch.Preview(r.Text, 160); p != "" {
			fmt.Printf("   %s\n", p)
		}
	}
	if out.Note != "" {
		fmt.Println(styleNote.Render("note: " + out.Note))
	}
}

func boolFlag(b bool) *bool { return &b }
