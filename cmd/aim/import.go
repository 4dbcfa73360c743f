package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-memory-search/internal/importer"
	"github.com/Zuo-Peng/ai-memory-search/internal/state"
)

func importCmd() *cobra.Command {
	var watch, force bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import Claude Code transcripts into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			st := state.NewStore(a.cfg.StateDir, "batch")
			im := importer.New(a.cfg, st, a.client, a.emb, a.cat)
			im.Force = force

			fmt.Fprintf(os.Stderr, "Importing from %s...\n", a.cfg.TranscriptRoot)
			stats, err := im.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Done. %s\n", stats)

			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			w := importer.NewWatcher(im, a.cfg.TranscriptRoot)
			return w.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and import transcripts as they change")
	cmd.Flags().BoolVar(&force, "force", false, "Re-import files already recorded in the state ledger")
	return cmd
}
