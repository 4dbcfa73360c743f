package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-memory-search/internal/transcript"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: transcripts, vector store, embeddings, catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			fmt.Println("=== Transcripts ===")
			checkDir("Root", a.cfg.TranscriptRoot)
			files, err := transcript.Scan(a.cfg.TranscriptRoot)
			if err != nil {
				fmt.Printf("  scan error: %v\n", err)
			} else {
				fmt.Printf("  JSONL files: %d\n", len(files))
			}

			fmt.Println("\n=== Vector store ===")
			fmt.Printf("  URL: %s\n", a.cfg.QdrantURL)
			collections, err := a.client.ListCollections(ctx)
			if err != nil {
				fmt.Printf("  Status: UNREACHABLE (%v)\n", err)
			} else {
				conv, refl := 0, 0
				for _, name := range collections {
					switch {
					case strings.HasPrefix(name, "conv_"):
						conv++
					case strings.HasPrefix(name, "reflections_"):
						refl++
					}
				}
				fmt.Printf("  Status: OK (%d conversation collections, %d reflection collections)\n", conv, refl)
			}

			fmt.Println("\n=== Embeddings ===")
			info := a.emb.Current()
			fmt.Printf("  Backend: %s (%s, %d dims)\n", info.Backend, info.Model, info.Dimension)
			if _, err := a.emb.EmbedOne(ctx, "ping"); err != nil {
				fmt.Printf("  Status: FAILED (%v)\n", err)
			} else {
				// fallback may have switched the backend during the probe
				info = a.emb.Current()
				fmt.Printf("  Status: OK (active: %s)\n", info.Backend)
			}

			fmt.Println("\n=== Catalog ===")
			fmt.Printf("  Path: %s\n", a.cfg.CatalogPath)
			if a.cat == nil {
				fmt.Println("  Status: UNAVAILABLE")
				return nil
			}
			n, err := a.cat.Count()
			if err != nil {
				fmt.Printf("  Status: ERROR (%v)\n", err)
				return nil
			}
			fmt.Printf("  Conversations: %d\n", n)
			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}
