package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-memory-search/internal/embedding"
)

func modeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode [local|cloud]",
		Short: "Show or switch the active embedding backend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if len(args) == 1 {
				target := embedding.Mode(args[0])
				if target != embedding.ModeLocal && target != embedding.ModeCloud {
					return fmt.Errorf("mode must be local or cloud, got %q", args[0])
				}
				if err := a.emb.Switch(target); err != nil {
					return err
				}
				fmt.Printf("switched to %s\n", target)
				fmt.Println("set prefer_local in ~/.config/aim/config.toml to make this permanent")
			}

			info := a.emb.Current()
			fmt.Printf("backend:    %s\n", info.Backend)
			fmt.Printf("model:      %s\n", info.Model)
			fmt.Printf("dimension:  %d\n", info.Dimension)
			fmt.Printf("credential: %v\n", info.HasCredential)
			fmt.Printf("writes to:  *_%s collections\n", info.WriteSuffix)
			return nil
		},
	}
}
