package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/ai-memory-search/internal/open"
)

func conversationCmd() *cobra.Command {
	var openEditor bool

	cmd := &cobra.Command{
		Use:   "conversation <conversation-id>",
		Short: "Locate the transcript file behind a conversation ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			path, err := a.engine.FullConversation(args[0])
			if err != nil {
				return err
			}
			if openEditor {
				return open.Transcript(path, 1)
			}
			fmt.Println(path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&openEditor, "open", false, "Open the transcript in $EDITOR")
	return cmd
}
