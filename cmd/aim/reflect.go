package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func reflectCmd() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "reflect <content>",
		Short: "Store a personal insight for later retrieval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			id, err := a.engine.StoreReflection(cmd.Context(), args[0], tags)
			if err != nil {
				return err
			}
			fmt.Printf("stored reflection %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag for the reflection (repeatable)")
	return cmd
}
