package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckpointCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Force every buffered frame durable and reclaim unreachable atoms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			space, err := openSpace(dir)
			if err != nil {
				return err
			}
			defer space.Close()

			freed, err := space.Checkpoint()
			if err != nil {
				return err
			}
			fmt.Printf("checkpoint complete, reclaimed %d atoms\n", freed)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "protobase-data", "database directory")
	return cmd
}
