package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List every root name currently bound in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			space, err := openSpace(dir)
			if err != nil {
				return err
			}
			defer space.Close()

			names, err := space.ListDatabases()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "protobase-data", "database directory")
	return cmd
}
