package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPutCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "put <name> <json>",
		Short: "Bind name to a JSON document as the root object's new value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, jsonDoc := args[0], args[1]

			space, err := openSpace(dir)
			if err != nil {
				return err
			}
			defer space.Close()

			a, err := encodeJSONAtom(jsonDoc)
			if err != nil {
				return err
			}

			tx := space.NewTransaction()
			defer tx.Release()
			tx.PutAtom(a)
			tx.SetRootObject(name, a.ID)
			if err := tx.Commit(); err != nil {
				return err
			}

			fmt.Printf("put %s -> %s\n", name, a.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "protobase-data", "database directory")
	return cmd
}
