package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/protobase/protobase/pkg/atom"
	perrors "github.com/protobase/protobase/pkg/errors"
)

func newGetCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Print the JSON document currently bound to name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			space, err := openSpace(dir)
			if err != nil {
				return err
			}
			defer space.Close()

			id, ok, err := space.GetDatabase(name)
			if err != nil {
				return err
			}
			if !ok {
				return perrors.Newf("no value bound to %q", name)
			}

			a, ok := space.GetAtom(id)
			if !ok {
				return &perrors.CorruptAtom{Reason: "root atom missing from cache"}
			}
			value, err := atom.DecodeValue(a)
			if err != nil {
				return err
			}
			doc, err := atom.ValueToJSON(value)
			if err != nil {
				return err
			}
			fmt.Println(doc)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "protobase-data", "database directory")
	return cmd
}
