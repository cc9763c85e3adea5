// Command protobasectl is a thin quickstart wrapper around a standalone
// file-backed ObjectSpace: open a database directory, put/get a document
// under a root name, scan the bound names, or force a checkpoint. It is
// deliberately minimal — a convenience front door, not a feature surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	plog "github.com/protobase/protobase/pkg/log"
)

func main() {
	root := &cobra.Command{
		Use:   "protobasectl",
		Short: "Quickstart CLI for a standalone ProtoBase object space",
	}

	var jsonLogs bool
	root.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit structured JSON logs instead of console output")
	cobra.OnInitialize(func() {
		if jsonLogs {
			plog.Init(plog.Config{JSONOutput: true})
		}
	})

	root.AddCommand(newPutCmd(), newGetCmd(), newScanCmd(), newCheckpointCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
