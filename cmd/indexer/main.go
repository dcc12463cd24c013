// Command indexer runs the chain indexer: the Extractor Runtimes that
// stream from substreams into the Versioned Store, and the Query Surface
// that serves it back over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envPath string

func main() {
	root := &cobra.Command{Use: "indexer"}
	root.PersistentFlags().StringVar(&envPath, "env", "", "path to a .env file (optional)")

	root.AddCommand(runCmd())
	root.AddCommand(ensureChainsCmd())
	root.AddCommand(revertCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
