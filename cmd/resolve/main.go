package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var jsonOutput bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Run the data resolution pipeline over a document of entities and relationships",
		Long: `resolve runs entity resolution, relationship resolution, and connection
discovery over a single JSON document of extracted entities and relationships,
and prints the resolution result.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "emit machine-readable JSON instead of a human summary")

	rootCmd.AddCommand(newRunCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	return encodeJSON(os.Stdout, v)
}
