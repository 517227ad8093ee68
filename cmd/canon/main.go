package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "canon",
	Short: "Concept normalization over a Memgraph knowledge graph",
	Long: `canon finds duplicate concepts and missing relationships in a concept
catalog with an LLM, validates every proposal, and writes the result back to
the graph directly or through a review.

Examples:
  canon run                          # normalize the graph catalog and apply
  canon run --mode review            # stop at a review instead of applying
  canon run --catalog concepts.json  # read concepts from a file
  canon review show <id>             # list review items
  canon review decide <id> --all approved
  canon review apply <id>
  canon serve                        # HTTP API with progress streams`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or config/config.toml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reviewCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
