package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zombar/communityanalyzer/pkg/logging"
)

type rootOptions struct {
	verbose bool
	indent  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "communityctl",
		Short: "Offline community behavioral analysis",
		Long: `communityctl runs the community analysis engine against local files.

It builds subreddit profiles from an exported post dump, validates
drafts against forbidden patterns, and prints the pattern taxonomy.
Nothing is persisted; use the server for stored campaigns.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging on stderr")
	root.PersistentFlags().BoolVar(&opts.indent, "indent", true, "Indent JSON output")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newValidateCmd(opts),
		newTaxonomyCmd(opts),
	)
	return root
}

// logger writes to stderr so stdout stays valid JSON
func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	return logging.New(cmd.ErrOrStderr(), level)
}

func (o *rootOptions) writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if o.indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// readInput reads a file, or stdin when path is "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
