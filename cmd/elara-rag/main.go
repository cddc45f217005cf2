// Package main is the entry point for the elara-rag CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code. Any error
// that escapes a command is printed to stdout as {"error": "..."}.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	root := rootCmd(c)
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "elara-rag: %v\n", err)
		_ = writeJSON(stdout, map[string]string{"error": err.Error()})
		return 1
	}
	return 0
}

func rootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "elara-rag",
		Short:         "Context assembly and knowledge retrieval for conversational agents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "",
		"Path to configuration file (default <storage_root>/elara-rag.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		searchCmd(c),
		recentTurnsCmd(c),
		listItemsCmd(c),
		countCmd(c),
		deleteItemsCmd(c),
		deleteSourceCmd(c),
		clearCollectionCmd(c),
		saveTurnCmd(c),
		ingestCmd(c),
		serveCmd(c),
		mcpCmd(c),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "elara-rag %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// writeJSON writes v as a single JSON document followed by a newline.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
