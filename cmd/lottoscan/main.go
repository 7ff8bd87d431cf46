// Package main is the entry point of lottoscan, the resumable scanner that
// ranks lottery integral systems against the draw archive.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lottoscan",
		Short: "Scan and rank lottery integral systems",
		Long: `lottoscan enumerates every k-number subset of the configured numbers,
scores each one as an integral system against the draw archive and keeps
the best ones. Progress is checkpointed so runs can be stopped, resumed and
shared between machines.`,
		SilenceUsage: true,
	}

	root.AddCommand(newAnalyzeCmd(), newShowCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
