// Package main provides the entry point for the wikimirror CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for wikimirror.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wikimirror",
		Short: "Mirror an authenticated wiki into a local Markdown corpus",
		Long: `Wikimirror mirrors an authenticated Confluence-style wiki into a local
Markdown corpus. It logs in with form credentials or a session cookie,
walks the page tree from a start page, converts every page to Markdown,
and extracts text from attachments alongside each page.

Credentials come from flags, the .wikimirror config file, or the
WIKIMIRROR_PASSWORD environment variable.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewMirrorCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
