package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for safemac.
// Without a subcommand it starts the interactive menu.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "safemac",
		Short: "Hardening and malware check tool for MacCMS sites",
		Long: `safemac protects MacCMS installations against file-tampering malware.

It finds MacCMS sites under the usual web roots, makes their core files
immutable while keeping cache and upload directories writable, and checks
them for known compromise signatures: planted backdoor files, a hijacked
addons configuration and injected JavaScript.

Run without a subcommand to use the interactive menu.
Locking and unlocking require root.`,
		Version:       getVersion(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runMenuCmd,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .safemac in current or home directory)")
	cmd.PersistentFlags().StringP("site-list", "s", "",
		"Site list file (default: $XDG_DATA_HOME/safemac/site.txt)")
	cmd.PersistentFlags().String("data-dir", "",
		"Directory holding the site list, hit logs and history database")
	cmd.PersistentFlags().String("log-dir", "",
		"Root directory of the per-run hit logs")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().Bool("log-json", false, "Write diagnostic logs to stderr as JSON")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewLockCmd())
	cmd.AddCommand(NewUnlockCmd())
	cmd.AddCommand(NewHistoryCmd())
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
