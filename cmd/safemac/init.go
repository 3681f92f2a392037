package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/safemac-dev/safemac/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/safemac.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new safemac configuration file",
		Long: `Initialize creates a new .safemac configuration file in the current directory.

The generated file includes:
- The default scan paths, threshold and attribute backend
- Commented protection rules (lock and exclude directories)
- Commented detection rules and how to add your own patterns

Examples:
  # Create .safemac in current directory
  safemac init

  # Create config file at a specific path
  safemac init -o /etc/safemac.yaml

  # Force overwrite existing file
  safemac init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	// Check if file already exists
	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	// Read template from embedded filesystem
	content, err := configTemplate.ReadFile("templates/safemac.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	// Create parent directories if needed
	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write configuration file
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to adjust:")
	fmt.Fprintln(out, "  - The directories searched for sites")
	fmt.Fprintln(out, "  - Which directories are locked and which stay writable")
	fmt.Fprintln(out, "  - Additional script patterns to look for")

	return nil
}
