package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CatherineChiramel/Squirrel/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new Squirrel configuration file",
		Long: `Initialize creates a new .squirrel.yaml configuration file in the
current directory.

The generated file includes:
- Default settings for admission, politeness and recrawl policy
- Commented examples for every ledger backend
- Commented examples for the Kafka and Neo4j graph sinks

Examples:
  # Create .squirrel.yaml in current directory
  squirrel init

  # Create config file at a specific path
  squirrel init -o myconfig.yaml

  # Force overwrite existing file
  squirrel init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
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

	if force {
		if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove existing file: %w", err)
		}
	}

	if err := config.WriteDefault(outputPath); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			return fmt.Errorf("%w (use -f to overwrite)", err)
		}
		return err
	}

	fmt.Printf("Created configuration file: %s\n", outputPath)
	fmt.Println("\nEdit this file to configure settings such as:")
	fmt.Println("  - Ledger backend (memory, sqlite, redis, postgres)")
	fmt.Println("  - Recrawl policy and politeness limits")
	fmt.Println("  - Seed references and host deny-lists")

	return nil
}
