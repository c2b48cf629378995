package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/config"
)

// NewConfigInitCmd creates the config init command for initializing
// configuration. When run inside a project (without --global), it creates a
// project-local .specforge/ directory with config.yaml and a .gitignore.
// Otherwise it creates the global config file.
func NewConfigInitCmd() *cobra.Command {
	var (
		force  bool
		global bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

When run inside a project, creates project-local configuration at
$PROJECT/.specforge/config.yaml with a .gitignore so generated output stays
untracked. Use --global to force global configuration initialization even
inside a project.`,
		Example: `  # Create project-local configuration (inside a project)
  specforge config init

  # Create global configuration
  specforge config init --global

  # Create configuration, overwriting existing
  specforge config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectFlag, _ := cmd.Flags().GetString("project-dir")
			startDir, err := os.Getwd()
			if err != nil {
				startDir = "."
			}
			projectDir := config.ResolveProjectDir(cmd.Context(), projectFlag, startDir)

			if projectDir != "" && !global {
				return initProjectConfig(cmd, projectDir, force)
			}

			return initGlobalConfig(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&global, "global", false, "force global configuration init even inside a project")

	return cmd
}

// initProjectConfig creates project-local config at projectDir/config.yaml
// with a .gitignore.
func initProjectConfig(cmd *cobra.Command, projectDir string, force bool) error {
	configPath := filepath.Join(projectDir, "config.yaml")

	if !force {
		_, err := os.Stat(configPath)
		if err == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access config path %s: %w", configPath, err)
		}
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	// Never overwrites an existing .gitignore.
	created, err := config.EnsureGitignore(projectDir)
	if err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	cmd.Printf("Configuration initialized at %s\n", configPath)
	if created {
		cmd.Printf("Created .gitignore to keep generated output untracked\n")
	}

	return nil
}

// initGlobalConfig creates the global config file.
func initGlobalConfig(cmd *cobra.Command, force bool) error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	if !force {
		_, statErr := os.Stat(configPath)
		if statErr == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		}
		if !os.IsNotExist(statErr) {
			return fmt.Errorf("cannot access config path %s: %w", configPath, statErr)
		}
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", configPath)

	return nil
}
