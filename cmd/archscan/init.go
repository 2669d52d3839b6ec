package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"archscan/internal/config"
	archerrors "archscan/internal/errors"
	"archscan/internal/paths"
	"archscan/internal/policy"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize archscan configuration",
	Long:  "Creates a .archscan/ directory with a default config.json and policy.toml in the repository root",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	repoRoot, err := getRepoRoot()
	if err != nil {
		return archerrors.New(archerrors.InternalError, "failed to get current directory", err)
	}
	w := cmd.OutOrStdout()

	configPath := filepath.Join(paths.StateDir(repoRoot), "config.json")
	if _, statErr := os.Stat(configPath); statErr == nil && !initForce {
		// Already initialized is success
		fmt.Fprintln(w, "archscan already initialized.")
		fmt.Fprintf(w, "Configuration at: %s\n", configPath)
		fmt.Fprintln(w, "\nRun 'archscan init --force' to overwrite it.")
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.PolicyFile = filepath.Join(paths.StateDirName, "policy.toml")
	if err := cfg.Save(repoRoot); err != nil {
		return archerrors.New(archerrors.InternalError, "failed to write config file", err)
	}
	policyPath := filepath.Join(repoRoot, cfg.PolicyFile)
	if err := policy.Default().Save(policyPath); err != nil {
		return archerrors.New(archerrors.InternalError, "failed to write policy file", err)
	}

	fmt.Fprintln(w, "archscan initialized successfully!")
	fmt.Fprintf(w, "Configuration written to: %s\n", configPath)
	fmt.Fprintf(w, "Policy written to: %s\n", policyPath)
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintln(w, "  1. Adjust entryPoints and pathAliases in the config")
	fmt.Fprintln(w, "  2. Run 'archscan scan' to see the architecture summary")
	return nil
}
