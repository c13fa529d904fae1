package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/o365-go/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the CLI configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file skeleton",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := config.Save(&config.Config{}, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	fmt.Fprintln(cmd.OutOrStdout(), "Fill in client_id and client_secret, then run 'o365 authorize'.")
	return nil
}
