// Package cli implements the o365 command line interface.
package cli

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/o365-go/internal/config"
)

var (
	// version is set by goreleaser ldflags.
	version = "dev"

	// verbose enables debug logging.
	verbose bool

	// configPath overrides the default config file location.
	configPath string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "o365",
	Short: "Authenticate against Office 365 and query the Graph API",
	Long: `o365 wraps the Office 365 / Microsoft Graph REST API behind two
authentication modes: the OAuth2 authorization-code flow with a persisted
token, and legacy basic auth.

Write a config file with 'o365 config init', fill in the OAuth application
credentials, authorize once with 'o365 authorize', then query with
'o365 get'.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file (default ~/.o365/config.toml)")

	// Use PersistentPreRunE to set verbose mode before any command executes
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	}
}

// resolveConfigPath returns the --config flag value or the default location.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the CLI configuration and returns it with its path.
func loadConfig() (*config.Config, string, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
