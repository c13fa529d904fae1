package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	o365 "github.com/custodia-labs/o365-go"
)

var reauthorize bool

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Run the OAuth2 authorization flow and store the token",
	Long: `Authorize runs the OAuth2 authorization-code flow against the Microsoft
identity platform. It prints an authorization URL, waits for the full
redirect URL to be pasted back, exchanges the code for a token and stores
the token so later commands skip this step.`,
	Args: cobra.NoArgs,
	RunE: runAuthorize,
}

func init() {
	authorizeCmd.Flags().BoolVar(&reauthorize, "reauthorize", false, "discard any stored token and authorize again")
	rootCmd.AddCommand(authorizeCmd)
}

func runAuthorize(cmd *cobra.Command, _ []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("client_id is not set in %s, run 'o365 config init' and edit the file", path)
	}

	conn, err := o365.NewOAuthConnection(cmd.Context(), o365.OAuthConfig{
		ClientID:         cfg.ClientID,
		ClientSecret:     cfg.ClientSecret,
		TokenPath:        cfg.TokenPath,
		ForceReauthorize: reauthorize,
		Authorizer:       &o365.ConsoleAuthorizer{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()},
	})
	if err != nil {
		return err
	}
	if !conn.IsValid() {
		return fmt.Errorf("authorization did not produce a usable session")
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Authorized. Token stored.")
	return nil
}
