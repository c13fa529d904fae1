package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	o365 "github.com/custodia-labs/o365-go"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the stored OAuth token",
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show metadata of the stored token",
	Args:  cobra.NoArgs,
	RunE:  runTokenShow,
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the stored token, forcing re-authorization",
	Args:  cobra.NoArgs,
	RunE:  runTokenDelete,
}

func init() {
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenDeleteCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenShow(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	tok, err := o365.LoadToken(cfg.TokenPath)
	if err != nil {
		return err
	}
	if tok == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "No token stored.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Type:          %s\n", tok.TokenType)
	fmt.Fprintf(out, "Refresh token: %t\n", tok.RefreshToken != "")
	if tok.Expiry.IsZero() {
		fmt.Fprintln(out, "Expiry:        unknown")
	} else {
		fmt.Fprintf(out, "Expiry:        %s\n", tok.Expiry.Format(time.RFC3339))
	}
	return nil
}

func runTokenDelete(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := o365.DeleteToken(cfg.TokenPath); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Token deleted.")
	return nil
}
