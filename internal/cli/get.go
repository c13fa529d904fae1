package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	o365 "github.com/custodia-labs/o365-go"
	"github.com/custodia-labs/o365-go/internal/config"
)

// Flags for get.
var (
	getQuery   []string
	getHeaders []string
	getBasic   bool
)

var getCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Perform an authenticated GET against an Office 365 API URL",
	Long: `Get performs an authenticated GET request and prints the normalized
items of the response's "value" array as JSON.

By default the stored OAuth token is used; --basic switches to basic auth
with the configured username and an interactive password prompt.`,
	Example: `  o365 get 'https://graph.microsoft.com/v1.0/me/messages' -q '$top=5'
  o365 get 'https://graph.microsoft.com/v1.0/me/messages' -q '$filter=isRead eq false'
  o365 get 'https://outlook.office365.com/api/v1.0/me/messages' --basic`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringArrayVarP(&getQuery, "query", "q", nil, "query parameter as key=value (repeatable)")
	getCmd.Flags().StringArrayVarP(&getHeaders, "header", "H", nil, "request header as key=value (repeatable)")
	getCmd.Flags().BoolVar(&getBasic, "basic", false, "use basic auth with the configured username")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	conn, err := buildConnection(cmd, cfg)
	if err != nil {
		return err
	}

	opts, err := requestOptions()
	if err != nil {
		return err
	}

	items, err := conn.GetResponse(cmd.Context(), args[0], opts...)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// buildConnection constructs the connection selected by the flags and
// applies the configured proxy.
func buildConnection(cmd *cobra.Command, cfg *config.Config) (*o365.Connection, error) {
	var conn *o365.Connection
	if getBasic {
		if cfg.Username == "" {
			return nil, fmt.Errorf("username is not set in the config file")
		}
		password, err := promptPassword(cmd, cfg.Username)
		if err != nil {
			return nil, err
		}
		conn = o365.NewBasicConnection(cfg.Username, password)
	} else {
		c, err := o365.NewOAuthConnection(cmd.Context(), o365.OAuthConfig{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenPath:    cfg.TokenPath,
			Authorizer:   &o365.ConsoleAuthorizer{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()},
		})
		if err != nil {
			return nil, err
		}
		conn = c
	}

	if p := cfg.Proxy; p != nil {
		conn = conn.WithProxy(p.URL, p.Port, p.Username, p.Password)
	}
	return conn, nil
}

// promptPassword reads the basic-auth password without echoing when stdin is
// a terminal, falling back to a plain line read otherwise.
func promptPassword(cmd *cobra.Command, username string) (string, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "Password for %s: ", username)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

// requestOptions converts the repeatable -q and -H flags.
func requestOptions() ([]o365.RequestOption, error) {
	var opts []o365.RequestOption

	query, err := parseKeyValues(getQuery, "query")
	if err != nil {
		return nil, err
	}
	for k, v := range query {
		opts = append(opts, o365.WithQuery(k, v))
	}

	headers, err := parseKeyValues(getHeaders, "header")
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		opts = append(opts, o365.WithHeader(k, v))
	}
	return opts, nil
}

// parseKeyValues splits key=value flag values.
func parseKeyValues(pairs []string, flag string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --%s value %q, expected key=value", flag, pair)
		}
		out[key] = value
	}
	return out, nil
}
