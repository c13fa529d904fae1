package o365

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Microsoft identity platform constants. The "common" tenant supports both
// personal Microsoft accounts and Azure AD accounts.
const (
	defaultAuthURL = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	//nolint:gosec // G101: Not credentials, OAuth endpoint URL
	defaultTokenURL = "https://login.microsoftonline.com/common/oauth2/v2.0/token"

	// defaultRedirectURI is the Outlook Web App URL, which works without a
	// locally hosted callback server: the user copies the redirected URL
	// from the browser's address bar.
	defaultRedirectURI = "https://outlook.office365.com/owa/"
)

// defaultScopes are the scopes requested during authorization.
var defaultScopes = []string{
	"https://graph.microsoft.com/Mail.ReadWrite",
	"https://graph.microsoft.com/Mail.Send",
	"offline_access", // Required for refresh tokens
}

// Authorizer completes the interactive authorization step of the OAuth2
// flow: given the authorization URL the user must visit, it returns the full
// URL the identity platform redirected to after consent was granted.
// Automated flows and tests supply their own implementation.
type Authorizer interface {
	Authorize(ctx context.Context, authURL string) (redirectURL string, err error)
}

// ConsoleAuthorizer prompts on Out and reads the redirect URL from In.
// The zero value uses stdin and stdout.
type ConsoleAuthorizer struct {
	In  io.Reader
	Out io.Writer
}

// Authorize prints the authorization URL and blocks reading one line
// containing the redirected URL.
func (a *ConsoleAuthorizer) Authorize(_ context.Context, authURL string) (string, error) {
	in, out := a.In, a.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintf(out, "Please open %s and authorize the application\n", authURL)
	fmt.Fprint(out, "Enter the full result url: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read redirect url: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// OAuthConfig configures the OAuth2 authorization-code flow for API
// version 2.0. The zero value of every field except ClientID has a sensible
// default.
type OAuthConfig struct {
	// ClientID and ClientSecret identify the application registered at
	// portal.azure.com > App registrations.
	ClientID     string
	ClientSecret string

	// AuthURL and TokenURL default to the Microsoft identity platform
	// "common" tenant endpoints.
	AuthURL  string
	TokenURL string

	// RedirectURI defaults to the Outlook Web App URL.
	RedirectURI string

	// Scopes defaults to Mail.ReadWrite, Mail.Send and offline_access.
	Scopes []string

	// TokenPath is where the token is persisted. Defaults to ~/.o365_token.
	TokenPath string

	// ForceReauthorize deletes any persisted token before connecting,
	// forcing the interactive authorization step to run again.
	ForceReauthorize bool

	// Authorizer obtains the redirect URL during first-time authorization.
	// Defaults to a ConsoleAuthorizer on stdin/stdout.
	Authorizer Authorizer

	// HTTPClient overrides the transport used for the token exchange and
	// subsequent requests.
	HTTPClient *http.Client
}

// withDefaults fills in unset fields.
func (cfg OAuthConfig) withDefaults() (OAuthConfig, error) {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = defaultRedirectURI
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = defaultScopes
	}
	if cfg.TokenPath == "" {
		path, err := DefaultTokenPath()
		if err != nil {
			return cfg, err
		}
		cfg.TokenPath = path
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = &ConsoleAuthorizer{}
	}
	return cfg, nil
}

func (cfg OAuthConfig) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}
}

// NewOAuthConnection connects to Office 365 using the OAuth2
// authorization-code flow (API version 2.0).
//
// A previously persisted token is reused when present; no network call is
// made in that case. Otherwise the configured Authorizer completes the
// interactive authorization step, the returned code is exchanged for a
// token, and the token is persisted for later runs.
func NewOAuthConnection(ctx context.Context, cfg OAuthConfig) (*Connection, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("o365: oauth client id is required")
	}

	if cfg.ForceReauthorize {
		if err := DeleteToken(cfg.TokenPath); err != nil {
			return nil, err
		}
	}

	tok, err := LoadToken(cfg.TokenPath)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		tok, err = authorize(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := SaveToken(tok, cfg.TokenPath); err != nil {
			return nil, err
		}
	}

	return &Connection{
		version:      apiV2,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     cfg.TokenURL,
		token:        tok,
		tokenPath:    cfg.TokenPath,
		httpClient:   cfg.HTTPClient,
	}, nil
}

// authorize runs the authorization-code flow once and returns the token.
func authorize(ctx context.Context, cfg OAuthConfig) (*oauth2.Token, error) {
	state := uuid.NewString()
	authURL := cfg.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOffline)

	redirectURL, err := cfg.Authorizer.Authorize(ctx, authURL)
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}

	code, gotState, err := parseRedirectURL(redirectURL)
	if err != nil {
		return nil, err
	}
	if gotState != state {
		return nil, fmt.Errorf("o365: authorization state mismatch")
	}

	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	tok, err := cfg.oauth2Config().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

// parseRedirectURL extracts the authorization code and state from the URL
// the identity platform redirected the browser to.
func parseRedirectURL(raw string) (code, state string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse redirect url: %w", err)
	}

	q := u.Query()
	if errCode := q.Get("error"); errCode != "" {
		return "", "", fmt.Errorf("o365: authorization failed: %s: %s", errCode, q.Get("error_description"))
	}
	code = q.Get("code")
	if code == "" {
		return "", "", fmt.Errorf("o365: redirect url is missing the authorization code")
	}
	return code, q.Get("state"), nil
}

// tokenResponse is the token endpoint's JSON response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// refreshToken performs a refresh_token grant against the token endpoint.
// Microsoft may rotate the refresh token; the previous one is kept when the
// response omits it.
func refreshToken(ctx context.Context, client *http.Client, tokenURL, clientID, clientSecret, refresh string) (*oauth2.Token, error) {
	if refresh == "" {
		return nil, fmt.Errorf("o365: no refresh token available")
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", clientID)
	if clientSecret != "" {
		data.Set("client_secret", clientSecret)
	}
	data.Set("refresh_token", refresh)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token refresh failed with status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refresh
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}
