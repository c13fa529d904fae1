package o365

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// authorizerFunc adapts a function to the Authorizer interface.
type authorizerFunc func(ctx context.Context, authURL string) (string, error)

func (f authorizerFunc) Authorize(ctx context.Context, authURL string) (string, error) {
	return f(ctx, authURL)
}

func TestOAuthConfig_Defaults(t *testing.T) {
	cfg, err := OAuthConfig{ClientID: "client"}.withDefaults()
	require.NoError(t, err)

	assert.Equal(t, "https://login.microsoftonline.com/common/oauth2/v2.0/authorize", cfg.AuthURL)
	assert.Equal(t, "https://login.microsoftonline.com/common/oauth2/v2.0/token", cfg.TokenURL)
	assert.Equal(t, "https://outlook.office365.com/owa/", cfg.RedirectURI)
	assert.Contains(t, cfg.Scopes, "offline_access")
	assert.Contains(t, cfg.Scopes, "https://graph.microsoft.com/Mail.ReadWrite")
	assert.Contains(t, cfg.Scopes, "https://graph.microsoft.com/Mail.Send")
	assert.Equal(t, ".o365_token", filepath.Base(cfg.TokenPath))
	assert.NotNil(t, cfg.Authorizer)
}

func TestOAuthConfig_AuthCodeURL(t *testing.T) {
	cfg, err := OAuthConfig{ClientID: "test-client-id"}.withDefaults()
	require.NoError(t, err)

	authURL := cfg.oauth2Config().AuthCodeURL("test-state", oauth2.AccessTypeOffline)

	assert.Contains(t, authURL, "https://login.microsoftonline.com/common/oauth2/v2.0/authorize")
	assert.Contains(t, authURL, "client_id=test-client-id")
	assert.Contains(t, authURL, "response_type=code")
	assert.Contains(t, authURL, "state=test-state")
	assert.Contains(t, authURL, "access_type=offline")
	assert.Contains(t, authURL, "offline_access")
}

func TestParseRedirectURL(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		expectedCode  string
		expectedState string
		expectErr     string
	}{
		{
			name:          "code and state",
			raw:           "https://outlook.office365.com/owa/?code=abc123&state=xyz",
			expectedCode:  "abc123",
			expectedState: "xyz",
		},
		{
			name:          "surrounding whitespace",
			raw:           "  https://outlook.office365.com/owa/?code=abc123&state=xyz\n",
			expectedCode:  "abc123",
			expectedState: "xyz",
		},
		{
			name:      "missing code",
			raw:       "https://outlook.office365.com/owa/?state=xyz",
			expectErr: "missing the authorization code",
		},
		{
			name:      "error from the identity platform",
			raw:       "https://outlook.office365.com/owa/?error=access_denied&error_description=user+declined",
			expectErr: "access_denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, state, err := parseRedirectURL(tt.raw)
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedCode, code)
			assert.Equal(t, tt.expectedState, state)
		})
	}
}

func TestConsoleAuthorizer(t *testing.T) {
	in := strings.NewReader("https://outlook.office365.com/owa/?code=abc&state=xyz\n")
	var out bytes.Buffer

	a := &ConsoleAuthorizer{In: in, Out: &out}
	got, err := a.Authorize(context.Background(), "https://auth.example.com/authorize")

	require.NoError(t, err)
	assert.Equal(t, "https://outlook.office365.com/owa/?code=abc&state=xyz", got)
	assert.Contains(t, out.String(), "https://auth.example.com/authorize")
	assert.Contains(t, out.String(), "Enter the full result url")
}

func TestRefreshToken(t *testing.T) {
	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"new-access","refresh_token":"new-refresh","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	tok, err := refreshToken(context.Background(), srv.Client(), srv.URL, "client", "secret", "old-refresh")

	require.NoError(t, err)
	assert.Equal(t, "new-access", tok.AccessToken)
	assert.Equal(t, "new-refresh", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, 5*time.Second)

	assert.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	assert.Equal(t, "client", gotForm.Get("client_id"))
	assert.Equal(t, "secret", gotForm.Get("client_secret"))
	assert.Equal(t, "old-refresh", gotForm.Get("refresh_token"))
}

func TestRefreshToken_KeepsOldRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	tok, err := refreshToken(context.Background(), srv.Client(), srv.URL, "client", "", "old-refresh")

	require.NoError(t, err)
	assert.Equal(t, "old-refresh", tok.RefreshToken)
}

func TestRefreshToken_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := refreshToken(context.Background(), srv.Client(), srv.URL, "client", "", "refresh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")

	_, err = refreshToken(context.Background(), srv.Client(), srv.URL, "client", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no refresh token")
}

func TestNewOAuthConnection_RequiresClientID(t *testing.T) {
	_, err := NewOAuthConnection(context.Background(), OAuthConfig{
		TokenPath: filepath.Join(t.TempDir(), "token.json"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "client id")
}

func TestNewOAuthConnection_FullFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostFormValue("grant_type"))
		assert.Equal(t, "the-code", r.PostFormValue("code"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access","refresh_token":"refresh","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	tokenPath := filepath.Join(t.TempDir(), "token.json")
	var seenAuthURL string

	conn, err := NewOAuthConnection(context.Background(), OAuthConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     srv.URL,
		TokenPath:    tokenPath,
		HTTPClient:   srv.Client(),
		Authorizer: authorizerFunc(func(_ context.Context, authURL string) (string, error) {
			seenAuthURL = authURL
			u, err := url.Parse(authURL)
			require.NoError(t, err)
			state := u.Query().Get("state")
			return "https://outlook.office365.com/owa/?code=the-code&state=" + state, nil
		}),
	})

	require.NoError(t, err)
	assert.True(t, conn.IsValid())
	assert.Contains(t, seenAuthURL, "client_id=client")

	// The exchanged token is persisted for later runs.
	saved, err := LoadToken(tokenPath)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "access", saved.AccessToken)
	assert.Equal(t, "refresh", saved.RefreshToken)
}

func TestNewOAuthConnection_ReusesStoredToken(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(&oauth2.Token{AccessToken: "stored", RefreshToken: "refresh"}, tokenPath))

	conn, err := NewOAuthConnection(context.Background(), OAuthConfig{
		ClientID:  "client",
		TokenPath: tokenPath,
		Authorizer: authorizerFunc(func(context.Context, string) (string, error) {
			t.Fatal("authorizer must not run when a token is stored")
			return "", nil
		}),
	})

	require.NoError(t, err)
	assert.True(t, conn.IsValid())
}

func TestNewOAuthConnection_ForceReauthorize(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(&oauth2.Token{AccessToken: "stored"}, tokenPath))

	_, err := NewOAuthConnection(context.Background(), OAuthConfig{
		ClientID:         "client",
		TokenPath:        tokenPath,
		ForceReauthorize: true,
		Authorizer: authorizerFunc(func(context.Context, string) (string, error) {
			return "", fmt.Errorf("authorization aborted")
		}),
	})

	// The stored token was discarded, so the flow ran and its failure surfaced.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authorization aborted")

	tok, loadErr := LoadToken(tokenPath)
	require.NoError(t, loadErr)
	assert.Nil(t, tok)
}

func TestNewOAuthConnection_StateMismatch(t *testing.T) {
	_, err := NewOAuthConnection(context.Background(), OAuthConfig{
		ClientID:  "client",
		TokenPath: filepath.Join(t.TempDir(), "token.json"),
		Authorizer: authorizerFunc(func(context.Context, string) (string, error) {
			return "https://outlook.office365.com/owa/?code=the-code&state=forged", nil
		}),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "state mismatch")
}
