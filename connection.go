package o365

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// apiVersion selects the authentication path for a connection.
type apiVersion string

const (
	// apiV1 is the legacy Outlook REST API using basic auth.
	apiV1 apiVersion = "1.0"
	// apiV2 is the Microsoft Graph API using OAuth2 bearer tokens.
	apiV2 apiVersion = "2.0"
)

const defaultTimeout = 30 * time.Second

// Connection holds authentication state for one Office 365 account.
// Each connection is independent; construct one per account or auth mode.
type Connection struct {
	version apiVersion

	// Basic auth (API version 1.0).
	username string
	password string

	// OAuth2 (API version 2.0).
	clientID     string
	clientSecret string
	tokenURL     string
	token        *oauth2.Token
	tokenPath    string

	// proxies maps a URL scheme to an authenticated proxy URL.
	proxies map[string]string

	httpClient *http.Client
}

// NewBasicConnection connects to Office 365 with a username and password
// (API version 1.0). No network call is made; validity only means the
// credentials are present.
func NewBasicConnection(username, password string) *Connection {
	return &Connection{
		version:  apiV1,
		username: username,
		password: password,
	}
}

// WithProxy routes requests through an authenticated HTTP proxy. It can be
// combined with either authentication mode and returns the connection for
// chaining.
func (c *Connection) WithProxy(proxyURL string, port int, username, password string) *Connection {
	c.proxies = map[string]string{
		"http":  fmt.Sprintf("http://%s:%s@%s:%d", username, password, proxyURL, port),
		"https": fmt.Sprintf("https://%s:%s@%s:%d", username, password, proxyURL, port),
	}
	return c
}

// IsValid reports whether the connection is ready to perform requests.
func (c *Connection) IsValid() bool {
	switch c.version {
	case apiV1:
		return c.username != ""
	case apiV2:
		return c.token != nil
	default:
		return false
	}
}

// requestOptions collects per-request settings.
type requestOptions struct {
	query  url.Values
	header http.Header
	client *http.Client
}

// RequestOption customizes a single GetResponse call.
type RequestOption func(*requestOptions)

// WithQuery adds a query parameter to the request URL.
func WithQuery(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.query == nil {
			o.query = url.Values{}
		}
		o.query.Set(key, value)
	}
}

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Set(key, value)
	}
}

// WithHTTPClient overrides the HTTP client for this request, including any
// proxy configured on the connection.
func WithHTTPClient(client *http.Client) RequestOption {
	return func(o *requestOptions) {
		o.client = client
	}
}

// GetResponse performs an authenticated GET against requestURL and returns
// the items of the response's "value" array.
//
// On the OAuth2 path a rejected access token triggers exactly one refresh
// through the token endpoint; the refreshed token is persisted to the
// connection's token path and the request retried. A second rejection, or
// any error during the refresh itself, propagates to the caller.
func (c *Connection) GetResponse(ctx context.Context, requestURL string, opts ...RequestOption) ([]Item, error) {
	if c == nil || !c.IsValid() {
		return nil, ErrNotConfigured
	}

	options := &requestOptions{}
	for _, opt := range opts {
		opt(options)
	}
	client := c.client()
	if options.client != nil {
		client = options.client
	}

	log.Infof("requesting %s", requestURL)

	resp, err := c.do(ctx, client, requestURL, options)
	if err != nil {
		return nil, err
	}

	if c.version == apiV2 && IsUnauthorised(resp.StatusCode) {
		resp.Body.Close()
		if err := c.refreshAndSave(ctx, client); err != nil {
			return nil, err
		}
		resp, err = c.do(ctx, client, requestURL, options)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if werr := WrapStatus(resp.StatusCode); werr != nil {
			return nil, fmt.Errorf("request failed with status %d: %w", resp.StatusCode, werr)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return decodeItems(body)
}

// do builds and performs a single GET with auth and options attached.
func (c *Connection) do(ctx context.Context, client *http.Client, requestURL string, options *requestOptions) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if len(options.query) > 0 {
		q := req.URL.Query()
		for key, values := range options.query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	for key, values := range options.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	switch c.version {
	case apiV1:
		req.SetBasicAuth(c.username, c.password)
	case apiV2:
		req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", requestURL, err)
	}
	return resp, nil
}

// refreshAndSave refreshes the access token once and persists the result to
// the connection's token path.
func (c *Connection) refreshAndSave(ctx context.Context, client *http.Client) error {
	log.Info("access token rejected, refreshing")

	tok, err := refreshToken(ctx, client, c.tokenURL, c.clientID, c.clientSecret, c.token.RefreshToken)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	c.token = tok

	if err := SaveToken(tok, c.tokenPath); err != nil {
		return fmt.Errorf("save refreshed token: %w", err)
	}
	log.Info("access token refreshed")
	return nil
}

// client returns the connection's HTTP client, building a proxy-aware one
// when a proxy is configured.
func (c *Connection) client() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	if len(c.proxies) > 0 {
		return &http.Client{
			Timeout:   defaultTimeout,
			Transport: &http.Transport{Proxy: c.proxyFor},
		}
	}
	return &http.Client{Timeout: defaultTimeout}
}

// proxyFor selects the configured proxy for the request's URL scheme.
func (c *Connection) proxyFor(req *http.Request) (*url.URL, error) {
	raw, ok := c.proxies[req.URL.Scheme]
	if !ok {
		return nil, nil
	}
	return url.Parse(raw)
}

// decodeItems parses a response body and normalizes its "value" array.
// A body without a "value" key is an unexpected payload; the raw body is
// included in the error for diagnosis.
func decodeItems(body []byte) ([]Item, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	raw, ok := payload["value"]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedPayload, body)
	}

	var values []map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode value array: %w", err)
	}

	items := make([]Item, 0, len(values))
	for _, v := range values {
		items = append(items, newItem(v))
	}
	return items, nil
}
