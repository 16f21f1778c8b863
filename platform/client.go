// Package platform is the REST client for the identity platform: entitlement
// listing and patching, identity search, access requests, and access
// profiles. Pagination is handled transparently; every failed call surfaces
// as a core.RemoteError.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/open-iga/proxykit/core"
)

// DefaultPageSize is the page size used for paginated list and search calls.
const DefaultPageSize = 250

// Client talks to one identity platform tenant.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	staticToken string
	pageSize    int
	log         *logrus.Entry
}

// Option configures the client.
type Option func(*Client)

// WithClientCredentials configures OAuth2 client-credentials token exchange
// against tokenURL. An empty tokenURL defaults to baseURL + "/oauth/token".
func WithClientCredentials(clientID, clientSecret, tokenURL string) Option {
	return func(c *Client) {
		if tokenURL == "" {
			tokenURL = strings.TrimRight(c.baseURL, "/") + "/oauth/token"
		}
		cfg := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		}
		c.tokenSource = cfg.TokenSource(context.Background())
	}
}

// WithStaticToken configures a fixed bearer token, a simpler alternative to
// client credentials for development or testing.
func WithStaticToken(token string) Option {
	return func(c *Client) { c.staticToken = token }
}

// WithHTTPClient overrides the underlying HTTP client. Authentication
// transports are layered on top of its transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithPageSize overrides the pagination page size. Must be positive.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets a custom logger entry.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New constructs a client for the tenant at baseURL.
//
// Authentication is resolved in priority order: WithStaticToken,
// WithClientCredentials, then the PROXYKIT_CLIENT_ID / PROXYKIT_CLIENT_SECRET
// environment pair.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = os.Getenv("PROXYKIT_BASE_URL")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("platform: base URL required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		pageSize:   DefaultPageSize,
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range opts {
		o(c)
	}

	if c.staticToken == "" && c.tokenSource == nil {
		id, secret := os.Getenv("PROXYKIT_CLIENT_ID"), os.Getenv("PROXYKIT_CLIENT_SECRET")
		if id == "" || secret == "" {
			return nil, fmt.Errorf("platform: authentication required (use WithStaticToken, WithClientCredentials, or PROXYKIT_CLIENT_ID/PROXYKIT_CLIENT_SECRET)")
		}
		WithClientCredentials(id, secret, "")(c)
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if c.staticToken != "" {
		c.httpClient = &http.Client{
			Transport: &bearerTransport{base: base, token: c.staticToken},
			Timeout:   c.httpClient.Timeout,
		}
	} else {
		c.httpClient = &http.Client{
			Transport: &oauth2.Transport{Base: base, Source: c.tokenSource},
			Timeout:   c.httpClient.Timeout,
		}
	}
	return c, nil
}

// Token returns the current bearer token, fetching one via the token source
// when client credentials are configured.
func (c *Client) Token() (string, error) {
	if c.staticToken != "" {
		return c.staticToken, nil
	}
	tok, err := c.tokenSource.Token()
	if err != nil {
		return "", &core.RemoteError{Msg: "token exchange failed", Err: err}
	}
	return tok.AccessToken, nil
}

// do performs one JSON API call. A nil out discards the response body. Non-2xx
// responses and transport failures are returned as *core.RemoteError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("platform: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("platform: build %s %s: %w", method, path, err)
	}
	if body != nil {
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.RemoteError{Msg: method + " " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("platform call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &core.RemoteError{Status: resp.StatusCode, Msg: method + " " + path + ": " + strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return &core.RemoteError{Status: resp.StatusCode, Msg: fmt.Sprintf("decode %s %s response", method, path), Err: err}
	}
	return nil
}

// bearerTransport injects a static bearer token into every outgoing request.
type bearerTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}
