// Package trakt contains a client for the Trakt API, including the
// OAuth 2.0 authorization code flow.
package trakt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Nivl/trkt/internal/errutil"
	"github.com/Nivl/trkt/internal/secret"
	"golang.org/x/oauth2"
)

const (
	// DefaultAPIURL is the URL of the Trakt API used when none is
	// provided.
	DefaultAPIURL = "https://api-staging.trakt.tv"
	// DefaultRedirectURI is the redirect URI used when none is provided.
	DefaultRedirectURI = "http://localhost:8889/"

	apiVersion = "2"
)

// ErrUnexpectedStatus is returned when the Trakt API returns an
// unexpected status code.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// Client is the main struct for interacting with the Trakt API.
type Client struct {
	// http is the HTTP client used to make requests to the Trakt API.
	http *http.Client
	// baseURL is the base URL for the Trakt API.
	baseURL string
	// clientID is the client ID of the Trakt APP.
	clientID string
	// clientSecret is the client secret of the Trakt APP.
	clientSecret secret.Secret
	// oauth holds the endpoints and credentials of the OAuth flow.
	oauth *oauth2.Config

	// mu protects the fields below. The token is written by the
	// redirect listener and read by the session.
	mu      sync.RWMutex
	token   *oauth2.Token
	pending *pendingAuthorization
}

// ClientConfig holds the configuration for the Trakt client.
type ClientConfig struct {
	ClientID     string        `env:"KEY"`
	ClientSecret secret.Secret `env:"SECRET"`
	RedirectURI  string        `env:"REDIRECT_URI,default=http://localhost:8889/"`
	APIURL       string        `env:"API_URL,default=https://api-staging.trakt.tv"`
	Scopes       []string      `env:"SCOPES"`
}

// NewClient creates a new Trakt API client with the provided configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	return NewClientWithHTTP(cfg, &http.Client{
		Timeout: 10 * time.Second,
	})
}

// NewClientWithHTTP creates a new Trakt API client that uses the
// provided HTTP client for all the requests, including the ones
// made to the token endpoint.
func NewClientWithHTTP(cfg ClientConfig, httpClient *http.Client) (*Client, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = DefaultRedirectURI
	}
	if !strings.HasPrefix(cfg.APIURL, "http://") && !strings.HasPrefix(cfg.APIURL, "https://") {
		return nil, fmt.Errorf("invalid API URL %q: %w", cfg.APIURL, ErrInvalidConfig)
	}
	baseURL := strings.TrimSuffix(cfg.APIURL, "/")

	return &Client{
		http:         httpClient,
		baseURL:      baseURL + "/",
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret.Get(),
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  baseURL + "/oauth/authorize",
				TokenURL: baseURL + "/oauth/token",
				// Trakt expects the credentials in the body
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}, nil
}

// RedirectURI returns the URI Trakt redirects the user to once the
// access has been granted.
func (c *Client) RedirectURI() string {
	return c.oauth.RedirectURL
}

// IsConfigured returns true if both the client ID and the client
// secret are set.
func (c *Client) IsConfigured() bool {
	return c.clientID != "" && !c.clientSecret.IsEmpty()
}

// IsAuthenticated returns true if the client holds an access token
// that has not expired.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token.Valid()
}

// Token returns a copy of the current token, or nil if the client
// is not authenticated.
func (c *Client) Token() *oauth2.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return nil
	}
	tok := *c.token
	return &tok
}

// SetToken replaces the current token.
func (c *Client) SetToken(tok *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = tok
}

// oauthContext returns a context that makes the oauth2 package use
// our HTTP client.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

// requestOptions holds options for the request
type requestOptions struct {
	dontRetryOnAuthFailure bool
	noAuth                 bool
}

type requestOptionsFunc func(*requestOptions)

// withNoRetryOnAuthFailure is a option for the request that indicates
// that the request should not be retried if it receives a 401
// Unauthorized response.
func withNoRetryOnAuthFailure() requestOptionsFunc {
	return func(opts *requestOptions) {
		opts.dontRetryOnAuthFailure = true
	}
}

// withNoAuth is a option for the request that indicates
// that the request should not include authentication headers.
func withNoAuth() requestOptionsFunc {
	return func(opts *requestOptions) {
		opts.noAuth = true
	}
}

// request sends an HTTP request to the Trakt API and returns the response.
// If the access token is rejected and a refresh token is available,
// the token is refreshed and the request sent one more time.
func (c *Client) request(ctx context.Context, method string, path string, body json.RawMessage, opts ...requestOptionsFunc) (resp *http.Response, respBody []byte, err error) {
	var options requestOptions
	for _, o := range opts {
		o(&options)
	}

	var bodyBuffer io.Reader = http.NoBody
	if body != nil {
		bodyBuffer = bytes.NewBuffer(body)
	}

	resp, respBody, err = c._request(ctx, method, path, bodyBuffer, options)
	if err != nil {
		return nil, nil, err
	}
	if !options.noAuth && !options.dontRetryOnAuthFailure && resp.StatusCode == http.StatusUnauthorized && c.hasRefreshToken() {
		if err = c.RefreshToken(ctx); err != nil {
			return nil, nil, fmt.Errorf("refresh token: %w", err)
		}
		newOpts := append(slices.Clone(opts), withNoRetryOnAuthFailure())
		return c.request(ctx, method, path, body, newOpts...)
	}

	return resp, respBody, nil
}

// _request is a low-level HTTP request function that sends a request to the
// Trakt API and returns the response and body.
func (c *Client) _request(ctx context.Context, method string, path string, body io.Reader, options requestOptions) (resp *http.Response, respBody []byte, err error) {
	u := c.baseURL + strings.TrimPrefix(path, "/")

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, nil, fmt.Errorf("create new HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("trakt-api-version", apiVersion)
	req.Header.Set("trakt-api-key", c.clientID)
	if !options.noAuth {
		tok := c.Token()
		if tok == nil {
			return nil, nil, ErrNotAuthenticated
		}
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}

	resp, err = c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("send HTTP request: %w", err)
	}
	defer errutil.RunAndSetError(resp.Body.Close, &err, "close response body")

	respBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}

	return resp, respBody, nil
}

func (c *Client) get(ctx context.Context, path string, opts ...requestOptionsFunc) (resp *http.Response, respBody []byte, err error) {
	return c.request(ctx, http.MethodGet, path, nil, opts...)
}

func statusError(code int) error {
	return fmt.Errorf("http %d: %w. See https://trakt.docs.apiary.io/#introduction/status-codes", code, ErrUnexpectedStatus)
}

// AccountSettings returns the raw settings of the authenticated user.
// https://trakt.docs.apiary.io/#reference/users/settings/retrieve-settings
func (c *Client) AccountSettings(ctx context.Context) (json.RawMessage, error) {
	resp, body, err := c.get(ctx, "/users/settings")
	if err != nil {
		return nil, fmt.Errorf("get account settings: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	if !json.Valid(body) {
		return nil, errors.New("account settings: invalid JSON response")
	}
	return json.RawMessage(body), nil
}

// Episode returns the full summary of a single episode of a show.
// show can be a Trakt ID, a Trakt slug, or an IMDB ID.
// https://trakt.docs.apiary.io/#reference/episodes/summary/get-a-single-episode-for-a-show
func (c *Client) Episode(ctx context.Context, show string, season, number int) (*Episode, error) {
	path := fmt.Sprintf("/shows/%s/seasons/%d/episodes/%d?extended=full", url.PathEscape(show), season, number)

	resp, body, err := c.get(ctx, path, withNoAuth())
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode)
	}

	var episode Episode
	if err = json.Unmarshal(body, &episode); err != nil {
		return nil, fmt.Errorf("decode episode: %w", err)
	}
	return &episode, nil
}
