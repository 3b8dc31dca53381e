package trakt

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

var (
	// ErrInvalidConfig is returned when the configuration of the client
	// cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNotAuthenticated is returned when an authenticated request is
	// made before a token has been obtained.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNoPendingAuthorization is returned when a redirect is received
	// but no authorization URL has been generated.
	ErrNoPendingAuthorization = errors.New("no pending authorization")
	// ErrStateMismatch is returned when the state of the redirect
	// doesn't match the one sent in the authorization URL.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrMissingCode is returned when the redirect doesn't contain any
	// authorization code.
	ErrMissingCode = errors.New("missing authorization code")
	// ErrAuthorizationDenied is returned when Trakt redirected the user
	// with an error, usually because the access was denied.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrExchange is returned when Trakt rejected the code, or couldn't
	// be reached.
	ErrExchange = errors.New("token exchange failed")
	// ErrNoRefreshToken is returned when a refresh is needed but the
	// client doesn't hold a refresh token.
	ErrNoRefreshToken = errors.New("no refresh token")
)

// pendingAuthorization contains the values sent with the last
// authorization URL, needed to validate the redirect and exchange
// the code.
type pendingAuthorization struct {
	state    string
	verifier string
}

// AuthorizationURL returns the URL the user needs to open to grant
// access to the app.
// Every call generates a new state and PKCE verifier, which replace
// the ones of any previous call.
func (c *Client) AuthorizationURL() (string, error) {
	state, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	pending := &pendingAuthorization{
		state:    state.String(),
		verifier: oauth2.GenerateVerifier(),
	}

	c.mu.Lock()
	c.pending = pending
	c.mu.Unlock()

	return c.oauth.AuthCodeURL(pending.state, oauth2.S256ChallengeOption(pending.verifier)), nil
}

// TokenFromRedirect validates the URI Trakt redirected the user to and
// exchanges its code for a token. On success, the token is used for
// all the subsequent authenticated requests.
func (c *Client) TokenFromRedirect(ctx context.Context, redirected *url.URL) error {
	query := redirected.Query()

	c.mu.RLock()
	pending := c.pending
	c.mu.RUnlock()
	if pending == nil {
		return ErrNoPendingAuthorization
	}

	if query.Get("state") != pending.state {
		return fmt.Errorf("redirect state %q: %w", query.Get("state"), ErrStateMismatch)
	}

	if e := query.Get("error"); e != "" {
		if desc := query.Get("error_description"); desc != "" {
			e += ": " + desc
		}
		return fmt.Errorf("%s: %w", e, ErrAuthorizationDenied)
	}

	code := query.Get("code")
	if code == "" {
		return ErrMissingCode
	}

	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code, oauth2.VerifierOption(pending.verifier))
	if err != nil {
		return errors.Join(ErrExchange, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Nobody is waiting for this token anymore
	if err := ctx.Err(); err != nil {
		return err
	}
	c.token = tok
	// The code and verifier are single use
	if c.pending == pending {
		c.pending = nil
	}
	return nil
}

func (c *Client) hasRefreshToken() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != nil && c.token.RefreshToken != ""
}

// RefreshToken gets a new access token using the refresh token.
func (c *Client) RefreshToken(ctx context.Context) error {
	current := c.Token()
	if current == nil || current.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	// Only the refresh token is kept to force the renewal
	expired := &oauth2.Token{RefreshToken: current.RefreshToken}
	tok, err := c.oauth.TokenSource(c.oauthContext(ctx), expired).Token()
	if err != nil {
		return errors.Join(ErrExchange, err)
	}

	c.SetToken(tok)
	return nil
}
