package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Nivl/trkt/internal/browser"
	"github.com/Nivl/trkt/internal/mocks"
	"github.com/Nivl/trkt/internal/redirect"
	"github.com/Nivl/trkt/internal/secret"
	"github.com/Nivl/trkt/internal/session"
	"github.com/Nivl/trkt/internal/trakt"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const goodCode = "good-code"

// provider fakes the token endpoint and the settings endpoint of Trakt.
type provider struct {
	mu            sync.Mutex
	settingsCalls int
	bearer        string
}

func newProvider(t *testing.T) (*provider, *httptest.Server) {
	t.Helper()

	p := &provider{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != goodCode {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		_, _ = io.WriteString(w, `{"access_token":"access","token_type":"bearer","expires_in":7776000,"refresh_token":"refresh","scope":"public"}`)
	})
	mux.HandleFunc("GET /users/settings", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.settingsCalls++
		p.bearer = r.Header.Get("Authorization")
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"user":{"username":"sean"}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return p, srv
}

func (p *provider) calls() (int, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settingsCalls, p.bearer
}

// freePort returns a port that's likely to be available.
func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func newClient(t *testing.T, srv *httptest.Server, redirectURI, clientID, clientSecret string) *trakt.Client {
	t.Helper()

	c, err := trakt.NewClientWithHTTP(trakt.ClientConfig{
		ClientID:     clientID,
		ClientSecret: secret.New(clientSecret),
		RedirectURI:  redirectURI,
		APIURL:       srv.URL,
	}, srv.Client())
	require.NoError(t, err)
	return c
}

// redirectingBrowser returns an Opener that behaves like a user
// granting access: it follows the redirect with the provided code.
func redirectingBrowser(t *testing.T, code string) browser.Opener {
	t.Helper()

	return browser.OpenerFunc(func(authURL string) error {
		u, err := url.Parse(authURL)
		if !assert.NoError(t, err) {
			return err
		}
		redirectURI, err := url.Parse(u.Query().Get("redirect_uri"))
		if !assert.NoError(t, err) {
			return err
		}
		redirectURI.RawQuery = url.Values{
			"code":  {code},
			"state": {u.Query().Get("state")},
		}.Encode()

		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, redirectURI.String(), http.NoBody)
		if !assert.NoError(t, err) {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if !assert.NoError(t, err) {
			return err
		}
		defer resp.Body.Close() //nolint:errcheck // test
		body, err := io.ReadAll(resp.Body)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Ok.", string(body))
		return nil
	})
}

func noListen(t *testing.T) session.ListenFunc {
	t.Helper()

	return func(_ context.Context, _ string, _ redirect.Exchanger) (session.Listener, error) {
		t.Error("the listener should not be started")
		return nil, errors.New("unexpected listen")
	}
}

func TestRunSuccessfulAuthorization(t *testing.T) {
	t.Parallel()

	p, srv := newProvider(t)
	redirectURI := "http://127.0.0.1:" + strconv.Itoa(freePort(t)) + "/"
	c := newClient(t, srv, redirectURI, "id", "secret")

	mockctrl := gomock.NewController(t)
	reporter := mocks.NewMockReporter(mockctrl)
	reporter.EXPECT().SendMessage(gomock.Any(), "Trakt: authorization succeeded")

	var out bytes.Buffer
	s := session.New("Trakt", c, session.TraktAccountInfo(c),
		session.WithOpener(redirectingBrowser(t, goodCode)),
		session.WithOutput(&out),
		session.WithReporter(reporter),
		session.WithTimeout(10*time.Second),
	)

	state, err := s.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, session.Done, state)
	assert.True(t, c.IsAuthenticated())

	calls, bearer := p.calls()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Bearer access", bearer)

	assert.Contains(t, out.String(), "Running Trakt session...")
	assert.Contains(t, out.String(), "Opening browser in URI:")
	assert.Contains(t, out.String(), `Information: {"user":{"username":"sean"}}`)

	// The token is reused for the rest of the process
	s = session.New("Trakt", c, session.TraktAccountInfo(c),
		session.WithOpener(redirectingBrowser(t, "unused")),
		session.WithOutput(io.Discard),
		session.WithListenFunc(noListen(t)),
	)
	state, err = s.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, session.Done, state)
	calls, _ = p.calls()
	assert.Equal(t, 2, calls)
}

func TestRunFailedAuthorization(t *testing.T) {
	t.Parallel()

	p, srv := newProvider(t)
	redirectURI := "http://127.0.0.1:" + strconv.Itoa(freePort(t)) + "/"
	c := newClient(t, srv, redirectURI, "id", "secret")

	mockctrl := gomock.NewController(t)
	reporter := mocks.NewMockReporter(mockctrl)
	reporter.EXPECT().SendMessage(gomock.Any(), "Trakt: authorization failed")

	var out bytes.Buffer
	s := session.New("Trakt", c, session.TraktAccountInfo(c),
		session.WithOpener(redirectingBrowser(t, "expired-code")),
		session.WithOutput(&out),
		session.WithReporter(reporter),
		session.WithTimeout(10*time.Second),
	)

	state, err := s.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, session.AuthorizationFailed, state)
	assert.False(t, c.IsAuthenticated())
	assert.Contains(t, out.String(), "Authorization failed for Trakt.")
	assert.NotContains(t, out.String(), "Requesting account information")

	calls, _ := p.calls()
	assert.Zero(t, calls)
}

func TestRunDisabled(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		desc   string
		id     string
		secret string
	}{
		{desc: "no credentials"},
		{desc: "no id", secret: "secret"},
		{desc: "no secret", id: "id"},
	}
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			p, srv := newProvider(t)
			c := newClient(t, srv, "http://127.0.0.1:8889/", tc.id, tc.secret)

			mockctrl := gomock.NewController(t)
			opener := mocks.NewMockOpener(mockctrl)
			opener.EXPECT().Open(gomock.Any()).Times(0)

			var out bytes.Buffer
			s := session.New("Trakt", c, session.TraktAccountInfo(c),
				session.WithOpener(opener),
				session.WithOutput(&out),
				session.WithListenFunc(noListen(t)),
			)

			for range 2 {
				out.Reset()
				state, err := s.Run(t.Context())
				require.NoError(t, err)
				assert.Equal(t, session.Disabled, state)
				assert.Equal(t, "Skipped Trakt session sample because app key or secret is empty. Please see instructions.\n", out.String())
			}

			calls, _ := p.calls()
			assert.Zero(t, calls)
		})
	}
}

func TestRunAlreadyAuthenticated(t *testing.T) {
	t.Parallel()

	p, srv := newProvider(t)
	c := newClient(t, srv, "http://127.0.0.1:8889/", "id", "secret")
	c.SetToken(&oauth2.Token{AccessToken: "cached", Expiry: time.Now().Add(time.Hour)})

	mockctrl := gomock.NewController(t)
	opener := mocks.NewMockOpener(mockctrl)
	opener.EXPECT().Open(gomock.Any()).Times(0)

	var out bytes.Buffer
	s := session.New("Trakt", c, session.TraktAccountInfo(c),
		session.WithOpener(opener),
		session.WithOutput(&out),
		session.WithListenFunc(noListen(t)),
	)

	state, err := s.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, session.Done, state)
	assert.NotContains(t, out.String(), "Opening browser")

	calls, bearer := p.calls()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "Bearer cached", bearer)
}

func TestRunTimeout(t *testing.T) {
	t.Parallel()

	p, srv := newProvider(t)
	redirectURI := "http://127.0.0.1:" + strconv.Itoa(freePort(t)) + "/"
	c := newClient(t, srv, redirectURI, "id", "secret")

	mockctrl := gomock.NewController(t)
	opener := mocks.NewMockOpener(mockctrl)
	opener.EXPECT().Open(gomock.Any()).Return(errors.New("no browser available"))

	var out bytes.Buffer
	s := session.New("Trakt", c, session.TraktAccountInfo(c),
		session.WithOpener(opener),
		session.WithOutput(&out),
		session.WithTimeout(100*time.Millisecond),
	)

	state, err := s.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, session.AuthorizationFailed, state)
	assert.Contains(t, out.String(), "timed out")
	assert.Contains(t, out.String(), "Authorization failed for Trakt.")

	calls, _ := p.calls()
	assert.Zero(t, calls)

	// The listener has been released
	ln, err := net.Listen("tcp", redirectURI[len("http://"):len(redirectURI)-1])
	require.NoError(t, err)
	require.NoError(t, ln.Close())
}

func TestRunBindFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() }) //nolint:errcheck // test

	_, srv := newProvider(t)
	c := newClient(t, srv, "http://"+ln.Addr().String()+"/", "id", "secret")

	mockctrl := gomock.NewController(t)
	opener := mocks.NewMockOpener(mockctrl)
	opener.EXPECT().Open(gomock.Any()).Times(0)

	s := session.New("Trakt", c, session.TraktAccountInfo(c),
		session.WithOpener(opener),
		session.WithOutput(io.Discard),
	)

	state, err := s.Run(t.Context())
	require.Error(t, err)
	assert.Equal(t, session.Unauthenticated, state)
}

type accountReaderFunc func(ctx context.Context) (json.RawMessage, error)

func (f accountReaderFunc) AccountSettings(ctx context.Context) (json.RawMessage, error) {
	return f(ctx)
}

func TestTraktAccountInfo(t *testing.T) {
	t.Parallel()

	t.Run("prints the raw body", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		call := session.TraktAccountInfo(accountReaderFunc(func(context.Context) (json.RawMessage, error) {
			return json.RawMessage(`{"user":{}}`), nil
		}))
		require.NoError(t, call(t.Context(), &out))
		assert.Equal(t, "Requesting account information:\nInformation: {\"user\":{}}\n", out.String())
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()

		errAPI := errors.New("http 500")
		call := session.TraktAccountInfo(accountReaderFunc(func(context.Context) (json.RawMessage, error) {
			return nil, errAPI
		}))
		require.ErrorIs(t, call(t.Context(), io.Discard), errAPI)
	})
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "disabled", session.Disabled.String())
	assert.Equal(t, "authorization failed", session.AuthorizationFailed.String())
	assert.Equal(t, "done", session.Done.String())
	assert.Equal(t, "State(42)", session.State(42).String())
}
