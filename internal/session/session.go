// Package session runs an OAuth 2.0 session: it authenticates the
// user if needed, then performs one API call.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Nivl/trkt/internal/browser"
	"github.com/Nivl/trkt/internal/o11y"
	"github.com/Nivl/trkt/internal/redirect"
	"github.com/Nivl/trkt/internal/ui"
)

// DefaultTimeout is how long the user has to complete the
// authorization when no timeout is configured.
const DefaultTimeout = 5 * time.Minute

// Config contains the configuration of a session.
type Config struct {
	AuthTimeout time.Duration `env:"AUTH_TIMEOUT,default=5m"`
}

// State represents a step of a session.
type State int

// List of the steps of a session.
const (
	// Disabled means the session was skipped because the app has no
	// credentials.
	Disabled State = iota
	Unauthenticated
	Authorizing
	Authorized
	AuthorizationFailed
	CallingAPI
	Done
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Unauthenticated:
		return "unauthenticated"
	case Authorizing:
		return "authorizing"
	case Authorized:
		return "authorized"
	case AuthorizationFailed:
		return "authorization failed"
	case CallingAPI:
		return "calling API"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Client is the OAuth client of the provider.
type Client interface {
	redirect.Exchanger

	// IsConfigured returns true if the client has its credentials.
	IsConfigured() bool
	// IsAuthenticated returns true if the client has a valid token.
	IsAuthenticated() bool
	// AuthorizationURL returns a new URL to grant access to the app.
	AuthorizationURL() (string, error)
	// RedirectURI returns the URI the provider redirects to.
	RedirectURI() string
}

// APICall is the call made once the user is authenticated.
type APICall func(ctx context.Context, out io.Writer) error

// ListenFunc binds a redirect listener.
type ListenFunc func(ctx context.Context, redirectURI string, ex redirect.Exchanger) (Listener, error)

// Listener captures the redirect of the provider.
type Listener interface {
	Wait(ctx context.Context) (bool, error)
	Close(ctx context.Context) error
}

// Session runs the authorization code flow for a provider, and makes
// a call to its API.
type Session struct {
	name     string
	client   Client
	call     APICall
	opener   browser.Opener
	out      io.Writer
	reporter o11y.Reporter
	timeout  time.Duration
	listen   ListenFunc
}

// Option configures a Session.
type Option func(*Session)

// WithOpener sets the browser opener. Defaults to the system browser.
func WithOpener(o browser.Opener) Option {
	return func(s *Session) {
		s.opener = o
	}
}

// WithOutput sets where the messages for the user are printed.
// Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(s *Session) {
		s.out = w
	}
}

// WithReporter sets a reporter that gets notified of the result of
// the session.
func WithReporter(r o11y.Reporter) Option {
	return func(s *Session) {
		s.reporter = r
	}
}

// WithTimeout sets how long the user has to complete the
// authorization.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithListenFunc sets the function used to bind the redirect
// listener.
func WithListenFunc(fn ListenFunc) Option {
	return func(s *Session) {
		s.listen = fn
	}
}

// New returns a new session for the provided client.
func New(name string, client Client, call APICall, opts ...Option) *Session {
	s := &Session{
		name:    name,
		client:  client,
		call:    call,
		opener:  browser.System(),
		out:     os.Stdout,
		timeout: DefaultTimeout,
		listen: func(ctx context.Context, redirectURI string, ex redirect.Exchanger) (Listener, error) {
			return redirect.Listen(ctx, redirectURI, ex)
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run runs the session and returns the state it ended in.
// An error is only returned for failures that prevent the session
// from running, such as the listener not being able to bind, or the
// API call failing. A failed authorization is not an error.
func (s *Session) Run(ctx context.Context) (State, error) {
	if !s.client.IsConfigured() {
		fmt.Fprintf(s.out, "Skipped %s session sample because app key or secret is empty. Please see instructions.\n", s.name)
		return Disabled, nil
	}

	fmt.Fprintf(s.out, "Running %s session...\n", s.name)

	if !s.client.IsAuthenticated() {
		ok, err := s.authorize(ctx)
		if err != nil {
			return Unauthenticated, err
		}
		if !ok {
			fmt.Fprintf(s.out, "Authorization failed for %s.\n", s.name)
			s.report(ctx, fmt.Sprintf("%s: authorization failed", s.name))
			return AuthorizationFailed, nil
		}
		slog.DebugContext(ctx, "session state changed", "session", s.name, "state", Authorized)
		s.report(ctx, fmt.Sprintf("%s: authorization succeeded", s.name))
	}

	slog.DebugContext(ctx, "session state changed", "session", s.name, "state", CallingAPI)
	if err := s.call(ctx, s.out); err != nil {
		return CallingAPI, fmt.Errorf("call %s API: %w", s.name, err)
	}
	return Done, nil
}

// authorize runs the authorization code flow.
// Returns an error if the flow could not be started.
func (s *Session) authorize(ctx context.Context) (ok bool, err error) {
	listener, err := s.listen(ctx, s.client.RedirectURI(), s.client)
	if err != nil {
		return false, fmt.Errorf("start redirect listener: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if e := listener.Close(closeCtx); e != nil {
			slog.WarnContext(ctx, "could not close the redirect listener", "error", e)
		}
	}()

	authURL, err := s.client.AuthorizationURL()
	if err != nil {
		return false, fmt.Errorf("build authorization URL: %w", err)
	}

	slog.DebugContext(ctx, "session state changed", "session", s.name, "state", Authorizing)
	ok, err = ui.Authenticate(ctx, s.out, s.opener, authURL, listener, s.timeout)
	switch {
	case errors.Is(err, ui.ErrTimeout):
		fmt.Fprintln(s.out, err.Error())
		return false, nil
	case err != nil:
		return false, fmt.Errorf("wait for authorization: %w", err)
	}
	return ok, nil
}

func (s *Session) report(ctx context.Context, msg string) {
	if s.reporter != nil {
		s.reporter.SendMessage(ctx, msg)
	}
}
