// Package redirect contains a local HTTP listener that captures the
// OAuth 2.0 redirect sent by the provider once the user granted access.
package redirect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Exchanger converts the redirected URI into a token.
//
//go:generate mockgen -destination=../mocks/exchanger.go -package=mocks github.com/Nivl/trkt/internal/redirect Exchanger
type Exchanger interface {
	TokenFromRedirect(ctx context.Context, redirected *url.URL) error
}

// Listener captures exactly one OAuth redirect and resolves its
// Outcome with the result of the token exchange.
type Listener struct {
	path      string
	exchanger Exchanger
	outcome   *Outcome
	engine    *gin.Engine

	// exchangeOnce guarantees that a single redirect triggers the
	// token exchange.
	exchangeOnce sync.Once
	exchanges    sync.WaitGroup

	// ctx is passed to the exchanges, cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	srv       *http.Server
	ln        net.Listener
	closeOnce sync.Once
	closeErr  error
}

// New returns a Listener handling the path of redirectURI.
// The Listener is not bound to any address; use Listen for that,
// or serve Handler() yourself.
func New(redirectURI string, ex Exchanger) (*Listener, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect URI: %w", err)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		path:      path,
		exchanger: ex,
		outcome:   NewOutcome(),
		ctx:       ctx,
		cancel:    cancel,
	}

	l.engine = gin.New()
	// Any path other than the redirect one is a 404
	l.engine.RedirectTrailingSlash = false
	l.engine.RedirectFixedPath = false
	l.engine.GET(path, l.handleRedirect)
	l.engine.NoRoute(notFound)
	return l, nil
}

// Listen creates a Listener and binds it to the host and port of
// redirectURI. An error is returned if the address cannot be bound.
// The caller must call Close once done.
func Listen(ctx context.Context, redirectURI string, ex Exchanger) (*Listener, error) {
	l, err := New(redirectURI, ex)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect URI: %w", err)
	}
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), "80")
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		l.cancel()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	l.ln = ln
	l.srv = &http.Server{
		Handler:           l.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "redirect listener stopped", "error", err)
		}
	}()
	slog.DebugContext(ctx, "redirect listener started", "addr", ln.Addr().String(), "path", l.path)
	return l, nil
}

// Handler returns the HTTP handler of the listener.
func (l *Listener) Handler() http.Handler {
	return l.engine
}

// Addr returns the address the listener is bound to, or nil if it
// isn't bound.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Outcome returns the pending authorization of the listener.
func (l *Listener) Outcome() *Outcome {
	return l.outcome
}

// Wait blocks until the authorization is resolved or ctx is done.
// See Outcome.Wait.
func (l *Listener) Wait(ctx context.Context) (bool, error) {
	return l.outcome.Wait(ctx)
}

// Close stops accepting requests and waits for the in-flight token
// exchange. If ctx ends before it's done, or if the outcome was already
// resolved as failed, the exchange is cancelled.
// Close is idempotent.
func (l *Listener) Close(ctx context.Context) error {
	l.closeOnce.Do(func() {
		if l.srv != nil {
			if err := l.srv.Shutdown(ctx); err != nil {
				l.closeErr = fmt.Errorf("shutdown server: %w", err)
			}
		}

		drained := make(chan struct{})
		go func() {
			l.exchanges.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			l.cancel()
			<-drained
		}
		l.cancel()
		l.outcome.Resolve(false)
	})
	return l.closeErr
}

func (l *Listener) handleRedirect(c *gin.Context) {
	redirected := *c.Request.URL
	if !isRedirect(redirected.Query()) {
		notFound(c)
		return
	}

	l.exchangeOnce.Do(func() {
		l.exchanges.Add(1)
		go func() {
			defer l.exchanges.Done()
			l.exchange(&redirected)
		}()
	})

	// The browser gets its answer without waiting for the exchange
	c.String(http.StatusOK, "Ok.")
}

func (l *Listener) exchange(redirected *url.URL) {
	ctx, cancel := context.WithCancel(l.ctx)
	defer cancel()

	// The exchange is abandoned once the outcome is settled, which
	// happens when the wait timed out
	go func() {
		select {
		case <-l.outcome.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := l.exchanger.TokenFromRedirect(ctx, redirected); err != nil {
		slog.ErrorContext(ctx, "token exchange failed", "error", err)
		l.outcome.Resolve(false)
		return
	}
	l.outcome.Resolve(true)
}

// isRedirect returns true if query looks like an answer from the
// provider: a state along with either a code or an error.
func isRedirect(query url.Values) bool {
	if query.Get("state") == "" {
		return false
	}
	return query.Get("code") != "" || query.Get("error") != ""
}

func notFound(c *gin.Context) {
	c.String(http.StatusNotFound, "Not found.")
}
