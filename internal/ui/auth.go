// Package ui contains the interactions with the user.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Nivl/trkt/internal/browser"
)

// ErrTimeout is returned when the user didn't complete the
// authentication in time.
var ErrTimeout = errors.New("authentication timed out. Please try again")

// Pending represents an authorization waiting for the user.
type Pending interface {
	Wait(ctx context.Context) (bool, error)
}

// Authenticate prompts the user to authenticate using the provided
// authorization URL, and waits for the authorization to complete.
// The browser is opened on a best-effort basis: the URL is printed
// so the user can open it manually.
//
// Returns false with ErrTimeout if the user didn't complete the flow
// within timeout.
func Authenticate(ctx context.Context, out io.Writer, opener browser.Opener, authURL string, pending Pending, timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fmt.Fprintf(out, "Opening browser in URI:\n%s\n", authURL)
	if opener != nil {
		if err := opener.Open(authURL); err != nil {
			slog.WarnContext(ctx, "could not open the browser", "error", err)
		}
	}
	fmt.Fprintf(out, "You have %d seconds to complete the authentication...\n", int(timeout.Seconds()))

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := pending.Wait(ctx)
		done <- result{ok: ok, err: err}
	}()

	tickerSecond := time.NewTicker(1 * time.Second)
	defer tickerSecond.Stop()
	count := int(timeout.Seconds())

	for {
		select {
		case <-tickerSecond.C:
			count--
			fmt.Fprintf(out, "\r\033[2K%d", count)
		case res := <-done:
			fmt.Fprint(out, "\r\033[2K")
			if errors.Is(res.err, context.DeadlineExceeded) && !res.ok {
				return false, ErrTimeout
			}
			if res.err != nil {
				return false, res.err
			}
			return res.ok, nil
		}
	}
}
