// Package browser opens URLs in the user's default browser.
package browser

import (
	"io"
	"sync"

	"github.com/pkg/browser"
)

// Opener opens a URL in a browser.
//
//go:generate mockgen -destination=../mocks/opener.go -package=mocks github.com/Nivl/trkt/internal/browser Opener
type Opener interface {
	Open(url string) error
}

// OpenerFunc is an adapter to allow the use of ordinary functions
// as Opener.
type OpenerFunc func(url string) error

// Open calls f(url).
func (f OpenerFunc) Open(url string) error {
	return f(url)
}

// System returns an Opener that uses the platform's mechanism
// (xdg-open, open, or rundll32) to open the URL.
// The output of the helper process is discarded.
func System() Opener {
	silenceOnce.Do(func() {
		browser.Stdout = io.Discard
		browser.Stderr = io.Discard
	})
	return OpenerFunc(browser.OpenURL)
}

var silenceOnce sync.Once
