// Package main contains the entry point of the binary that authenticates
// the user with Trakt and prints their account information.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Nivl/trkt/internal/browser"
	"github.com/Nivl/trkt/internal/session"
	"github.com/Nivl/trkt/internal/slack"
	"github.com/Nivl/trkt/internal/trakt"
	"github.com/gin-gonic/gin"
	"github.com/sethvargo/go-envconfig"
)

const (
	exitFailure       = 1
	exitMissingConfig = 2
)

// errMissingCredentials is returned when the Trakt app credentials are
// not set.
var errMissingCredentials = errors.New("both TRAKT_KEY and TRAKT_SECRET environment variables must be defined")

type appConfig struct {
	Trakt   trakt.ClientConfig `env:",prefix=TRAKT_"`
	Session session.Config     `env:",prefix=TRAKT_"`
	Slack   slack.Config       `env:",prefix=SLACK_"`
}

func main() {
	gin.SetMode(gin.ReleaseMode)
	os.Exit(exitCode(envconfig.OsLookuper(), os.Stdout, os.Stderr, browser.System()))
}

// exitCode runs the app and returns the status the process should
// exit with.
func exitCode(lookuper envconfig.Lookuper, stdout, stderr io.Writer, opener browser.Opener) (code int) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "unknown failure", "panic", r)
			code = exitFailure
		}
	}()

	err := run(ctx, lookuper, stdout, opener)
	switch {
	case errors.Is(err, errMissingCredentials):
		fmt.Fprintf(stderr, "[ERROR] Both TRAKT_KEY and TRAKT_SECRET environment variables must be defined\n")
		return exitMissingConfig
	case err != nil:
		slog.ErrorContext(ctx, "something went wrong", "error", err.Error())
		return exitFailure
	}
	return 0
}

func run(ctx context.Context, lookuper envconfig.Lookuper, out io.Writer, opener browser.Opener) (err error) {
	var cfg appConfig
	if err = envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return fmt.Errorf("parse the env: %w", err)
	}

	if cfg.Trakt.ClientID == "" || cfg.Trakt.ClientSecret.IsEmpty() {
		return errMissingCredentials
	}

	traktClient, err := trakt.NewClient(cfg.Trakt)
	if err != nil {
		return fmt.Errorf("create trakt client: %w", err)
	}

	s := session.New("Trakt", traktClient, session.TraktAccountInfo(traktClient),
		session.WithOpener(opener),
		session.WithOutput(out),
		session.WithReporter(slack.NewClient(cfg.Slack)),
		session.WithTimeout(cfg.Session.AuthTimeout),
	)
	state, err := s.Run(ctx)
	if err != nil {
		return fmt.Errorf("run session: %w", err)
	}
	slog.DebugContext(ctx, "session ended", "state", state)
	return nil
}
