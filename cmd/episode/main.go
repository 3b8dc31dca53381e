// Package main contains the entry point of the binary that prints the
// summary of a single episode of a show.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/Nivl/trkt/internal/trakt"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const usage = "usage: episode <show-id-or-slug> <season> <number>"

var (
	errUsage         = errors.New(usage)
	errMissingAPIKey = errors.New("the TRAKT_KEY environment variable must be defined")
)

type appConfig struct {
	Trakt trakt.ClientConfig `env:",prefix=TRAKT_"`
}

type episodeRequest struct {
	show    string
	season  int
	episode int
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], envconfig.OsLookuper(), os.Stdout)
	cancel()
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		slog.ErrorContext(ctx, "something went wrong", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, lookuper envconfig.Lookuper, out io.Writer) (err error) {
	req, err := parseArgs(args)
	if err != nil {
		return err
	}

	var cfg appConfig
	if err = envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return fmt.Errorf("parse the env: %w", err)
	}
	if cfg.Trakt.ClientID == "" {
		return errMissingAPIKey
	}

	traktClient, err := trakt.NewClient(cfg.Trakt)
	if err != nil {
		return fmt.Errorf("create trakt client: %w", err)
	}

	episode, err := traktClient.Episode(ctx, req.show, req.season, req.episode)
	if err != nil {
		return fmt.Errorf("get episode: %w", err)
	}
	printEpisode(out, episode)
	return nil
}

func parseArgs(args []string) (*episodeRequest, error) {
	if len(args) != 3 || args[0] == "" {
		return nil, errUsage
	}
	season, err := strconv.Atoi(args[1])
	if err != nil || season < 0 {
		return nil, fmt.Errorf("invalid season %q: %w", args[1], errUsage)
	}
	number, err := strconv.Atoi(args[2])
	if err != nil || number < 1 {
		return nil, fmt.Errorf("invalid episode number %q: %w", args[2], errUsage)
	}
	return &episodeRequest{
		show:    args[0],
		season:  season,
		episode: number,
	}, nil
}

func printEpisode(out io.Writer, e *trakt.Episode) {
	fmt.Fprintf(out, "S%02dE%02d %s\n", e.Season, e.Number, e.Title)
	if e.FirstAired != nil {
		fmt.Fprintf(out, "First aired: %s\n", e.FirstAired.Format("2006-01-02"))
	}
	fmt.Fprintf(out, "Rating: %.1f (%d votes), %d comments\n", e.Rating, e.Votes, e.CommentCount)
	if e.Runtime > 0 {
		fmt.Fprintf(out, "Runtime: %d min\n", e.Runtime)
	}

	if tags := e.Translations(); len(tags) > 0 {
		namer := display.Tags(language.English)
		names := make([]string, 0, len(tags))
		for _, tag := range tags {
			names = append(names, namer.Name(tag))
		}
		fmt.Fprintf(out, "Translations: %s\n", strings.Join(names, ", "))
	}

	if e.Overview != "" {
		fmt.Fprintf(out, "\n%s\n", e.Overview)
	}
}
