// Package cmds holds the logging and flag plumbing shared by the autotag
// commands.
package cmds

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.senan.xyz/flagconf"

	"go.senan.xyz/autotag"
	"go.senan.xyz/autotag/distance"
	"go.senan.xyz/autotag/match"
)

func Logging() (exit func()) {
	var logLevel slog.LevelVar
	flag.TextVar(&logLevel, "log-level", &logLevel, "set the logging level")

	h := &slogErrorHandler{
		Handler: slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}),
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(slog.LevelError)

	return func() {
		if h.hadSlogError.Load() {
			os.Exit(1)
		}
		os.Exit(0)
	}
}

type slogErrorHandler struct {
	slog.Handler
	hadSlogError atomic.Bool
}

func (n *slogErrorHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level == slog.LevelError {
		n.hadSlogError.Store(true)
	}
	return n.Handler.Handle(ctx, r)
}

func Parse() {
	userConfig, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}

	defaultConfigPath := filepath.Join(userConfig, autotag.Name, "config")
	configPath := flag.String("config-path", defaultConfigPath, "path to config file")

	printVersion := flag.Bool("version", false, "print the version")
	printConfig := flag.Bool("config", false, "print the parsed config")

	flag.Parse()
	flagconf.ReadEnvPrefix = func(_ *flag.FlagSet) string { return autotag.Name }
	flagconf.ParseEnv()
	flagconf.ParseConfig(*configPath)

	if *printVersion {
		fmt.Printf("%s %s\n", flag.CommandLine.Name(), autotag.Version)
		os.Exit(0)
	}
	if *printConfig {
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("%-16s %s\n", f.Name, f.Value)
		})
		os.Exit(0)
	}
}

func Config() *autotag.Config {
	var cfg autotag.Config

	cfg.Weights = distance.DefaultWeights()
	flag.Var(&weightsParser{cfg.Weights}, "field-weight", "adjust distance weighting for a field. 0 to ignore (stackable)")

	cfg.Thresholds = match.DefaultThresholds()
	flag.Float64Var(&cfg.Thresholds.Strong, "strong-threshold", cfg.Thresholds.Strong, "max distance for a strong recommendation")
	flag.Float64Var(&cfg.Thresholds.Medium, "medium-threshold", cfg.Thresholds.Medium, "max distance for a medium recommendation")
	flag.Float64Var(&cfg.Thresholds.AmbiguityGap, "ambiguity-gap", cfg.Thresholds.AmbiguityGap, "max distance between candidates before both are surfaced")

	defaultUserAgent := fmt.Sprintf(`%s/%s ( https://go.senan.xyz/autotag )`, autotag.Name, autotag.Version)
	flag.StringVar(&cfg.MusicBrainz.BaseURL, "mb-base-url", `https://musicbrainz.org/ws/2/`, "musicbrainz base url")
	flag.DurationVar(&cfg.MusicBrainz.RateLimit, "mb-rate-limit", 1*time.Second, "musicbrainz rate limit duration")
	flag.StringVar(&cfg.MusicBrainz.UserAgent, "mb-user-agent", defaultUserAgent, "musicbrainz user agent")
	flag.IntVar(&cfg.MusicBrainz.SearchLimit, "mb-search-limit", 0, "max candidates to fetch per search. 0 for the default")

	flag.Var(&researchLinkParser{&cfg.ResearchLinks}, "research-link", "define a helper url to help find information about an unmatched release (stackable)")
	flag.Var(&notificationsParser{&cfg.Notifications}, "notification-uri", "add a shoutrrr notification uri for an event (stackable)")

	return &cfg
}
