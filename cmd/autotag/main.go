package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.senan.xyz/table/table"

	"go.senan.xyz/autotag"
	"go.senan.xyz/autotag/cmd/internal/cmds"
	"go.senan.xyz/autotag/match"
	"go.senan.xyz/autotag/notifications"
	"go.senan.xyz/autotag/release"
	"go.senan.xyz/autotag/researchlink"
)

var dmp = diffmatchpatch.New()

func main() {
	defer cmds.Logging()()
	cfg := cmds.Config()

	useMBID := flag.String("mbid", "", "match against this release mbid instead of searching")
	cmds.Parse()

	path := flag.Arg(0)
	if path == "" {
		slog.Error("usage: autotag [<options>] <release.json>")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	obs, err := readRelease(path)
	if err != nil {
		slog.Error("read release", "path", path, "err", err)
		return
	}

	results, err := autotag.IdentifyRelease(ctx, cfg, obs, *useMBID)
	if err != nil && !errors.Is(err, autotag.ErrNoMatch) {
		slog.Error("identify release", "err", err)
		return
	}

	if errors.Is(err, autotag.ErrNoMatch) || len(results) == 0 || results[0].Rec == match.RecNone {
		printResearchLinks(&cfg.ResearchLinks, obs)
		cfg.Notifications.Sendf(ctx, notifications.NeedsReview, "no match for %s – %s", obs.ArtistCredit, obs.Title)
		slog.Error("no confident match", "release", obs.Title)
		return
	}

	printRanking(results)

	best := results[0]
	fmt.Println()
	printDetail(obs, best)

	if best.Ambiguous {
		printResearchLinks(&cfg.ResearchLinks, obs)
		cfg.Notifications.Sendf(ctx, notifications.NeedsReview, "ambiguous match for %s – %s", obs.ArtistCredit, obs.Title)
		slog.Warn("multiple candidates are too close to call", "release", obs.Title)
		return
	}

	cfg.Notifications.Sendf(ctx, notifications.MatchFound, "matched %s – %s (%s)", obs.ArtistCredit, obs.Title, best.Release.ID)
}

func printRanking(results []match.Result) {
	t := table.NewStringWriter()
	fmt.Fprintf(t, "dist\trec\trelease\turl\n")
	for _, r := range results {
		var marker string
		if r.Ambiguous {
			marker = " (ambiguous)"
		}
		fmt.Fprintf(t, "%.3f\t%s%s\t%s – %s (%d)\thttps://musicbrainz.org/release/%s\n",
			r.Dist, r.Rec, marker,
			r.Release.ArtistCredit, r.Release.Title, r.Release.Year,
			r.Release.ID)
	}
	for _, row := range strings.Split(strings.TrimRight(t.String(), "\n"), "\n") {
		fmt.Println(row)
	}
}

func printDetail(obs *release.Release, r match.Result) {
	for _, cost := range r.Costs {
		if cost.Dist == 0 {
			continue
		}
		fmt.Println(cost)
	}
	if missing := r.Release.MissingFields(); len(missing) > 0 {
		fmt.Printf("catalog left blank: %s\n", strings.Join(missing, ", "))
	}

	t := table.NewStringWriter()
	for i, j := range r.Mapping {
		ours := fmt.Sprintf("%s – %s", obs.Tracks[i].ArtistCredit, obs.Tracks[i].Title)
		if j < 0 {
			fmt.Fprintf(t, "%02d\t%s\t%s\n", i+1, ours, "[no candidate track]")
			continue
		}
		theirs := fmt.Sprintf("%s – %s", r.Release.Tracks[j].ArtistCredit, r.Release.Tracks[j].Title)
		fmt.Fprintf(t, "%02d\t%s\t%s\n", i+1, ours, fmtDiff(ours, theirs))
	}
	for _, row := range strings.Split(strings.TrimRight(t.String(), "\n"), "\n") {
		fmt.Println(row)
	}
}

func printResearchLinks(builder *researchlink.Builder, obs *release.Release) {
	links, err := builder.Build(researchlink.Query{
		Artist: obs.ArtistCredit,
		Album:  obs.Title,
		Year:   obs.Year,
	})
	if err != nil {
		slog.Warn("build research links", "err", err)
	}
	for _, link := range links {
		fmt.Printf("research %q: %s\n", link.Name, link.URL)
	}
}

func fmtDiff(before, after string) string {
	if d := dmp.DiffPrettyText(dmp.DiffMain(before, after, false)); d != "" {
		return d
	}
	return "[empty]"
}

// The observed release comes in as JSON, whatever read the actual file tags
// is somebody else's job.
type inputRelease struct {
	MBID         string       `json:"mbid"`
	Album        string       `json:"album"`
	AlbumArtist  string       `json:"album_artist"`
	Year         int          `json:"year"`
	Label        string       `json:"label"`
	CatalogueNum string       `json:"catalogue_num"`
	MediaFormat  string       `json:"media_format"`
	Discs        int          `json:"discs"`
	Tracks       []inputTrack `json:"tracks"`
}

type inputTrack struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Track      int     `json:"track"`
	Disc       int     `json:"disc"`
	LengthSecs float64 `json:"length_secs"`
}

func readRelease(path string) (*release.Release, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var in inputRelease
	if err := json.NewDecoder(f).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	r := release.Release{
		ID:           in.MBID,
		Title:        in.Album,
		ArtistCredit: in.AlbumArtist,
		Year:         in.Year,
		Label:        in.Label,
		CatalogueNum: in.CatalogueNum,
		MediaFormat:  in.MediaFormat,
		Mediums:      in.Discs,
	}
	for _, t := range in.Tracks {
		r.Tracks = append(r.Tracks, release.Track{
			Title:        t.Title,
			ArtistCredit: t.Artist,
			Index:        t.Track,
			Medium:       t.Disc,
			Length:       time.Duration(t.LengthSecs * float64(time.Second)),
		})
	}
	return &r, nil
}
