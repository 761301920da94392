// Package autotag matches a locally observed release against authoritative
// candidates from MusicBrainz and recommends the best fit. The heavy
// lifting lives in the distance, assign and match packages, which are pure,
// this package is the glue that fetches candidates and hands them over.
package autotag

import (
	"context"
	"errors"
	"fmt"

	"go.senan.xyz/autotag/distance"
	"go.senan.xyz/autotag/match"
	"go.senan.xyz/autotag/musicbrainz"
	"go.senan.xyz/autotag/notifications"
	"go.senan.xyz/autotag/release"
	"go.senan.xyz/autotag/researchlink"
)

var ErrNoMatch = errors.New("no match or score too low")

// Config is read only once a match is in flight. Reloading swaps in a new
// value, it never mutates one mid match.
type Config struct {
	Weights       distance.Weights
	Thresholds    match.Thresholds
	MusicBrainz   musicbrainz.MBClient
	ResearchLinks researchlink.Builder
	Notifications notifications.Notifications
}

// IdentifyRelease searches the catalog with whatever the observed tags give
// us and ranks the candidates. useMBID, when set, bypasses the search and
// matches against that exact release. A search with no usable results is
// ErrNoMatch, not an empty ranking, so callers can tell "catalog had
// nothing" apart from "catalog had only bad options".
func IdentifyRelease(ctx context.Context, cfg *Config, obs *release.Release, useMBID string) ([]match.Result, error) {
	if err := obs.Validate(); err != nil {
		return nil, fmt.Errorf("validate observed release: %w", err)
	}

	var query musicbrainz.ReleaseQuery
	query.MBReleaseID = obs.ID
	query.Release = obs.Title
	query.Artist = obs.ArtistCredit
	query.Year = obs.Year
	query.Format = obs.MediaFormat
	query.Label = obs.Label
	query.CatalogueNum = obs.CatalogueNum
	query.NumTracks = len(obs.Tracks)

	for _, artist := range obs.Artists {
		query.MBArtistID = artist.ID
		break
	}

	if useMBID != "" {
		query.MBReleaseID = useMBID
	}

	mbReleases, err := cfg.MusicBrainz.SearchReleases(ctx, query)
	if errors.Is(err, musicbrainz.ErrNoResults) {
		return nil, fmt.Errorf("%w: search returned nothing", ErrNoMatch)
	}
	if err != nil {
		return nil, fmt.Errorf("search releases: %w", err)
	}

	candidates := make([]*release.Release, 0, len(mbReleases))
	for _, mbRelease := range mbReleases {
		candidates = append(candidates, release.FromMusicBrainz(mbRelease))
	}

	results, err := match.Rank(cfg.Weights, cfg.Thresholds, obs, candidates)
	if err != nil {
		return nil, fmt.Errorf("rank candidates: %w", err)
	}
	return results, nil
}
