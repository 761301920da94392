// Package match scores candidate releases against an observed release and
// ranks them into an explainable recommendation.
package match

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"go.senan.xyz/natcmp"
	"golang.org/x/sync/errgroup"

	"go.senan.xyz/autotag/assign"
	"go.senan.xyz/autotag/distance"
	"go.senan.xyz/autotag/release"
)

type Recommendation int

const (
	RecNone Recommendation = iota
	RecMedium
	RecStrong
)

func (r Recommendation) String() string {
	switch r {
	case RecStrong:
		return "strong"
	case RecMedium:
		return "medium"
	}
	return "none"
}

// Thresholds classify an aggregate distance and decide when two candidates
// are too close to call.
type Thresholds struct {
	Strong       float64
	Medium       float64
	AmbiguityGap float64
}

// DefaultThresholds are a tuning decision, not an architectural one. These
// sit where false strong matches stay rare on real catalogs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Strong:       0.04,
		Medium:       0.25,
		AmbiguityGap: 0.05,
	}
}

func (t Thresholds) Recommend(dist float64) Recommendation {
	switch {
	case dist <= t.Strong:
		return RecStrong
	case dist <= t.Medium:
		return RecMedium
	}
	return RecNone
}

const (
	// track lengths within the grace period cost nothing, then the cost
	// ramps up to 1 at the max
	trackLengthGrace = 10 * time.Second
	trackLengthMax   = 30 * time.Second

	yearScale = 5

	// noMatchCost pads the assignment matrix where one side has no
	// counterpart. Above any real pairing cost so real pairs always win.
	noMatchCost = 2.0
)

// Result is one ranked candidate. Immutable once produced.
type Result struct {
	Release   *release.Release
	Mapping   []int // observed track index to candidate track index, -1 when unmatched
	Dist      float64
	Costs     []distance.Penalty
	Rec       Recommendation
	Ambiguous bool // within the ambiguity gap of another candidate
}

// TrackDistance compares one observed track against one candidate track.
// On compilations the per track artists carry the comparison, the release
// level artist is skipped by ReleaseDistance instead.
func TrackDistance(weights distance.Weights, obs, cand release.Track, multiDisc bool) *distance.Distance {
	d := distance.New(weights)

	d.AddString("track title", obs.Title, cand.Title)

	if obs.ArtistCredit != "" && cand.ArtistCredit != "" {
		d.AddString("track artist", obs.ArtistCredit, cand.ArtistCredit)
	}
	if obs.Index != 0 && cand.Index != 0 {
		d.AddBool("track index", obs.Index != cand.Index)
	}
	if obs.Length != 0 && cand.Length != 0 {
		diff := max(obs.Length, cand.Length) - min(obs.Length, cand.Length)
		diff = max(diff-trackLengthGrace, 0)
		d.AddRatio("track length", diff.Seconds(), trackLengthMax.Seconds())
	}
	if multiDisc && obs.Medium != 0 && cand.Medium != 0 {
		d.AddBool("disc", obs.Medium != cand.Medium)
	}
	if obs.ID != "" && cand.ID != "" {
		d.AddBool("track id", obs.ID != cand.ID)
	}

	return d
}

// ReleaseDistance combines the release level field costs with the optimal
// track pairing. The returned mapping takes observed track index to
// candidate track index, -1 for unmatched, and is injective both ways.
func ReleaseDistance(weights distance.Weights, obs, cand *release.Release) (*distance.Distance, []int) {
	d := distance.New(weights)

	d.AddString("album", obs.Title, cand.Title)
	if !cand.VariousArtists {
		d.AddString("artist", obs.ArtistCredit, cand.ArtistCredit)
	}
	if obs.Year != 0 && cand.Year != 0 {
		d.AddRatio("year", float64(obs.Year-cand.Year), yearScale)
	}
	if obs.Label != "" && cand.Label != "" {
		d.AddString("label", obs.Label, cand.Label)
	}
	if obs.CatalogueNum != "" && cand.CatalogueNum != "" {
		d.AddString("catalogue num", obs.CatalogueNum, cand.CatalogueNum)
	}
	if obs.MediaFormat != "" && cand.MediaFormat != "" {
		d.AddString("media format", obs.MediaFormat, cand.MediaFormat)
	}
	if obs.Mediums != 0 && cand.Mediums != 0 {
		d.AddRatio("mediums", float64(obs.Mediums-cand.Mediums), float64(cand.Mediums))
	}

	mapping, reverse, pairs := assignTracks(weights, obs, cand)

	for i, j := range mapping {
		if j < 0 {
			d.Add("unmatched tracks", 1) // we have a track the candidate doesn't
			continue
		}
		d.Add("tracks", pairs[i][j].Dist())
	}
	for _, i := range reverse {
		if i < 0 {
			d.Add("missing tracks", 1) // the candidate has a track we don't
		}
	}

	return d, mapping
}

// assignTracks builds the full pairwise cost matrix and solves the optimal
// assignment. Greedy or positional pairing fails on reordered or partially
// missing track lists, so this always goes through the solver.
func assignTracks(weights distance.Weights, obs, cand *release.Release) (mapping, reverse []int, pairs [][]*distance.Distance) {
	multiDisc := cand.Mediums > 1

	pairs = make([][]*distance.Distance, len(obs.Tracks))
	costs := make([][]float64, len(obs.Tracks))
	for i, ot := range obs.Tracks {
		pairs[i] = make([]*distance.Distance, len(cand.Tracks))
		costs[i] = make([]float64, len(cand.Tracks))
		for j, ct := range cand.Tracks {
			pairs[i][j] = TrackDistance(weights, ot, ct, multiDisc)
			costs[i][j] = pairs[i][j].Dist()
		}
	}

	mapping, reverse = assign.Assign(costs, noMatchCost)
	return mapping, reverse, pairs
}

// Rank scores every candidate against the observed release and returns them
// ordered best first, distance ascending. Candidates within the ambiguity
// gap of the best are ordered by catalog search score, then identifier, and
// flagged so a human can pick. An empty candidate list ranks to an empty
// result, not an error.
func Rank(weights distance.Weights, thresholds Thresholds, obs *release.Release, candidates []*release.Release) ([]Result, error) {
	if err := obs.Validate(); err != nil {
		return nil, fmt.Errorf("observed release: %w", err)
	}
	for _, cand := range candidates {
		if err := cand.Validate(); err != nil {
			return nil, fmt.Errorf("candidate %q: %w", cand.ID, err)
		}
	}

	results := make([]Result, len(candidates))

	var wg errgroup.Group
	for i, cand := range candidates {
		wg.Go(func() error {
			d, mapping := ReleaseDistance(weights, obs, cand)
			results[i] = Result{
				Release: cand,
				Mapping: mapping,
				Dist:    d.Dist(),
				Costs:   d.Items(),
			}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		if c := cmp.Compare(a.Dist, b.Dist); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Release.SearchScore, a.Release.SearchScore); c != 0 {
			return c
		}
		return natcmp.Compare(a.Release.ID, b.Release.ID)
	})

	// candidates within the gap of the best are too close to call. let the
	// catalog's own relevance order that leading band, and flag all of it
	// for a human
	band := 1
	for band < len(results) && results[band].Dist-results[0].Dist <= thresholds.AmbiguityGap {
		band++
	}
	if band > 1 {
		slices.SortStableFunc(results[:band], func(a, b Result) int {
			if c := cmp.Compare(b.Release.SearchScore, a.Release.SearchScore); c != 0 {
				return c
			}
			return natcmp.Compare(a.Release.ID, b.Release.ID)
		})
		for i := range band {
			results[i].Ambiguous = true
		}
	}

	for i := range results {
		results[i].Rec = thresholds.Recommend(results[i].Dist)
	}

	return results, nil
}
