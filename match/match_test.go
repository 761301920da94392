package match

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.senan.xyz/autotag/distance"
	"go.senan.xyz/autotag/release"
)

func testRelease(id string, titles ...string) *release.Release {
	r := &release.Release{
		ID:           id,
		Title:        "Some Album",
		ArtistCredit: "Some Artist",
		Year:         1994,
		Mediums:      1,
	}
	for i, title := range titles {
		r.Tracks = append(r.Tracks, release.Track{
			Title:        title,
			ArtistCredit: "Some Artist",
			Index:        i + 1,
			Medium:       1,
			Length:       time.Duration(180+10*i) * time.Second,
		})
	}
	return r
}

func tenTitles() []string {
	var titles []string
	for i := 1; i <= 10; i++ {
		titles = append(titles, fmt.Sprintf("Track Number %d", i))
	}
	return titles
}

func TestIdenticalReleaseIsStrong(t *testing.T) {
	obs := testRelease("", tenTitles()...)
	cand := testRelease("mbid-1", tenTitles()...)

	results, err := Rank(distance.DefaultWeights(), DefaultThresholds(), obs, []*release.Release{cand})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Zero(t, r.Dist)
	assert.Equal(t, RecStrong, r.Rec)
	assert.False(t, r.Ambiguous)
	for i, j := range r.Mapping {
		assert.Equal(t, i, j)
	}
}

func TestMissingTrackStillPairsByContent(t *testing.T) {
	// the observed rip is missing track 7 and was renumbered, so tracks 8
	// to 10 sit at positions 7 to 9. content should still pair every
	// surviving track with its real counterpart
	titles := []string{
		"Airbag", "Paranoid Android", "Subterranean Homesick Alien",
		"Exit Music (For a Film)", "Let Down", "Karma Police",
		"Fitter Happier", "Electioneering", "Climbing Up the Walls",
		"No Surprises",
	}
	cand := testRelease("mbid-1", titles...)

	obs := testRelease("", append(append([]string{}, titles[:6]...), titles[7:]...)...)
	// keep the true lengths so the surviving tracks still look like
	// themselves
	for i := 6; i < 9; i++ {
		obs.Tracks[i].Length = cand.Tracks[i+1].Length
	}

	d, mapping := ReleaseDistance(distance.DefaultWeights(), obs, cand)
	require.Len(t, mapping, 9)

	want := []int{0, 1, 2, 3, 4, 5, 7, 8, 9}
	assert.Equal(t, want, mapping)

	// one candidate track has no counterpart, exactly one missing penalty
	var missing int
	for _, p := range d.Items() {
		if p.Key == "missing tracks" {
			missing++
		}
	}
	assert.Equal(t, 1, missing)

	// incomplete but otherwise correct should never drop to none
	rec := DefaultThresholds().Recommend(d.Dist())
	assert.NotEqual(t, RecNone, rec)
}

func TestExtraObservedTrackUnmatched(t *testing.T) {
	titles := tenTitles()
	obs := testRelease("", append(append([]string{}, titles...), "Hidden Bonus Jam")...)
	cand := testRelease("mbid-1", titles...)

	d, mapping := ReleaseDistance(distance.DefaultWeights(), obs, cand)
	require.Len(t, mapping, 11)
	assert.Equal(t, -1, mapping[10])

	var unmatched int
	for _, p := range d.Items() {
		if p.Key == "unmatched tracks" {
			unmatched++
		}
	}
	assert.Equal(t, 1, unmatched)
}

func TestCandidateOrderInvariant(t *testing.T) {
	// permuting the candidate track list must not change the aggregate,
	// pairing is by content not position
	titles := tenTitles()
	obs := testRelease("", titles...)

	shuffled := testRelease("mbid-1", titles[5], titles[2], titles[9], titles[0], titles[7],
		titles[1], titles[8], titles[3], titles[6], titles[4])
	straight := testRelease("mbid-1", titles...)
	for _, cand := range []*release.Release{shuffled, straight} {
		for i := range cand.Tracks {
			cand.Tracks[i].Index = 0 // unknown positions, titles carry it
			cand.Tracks[i].Length = 0
		}
	}

	a, _ := ReleaseDistance(distance.DefaultWeights(), obs, straight)
	b, _ := ReleaseDistance(distance.DefaultWeights(), obs, shuffled)
	assert.InDelta(t, a.Dist(), b.Dist(), 1e-9)
}

func TestAmbiguousCandidates(t *testing.T) {
	titles := tenTitles()
	obs := testRelease("", titles...)

	orig := testRelease("mbid-b", titles...)
	orig.SearchScore = 90
	reissue := testRelease("mbid-a", titles...)
	reissue.Year = 1995
	reissue.SearchScore = 100

	results, err := Rank(distance.DefaultWeights(), DefaultThresholds(), obs, []*release.Release{orig, reissue})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// both within the gap, both flagged, higher search score first
	assert.True(t, results[0].Ambiguous)
	assert.True(t, results[1].Ambiguous)
	assert.Equal(t, "mbid-a", results[0].Release.ID)
	assert.Equal(t, "mbid-b", results[1].Release.ID)
}

func TestAmbiguousTieBreakByID(t *testing.T) {
	titles := tenTitles()
	obs := testRelease("", titles...)

	c1 := testRelease("mbid-10", titles...)
	c2 := testRelease("mbid-2", titles...)

	results, err := Rank(distance.DefaultWeights(), DefaultThresholds(), obs, []*release.Release{c1, c2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// natural order, 2 before 10
	assert.Equal(t, "mbid-2", results[0].Release.ID)
	assert.Equal(t, "mbid-10", results[1].Release.ID)
}

func TestRankNearTieChain(t *testing.T) {
	// a chain of adjacent near ties, distances stepping just inside the
	// gap while search scores run the other way. only the band around the
	// best is up for grabs, the clearly worse candidate stays last no
	// matter the input order
	obs := testRelease("")

	a := testRelease("mbid-a") // same year, perfect
	b := testRelease("mbid-b")
	b.Year = obs.Year + 1
	b.SearchScore = 100
	c := testRelease("mbid-c")
	c.Year = obs.Year + 2
	c.SearchScore = 200

	th := Thresholds{Strong: 0.01, Medium: 0.03, AmbiguityGap: 0.03}

	for _, candidates := range [][]*release.Release{
		{c, b, a},
		{a, b, c},
		{b, c, a},
	} {
		results, err := Rank(distance.DefaultWeights(), th, obs, candidates)
		require.NoError(t, err)
		require.Len(t, results, 3)

		// a and b are too close to call, b wins on search score. c is
		// outside the gap of the best and stays at the bottom on
		// distance alone, its high search score doesn't save it
		assert.Equal(t, "mbid-b", results[0].Release.ID)
		assert.Equal(t, "mbid-a", results[1].Release.ID)
		assert.Equal(t, "mbid-c", results[2].Release.ID)

		assert.True(t, results[0].Ambiguous)
		assert.True(t, results[1].Ambiguous)
		assert.False(t, results[2].Ambiguous)

		assert.Equal(t, RecMedium, results[0].Rec)
		assert.Equal(t, RecStrong, results[1].Rec)
		assert.Equal(t, RecNone, results[2].Rec)
	}
}

func TestRankOrdering(t *testing.T) {
	titles := tenTitles()
	obs := testRelease("", titles...)

	good := testRelease("mbid-good", titles...)
	bad := testRelease("mbid-bad", titles...)
	bad.Title = "A Very Different Compilation"
	bad.ArtistCredit = "Nobody You Know"
	for i := range bad.Tracks {
		bad.Tracks[i].Title = fmt.Sprintf("Unrelated Song %d", i+1)
		bad.Tracks[i].ArtistCredit = "Nobody You Know"
	}

	results, err := Rank(distance.DefaultWeights(), DefaultThresholds(), obs, []*release.Release{bad, good})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "mbid-good", results[0].Release.ID)
	assert.Less(t, results[0].Dist, results[1].Dist)
	assert.Equal(t, RecStrong, results[0].Rec)
}

func TestRankEmptyCandidates(t *testing.T) {
	obs := testRelease("", tenTitles()...)
	results, err := Rank(distance.DefaultWeights(), DefaultThresholds(), obs, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRankDeterministic(t *testing.T) {
	titles := tenTitles()
	obs := testRelease("", titles...)
	candidates := []*release.Release{
		testRelease("mbid-1", titles...),
		testRelease("mbid-2", titles[:8]...),
		testRelease("mbid-3", titles[2:]...),
	}

	first, err := Rank(distance.DefaultWeights(), DefaultThresholds(), obs, candidates)
	require.NoError(t, err)
	for range 5 {
		again, err := Rank(distance.DefaultWeights(), DefaultThresholds(), obs, candidates)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for i := range first {
			assert.Equal(t, first[i].Release.ID, again[i].Release.ID)
			assert.Equal(t, first[i].Dist, again[i].Dist)
			assert.Equal(t, first[i].Mapping, again[i].Mapping)
		}
	}
}

func TestRankValidatesInput(t *testing.T) {
	obs := testRelease("", "One")
	obs.Tracks[0].Index = -1
	_, err := Rank(distance.DefaultWeights(), DefaultThresholds(), obs, nil)
	assert.ErrorIs(t, err, release.ErrInvalidInput)

	obs = testRelease("", "One")
	cand := testRelease("mbid-1", "One")
	cand.Year = -1994
	_, err = Rank(distance.DefaultWeights(), DefaultThresholds(), obs, []*release.Release{cand})
	assert.ErrorIs(t, err, release.ErrInvalidInput)
}

func TestVariousArtistsSkipsReleaseArtist(t *testing.T) {
	obs := testRelease("", "One", "Two")
	obs.ArtistCredit = "Various Artists"

	cand := testRelease("mbid-va", "One", "Two")
	cand.ArtistCredit = "Completely Different Credit"
	cand.VariousArtists = true

	d, _ := ReleaseDistance(distance.DefaultWeights(), obs, cand)
	for _, p := range d.Items() {
		assert.NotEqual(t, "artist", p.Key)
	}
}

func TestTrackDistanceLengthGrace(t *testing.T) {
	w := distance.Weights{"track title": 0, "track length": 1}

	near := TrackDistance(w, release.Track{Title: "x", Length: 180 * time.Second},
		release.Track{Title: "x", Length: 187 * time.Second}, false)
	assert.Zero(t, near.Dist())

	far := TrackDistance(w, release.Track{Title: "x", Length: 180 * time.Second},
		release.Track{Title: "x", Length: 230 * time.Second}, false)
	assert.Equal(t, 1.0, far.Dist())

	mid := TrackDistance(w, release.Track{Title: "x", Length: 180 * time.Second},
		release.Track{Title: "x", Length: 205 * time.Second}, false)
	assert.InDelta(t, 0.5, mid.Dist(), 1e-9)
}

func TestTrackDistanceIDDominates(t *testing.T) {
	obs := release.Track{ID: "rec-1", Title: "Working Title"}
	cand := release.Track{ID: "rec-1", Title: "Final Title (Remaster)"}
	with := TrackDistance(distance.DefaultWeights(), obs, cand, false)

	obsNoID := release.Track{Title: "Working Title"}
	candNoID := release.Track{Title: "Final Title (Remaster)"}
	without := TrackDistance(distance.DefaultWeights(), obsNoID, candNoID, false)

	// a matching recording id pulls the distance down hard
	assert.Less(t, with.Dist(), without.Dist())
}

func TestRecommendThresholds(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, RecStrong, th.Recommend(0))
	assert.Equal(t, RecStrong, th.Recommend(th.Strong))
	assert.Equal(t, RecMedium, th.Recommend(th.Strong+0.001))
	assert.Equal(t, RecMedium, th.Recommend(th.Medium))
	assert.Equal(t, RecNone, th.Recommend(th.Medium+0.001))
	assert.Equal(t, RecNone, th.Recommend(1))
}

func TestRecommendationString(t *testing.T) {
	assert.Equal(t, "strong", RecStrong.String())
	assert.Equal(t, "medium", RecMedium.String())
	assert.Equal(t, "none", RecNone.String())
}
