package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringDistanceIdentity(t *testing.T) {
	for _, s := range []string{"", "Abbey Road", "Sigur Rós", "weird (mix) [remaster]"} {
		assert.Zero(t, StringDistance(s, s), "%q against itself", s)
	}
}

func TestStringDistanceBounds(t *testing.T) {
	cases := [][2]string{
		{"", ""},
		{"a", ""},
		{"abc", "xyz"},
		{"The Beatles", "Beatles, The"},
		{"Track (Live)", "Track"},
		{"completely different", "nothing alike whatsoever"},
	}
	for _, c := range cases {
		d := StringDistance(c[0], c[1])
		assert.GreaterOrEqual(t, d, 0.0, "%q vs %q", c[0], c[1])
		assert.LessOrEqual(t, d, 1.0, "%q vs %q", c[0], c[1])
		assert.InDelta(t, d, StringDistance(c[1], c[0]), 1e-12, "symmetric %q vs %q", c[0], c[1])
	}
}

func TestStringDistanceMissingSide(t *testing.T) {
	assert.Equal(t, MissingValuePenalty, StringDistance("Columbia", ""))
	assert.Equal(t, MissingValuePenalty, StringDistance("", "Columbia"))
}

func TestStringDistanceCaseAndDiacritics(t *testing.T) {
	assert.Zero(t, StringDistance("Sigur Rós", "sigur ros"))
	assert.Zero(t, StringDistance("MOTÖRHEAD", "Motorhead"))
	assert.Zero(t, StringDistance("Simon & Garfunkel", "Simon and Garfunkel"))
	assert.Zero(t, StringDistance("The Beatles", "Beatles, The"))
}

func TestStringDistancePatternDampening(t *testing.T) {
	// a mismatch confined to a parenthetical should cost less than the
	// same sized mismatch in the main title
	decorated := StringDistance("One Step Beyond (Remastered 2009)", "One Step Beyond")
	plain := StringDistance("One Step Beyondxxxxxxxxxxxxxxxxxx", "One Step Beyond")
	assert.Less(t, decorated, plain)
	assert.Greater(t, decorated, 0.0)

	feat := StringDistance("Song feat. Somebody Else", "Song")
	assert.Less(t, feat, StringDistance("Song plus extra words here", "Song"))
}

func TestNorm(t *testing.T) {
	assert.Equal(t, "the beatles", Norm("Beatles, The"))
	assert.Equal(t, "simon and garfunkel", Norm("Simon & Garfunkel"))
	assert.Equal(t, "sigur ros", Norm("Sigur Rós"))
	assert.Equal(t, "a song (live) [edit]", Norm("A  Song   (Live) [Edit]"))
	assert.Equal(t, "", Norm("   "))
}

func TestDistNormalizedByWeightsUsed(t *testing.T) {
	w := Weights{"a": 1, "b": 3}

	d := New(w)
	d.Add("a", 1)
	d.Add("b", 0)
	// (1*1 + 0*3) / (1 + 3)
	assert.InDelta(t, 0.25, d.Dist(), 1e-12)

	// same fields, same values, different insertion order
	e := New(w)
	e.Add("b", 0)
	e.Add("a", 1)
	assert.Equal(t, d.Dist(), e.Dist())
}

func TestDistEmpty(t *testing.T) {
	d := New(DefaultWeights())
	assert.Zero(t, d.Dist())
	assert.Empty(t, d.Items())
}

func TestZeroWeightIgnored(t *testing.T) {
	w := Weights{"label": 0, "album": 3}

	d := New(w)
	d.AddString("label", "Columbia", "some other label entirely")
	d.AddString("album", "Abbey Road", "Abbey Road")
	assert.Zero(t, d.Dist())
	require.Len(t, d.Items(), 1)
	assert.Equal(t, "album", d.Items()[0].Key)
}

func TestAddStringSkipsBothEmpty(t *testing.T) {
	d := New(DefaultWeights())
	d.AddString("label", "", "")
	assert.Empty(t, d.Items())

	d.AddString("label", "4AD", "")
	require.Len(t, d.Items(), 1)
	assert.Equal(t, MissingValuePenalty, d.Items()[0].Dist)
}

func TestAddRatioClamped(t *testing.T) {
	d := New(Weights{"year": 1})
	d.AddRatio("year", 50, 5)
	assert.Equal(t, 1.0, d.Dist())

	e := New(Weights{"year": 1})
	e.AddRatio("year", -2, 5)
	assert.InDelta(t, 0.4, e.Dist(), 1e-12)
}

func TestItemsOrdering(t *testing.T) {
	d := New(DefaultWeights())
	d.Add("year", 0.5)
	d.Add("album", 0.5)
	d.Add("artist", 0.5)
	d.Add("track id", 0.5)

	items := d.Items()
	require.Len(t, items, 4)
	// weight descending, then key
	assert.Equal(t, "track id", items[0].Key)
	assert.Equal(t, "album", items[1].Key)
	assert.Equal(t, "artist", items[2].Key)
	assert.Equal(t, "year", items[3].Key)
}

func TestPenaltyString(t *testing.T) {
	assert.Equal(t, "album: 0.25", Penalty{Key: "album", Dist: 0.25}.String())
	assert.Equal(t, `album: 0.25 ("a" vs "b")`, Penalty{Key: "album", Dist: 0.25, Detail: `"a" vs "b"`}.String())
}
