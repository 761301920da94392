// Package release holds the common release model shared by the observed
// (tag derived, untrusted) and candidate (catalog, authoritative) sides of a
// match. Zero values mean the field is unknown.
package release

import (
	"errors"
	"fmt"
	"time"

	"go.senan.xyz/autotag/musicbrainz"
)

// ErrInvalidInput marks a contract violation by the caller, eg. a negative
// track index or length. Ordinary metadata gaps are not errors.
var ErrInvalidInput = errors.New("invalid input")

// VariousArtistsID is MusicBrainz's special purpose artist for compilations.
const VariousArtistsID = "89ad4ac3-39f7-470e-963a-56509c546377"

type Release struct {
	ID             string // catalog identifier, empty for observed releases
	Title          string
	ArtistCredit   string
	Artists        []Artist
	VariousArtists bool
	Year           int
	Label          string
	CatalogueNum   string
	MediaFormat    string
	Mediums        int // disc count
	SearchScore    int // catalog provided relevance, used as a ranking tie break
	Tracks         []Track
}

type Track struct {
	ID           string // catalog recording identifier, empty for observed tracks
	Title        string
	ArtistCredit string
	Artists      []Artist
	Index        int           // position within the medium, 1 based. 0 when unknown
	Medium       int           // disc number, 1 based. 0 when unknown
	Length       time.Duration // 0 when unknown
}

type Artist struct {
	ID   string
	Name string
}

func FromMusicBrainz(mb *musicbrainz.Release) *Release {
	var r Release
	r.ID = mb.ID
	r.Title = mb.Title
	r.ArtistCredit = musicbrainz.ArtistsString(mb.Artists)
	r.Artists = fromMBArtists(mb.Artists)
	r.VariousArtists = hasArtistID(r.Artists, VariousArtistsID)
	r.Year = mb.Date.Year()
	r.Mediums = len(mb.Media)
	r.SearchScore = mb.SearchScore

	li := musicbrainz.AnyLabelInfo(mb)
	r.Label = li.Label.Name
	r.CatalogueNum = li.CatalogNumber

	if len(mb.Media) > 0 {
		r.MediaFormat = mb.Media[0].Format
	}

	for _, medium := range mb.Media {
		for _, mbt := range musicbrainz.MediumTracks(medium) {
			length := time.Duration(mbt.Length) * time.Millisecond
			if length == 0 {
				length = time.Duration(mbt.Recording.Length) * time.Millisecond
			}
			title := mbt.Title
			if title == "" {
				title = mbt.Recording.Title
			}
			artists := mbt.Artists
			if len(artists) == 0 {
				artists = mbt.Recording.Artists
			}
			r.Tracks = append(r.Tracks, Track{
				ID:           mbt.Recording.ID,
				Title:        title,
				ArtistCredit: musicbrainz.ArtistsString(artists),
				Artists:      fromMBArtists(artists),
				Index:        mbt.Position,
				Medium:       medium.Position,
				Length:       length,
			})
		}
	}

	return &r
}

// Validate reports the caller contract violations described by
// [ErrInvalidInput]. Missing fields are fine, impossible ones are not.
func (r *Release) Validate() error {
	if r.Year < 0 {
		return fmt.Errorf("%w: negative year %d", ErrInvalidInput, r.Year)
	}
	if r.Mediums < 0 {
		return fmt.Errorf("%w: negative medium count %d", ErrInvalidInput, r.Mediums)
	}
	for i, t := range r.Tracks {
		switch {
		case t.Index < 0:
			return fmt.Errorf("%w: track %d: negative index %d", ErrInvalidInput, i+1, t.Index)
		case t.Medium < 0:
			return fmt.Errorf("%w: track %d: negative medium %d", ErrInvalidInput, i+1, t.Medium)
		case t.Length < 0:
			return fmt.Errorf("%w: track %d: negative length %s", ErrInvalidInput, i+1, t.Length)
		}
	}
	return nil
}

// MissingFields lists the release level fields the catalog (or the local
// tags) left blank. Comparators treat these neutrally rather than penalising
// them.
func (r *Release) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"title", r.Title != ""},
		{"artist", r.ArtistCredit != ""},
		{"year", r.Year != 0},
		{"label", r.Label != ""},
		{"catalogue num", r.CatalogueNum != ""},
		{"media format", r.MediaFormat != ""},
		{"mediums", r.Mediums != 0},
	} {
		if !f.ok {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func fromMBArtists(credits []musicbrainz.ArtistCredit) []Artist {
	var artists []Artist
	for _, c := range credits {
		artists = append(artists, Artist{
			ID:   c.Artist.ID,
			Name: c.Artist.Name,
		})
	}
	return artists
}

func hasArtistID(artists []Artist, id string) bool {
	for _, a := range artists {
		if a.ID == id {
			return true
		}
	}
	return false
}
