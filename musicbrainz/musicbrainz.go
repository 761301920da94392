// Package musicbrainz is a small client for the MusicBrainz v2 API. It
// fetches and searches releases, nothing more. The matching core never
// touches this package, it only sees the already fetched results.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/araddon/dateparse"

	"go.senan.xyz/autotag/clientutil"
)

var ErrNoResults = errors.New("no results")

type StatusError int

func (s StatusError) Error() string {
	return fmt.Sprintf("%d: %s", int(s), http.StatusText(int(s)))
}

const defaultSearchLimit = 5

// searchSimilarityMin filters out server results whose artist and title
// barely resemble the query at all. Jaro-Winkler sits around 0.6 even for
// unrelated strings, so the bar is higher than it looks.
const searchSimilarityMin = 0.75

type MBClient struct {
	BaseURL     string
	RateLimit   time.Duration
	UserAgent   string
	SearchLimit int

	initOnce   sync.Once
	HTTPClient *http.Client
}

func (c *MBClient) request(ctx context.Context, r *http.Request, dest any) error {
	c.initOnce.Do(func() {
		c.HTTPClient = clientutil.Wrap(c.HTTPClient, clientutil.Chain(
			clientutil.WithCache(),
			clientutil.WithUserAgent(c.UserAgent),
			clientutil.WithRateLimit(c.RateLimit),
			clientutil.WithLogging(),
		))
	})

	r = r.WithContext(ctx)
	resp, err := c.HTTPClient.Do(r)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("musicbrainz returned non 2xx: %w", StatusError(resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *MBClient) GetRelease(ctx context.Context, mbid string) (*Release, error) {
	urlV := url.Values{}
	urlV.Set("fmt", "json")
	urlV.Set("inc", "recordings+artist-credits+labels+release-groups")

	url, _ := url.Parse(joinPath(c.BaseURL, "release", mbid))
	url.RawQuery = urlV.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)

	var release Release
	if err := c.request(ctx, req, &release); err != nil {
		return nil, fmt.Errorf("request release: %w", err)
	}
	return &release, nil
}

type ReleaseQuery struct {
	MBReleaseID      string
	MBArtistID       string
	MBReleaseGroupID string

	Release      string
	Artist       string
	Year         int
	Format       string
	Label        string
	CatalogueNum string
	NumTracks    int
}

// SearchReleases returns candidate releases for the query, best server
// score first, each carrying its SearchScore. A valid MBReleaseID turns the
// search into a direct lookup with a single result.
func (c *MBClient) SearchReleases(ctx context.Context, q ReleaseQuery) ([]*Release, error) {
	if uuidExpr.MatchString(q.MBReleaseID) {
		release, err := c.GetRelease(ctx, q.MBReleaseID)
		if err != nil {
			return nil, fmt.Errorf("get direct release: %w", err)
		}
		release.SearchScore = 100
		return []*Release{release}, nil
	}

	// https://musicbrainz.org/doc/MusicBrainz_API/Search#Release

	var params []string
	if q.MBArtistID != "" {
		params = append(params, field("arid", q.MBArtistID))
	}
	if q.MBReleaseGroupID != "" {
		params = append(params, field("rgid", q.MBReleaseGroupID))
	}
	if q.Release != "" {
		params = append(params, field("release", strings.ToLower(q.Release)))
	}
	if q.Artist != "" {
		params = append(params, field("artist", strings.ToLower(q.Artist)))
	}
	if q.Year > 0 {
		params = append(params, field("date", q.Year))
	}
	if q.Format != "" {
		params = append(params, field("format", strings.ToLower(q.Format)))
	}
	if q.Label != "" {
		params = append(params, field("label", strings.ToLower(q.Label)))
	}
	if q.CatalogueNum != "" {
		params = append(params, field("catno", strings.ToLower(q.CatalogueNum)))
	}
	if q.NumTracks > 0 {
		params = append(params, field("tracks", q.NumTracks))
	}
	if len(params) == 0 {
		return nil, ErrNoResults
	}

	limit := c.SearchLimit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	urlV := url.Values{}
	urlV.Set("fmt", "json")
	urlV.Set("limit", fmt.Sprint(limit))
	urlV.Set("query", strings.Join(params, " "))

	url, _ := url.Parse(joinPath(c.BaseURL, "release"))
	url.RawQuery = urlV.Encode()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)

	var sr struct {
		Releases []struct {
			ID      string         `json:"id"`
			Score   int            `json:"score"`
			Title   string         `json:"title"`
			Artists []ArtistCredit `json:"artist-credit"`
		} `json:"releases"`
	}
	if err := c.request(ctx, req, &sr); err != nil {
		return nil, fmt.Errorf("request search: %w", err)
	}

	var releases []*Release
	for _, stub := range sr.Releases {
		if stub.ID == "" {
			continue
		}
		if !stubResemblesQuery(q, ArtistsString(stub.Artists), stub.Title) {
			continue
		}
		release, err := c.GetRelease(ctx, stub.ID)
		if err != nil {
			return nil, fmt.Errorf("get release by mbid %s: %w", stub.ID, err)
		}
		release.SearchScore = stub.Score
		releases = append(releases, release)
	}
	if len(releases) == 0 {
		return nil, ErrNoResults
	}
	return releases, nil
}

var jaroWinkler = metrics.NewJaroWinkler()

// stubResemblesQuery drops search noise before we pay for the full release
// lookups. The real scoring happens later in the matching core.
func stubResemblesQuery(q ReleaseQuery, stubArtist, stubTitle string) bool {
	if q.Artist == "" && q.Release == "" {
		return true
	}
	query := strings.ToLower(strings.TrimSpace(q.Artist + " " + q.Release))
	stub := strings.ToLower(strings.TrimSpace(stubArtist + " " + stubTitle))
	return strutil.Similarity(query, stub, jaroWinkler) >= searchSimilarityMin
}

type ArtistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     Artist `json:"artist"`
}

type Artist struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name"`
	Type           string `json:"type"`
	Disambiguation string `json:"disambiguation"`
}

type Track struct {
	ID        string `json:"id"`
	Length    int    `json:"length"`
	Recording struct {
		ID      string         `json:"id"`
		Length  int            `json:"length"`
		Title   string         `json:"title"`
		Artists []ArtistCredit `json:"artist-credit"`
	} `json:"recording"`
	Number   string         `json:"number"`
	Position int            `json:"position"`
	Title    string         `json:"title"`
	Artists  []ArtistCredit `json:"artist-credit"`
}

type Media struct {
	TrackCount int     `json:"track-count"`
	Tracks     []Track `json:"tracks"`
	Pregap     *Track  `json:"pregap,omitempty"`
	Format     string  `json:"format"`
	Title      string  `json:"title"`
	Position   int     `json:"position"`
}

type LabelInfo struct {
	Label         Label  `json:"label"`
	CatalogNumber string `json:"catalog-number"`
}

type Label struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SortName       string `json:"sort-name"`
	Disambiguation string `json:"disambiguation"`
}

type Release struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Status         string         `json:"status"`
	Country        string         `json:"country"`
	Barcode        string         `json:"barcode"`
	Disambiguation string         `json:"disambiguation"`
	Artists        []ArtistCredit `json:"artist-credit"`
	Date           AnyTime        `json:"date"`
	Media          []Media        `json:"media"`
	ReleaseGroup   ReleaseGroup   `json:"release-group"`
	LabelInfo      []LabelInfo    `json:"label-info"`

	// SearchScore is ours, not MusicBrainz's. Filled in from the search
	// response that located this release.
	SearchScore int `json:"-"`
}

type ReleaseGroup struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	PrimaryType      string  `json:"primary-type"`
	FirstReleaseDate AnyTime `json:"first-release-date"`
}

func ArtistsString(credits []ArtistCredit) string {
	var sb strings.Builder
	for _, c := range credits {
		fmt.Fprintf(&sb, "%s%s", c.Artist.Name, c.JoinPhrase)
	}
	return sb.String()
}

func ArtistsCreditString(credits []ArtistCredit) string {
	var sb strings.Builder
	for _, c := range credits {
		fmt.Fprintf(&sb, "%s%s", c.Name, c.JoinPhrase)
	}
	return sb.String()
}

// MediumTracks is the medium's track listing with any pregap track first.
func MediumTracks(medium Media) []Track {
	if medium.Pregap == nil {
		return medium.Tracks
	}
	tracks := make([]Track, 0, len(medium.Tracks)+1)
	tracks = append(tracks, *medium.Pregap)
	tracks = append(tracks, medium.Tracks...)
	return tracks
}

func AnyLabelInfo(release *Release) LabelInfo {
	for _, li := range release.LabelInfo {
		if li.Label.Name != "" || li.CatalogNumber != "" {
			return li
		}
	}
	var labelInfo LabelInfo
	return labelInfo
}

type AnyTime struct {
	time.Time
}

func (at *AnyTime) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	if str == "" {
		return nil
	}
	var err error
	at.Time, err = dateparse.ParseAny(str)
	if err != nil {
		return fmt.Errorf("parse any: %w", err)
	}
	return nil
}

// https://lucene.apache.org/core/7_7_2/queryparser/org/apache/lucene/queryparser/classic/package-summary.html#Escaping_Special_Characters
var escapeLucene *strings.Replacer

func init() {
	var pairs []string
	for _, c := range []string{`&&`, `||`, `+`, `-`, `!`, `(`, `)`, `{`, `}`, `[`, `]`, `^`, `"`, `~`, `*`, `?`, `:`, `\`, `/`} {
		pairs = append(pairs, c, `\`+c)
	}
	escapeLucene = strings.NewReplacer(pairs...)
}

func field(k string, v any) string {
	vstr := fmt.Sprint(v)
	vstr = escapeLucene.Replace(vstr)
	return fmt.Sprintf("%s:(%v)", k, vstr)
}

func joinPath(base string, p ...string) string {
	r, _ := url.JoinPath(base, p...)
	return r
}

var uuidExpr = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
