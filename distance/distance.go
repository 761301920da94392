// Package distance turns metadata differences into costs in [0, 1] and
// aggregates them with a named weight table. All functions here are pure,
// missing values are costs, never errors.
package distance

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/rainycape/unidecode"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// MissingValuePenalty is the cost of comparing a known value against a
// missing one. High enough to matter, low enough that incomplete but
// otherwise correct metadata still wins.
const MissingValuePenalty = 0.25

type Weights map[string]float64

// DefaultWeights is the standard weight table. Adjusting a field to 0
// ignores it entirely.
func DefaultWeights() Weights {
	return Weights{
		"album":            3,
		"artist":           3,
		"year":             1,
		"label":            0.5,
		"catalogue num":    0.5,
		"media format":     1,
		"mediums":          1,
		"tracks":           2,
		"missing tracks":   0.9,
		"unmatched tracks": 0.6,
		"track title":      3,
		"track artist":     2,
		"track index":      1,
		"track length":     2,
		"track id":         5,
		"disc":             0.5,
	}
}

func (w Weights) For(key string) float64 {
	if v, ok := w[key]; ok {
		return v
	}
	return 1
}

// Penalty is one weighted field cost with an optional human readable detail.
type Penalty struct {
	Key    string
	Dist   float64
	Weight float64
	Detail string
}

func (p Penalty) String() string {
	if p.Detail == "" {
		return fmt.Sprintf("%s: %.2f", p.Key, p.Dist)
	}
	return fmt.Sprintf("%s: %.2f (%s)", p.Key, p.Dist, p.Detail)
}

// Distance accumulates weighted field costs. Fields never added contribute
// to neither the numerator nor the denominator, so structurally absent
// fields don't skew the result.
type Distance struct {
	weights   Weights
	penalties []Penalty
}

func New(weights Weights) *Distance {
	return &Distance{weights: weights}
}

func (d *Distance) Add(key string, dist float64) {
	d.add(key, clamp(dist), "")
}

// AddString adds a normalized edit distance between a and b. An empty side
// costs [MissingValuePenalty], both sides empty is skipped entirely.
func (d *Distance) AddString(key, a, b string) {
	if a == "" && b == "" {
		return
	}
	dist := StringDistance(a, b)
	var detail string
	if dist > 0 {
		detail = fmt.Sprintf("%q vs %q", a, b)
	}
	d.add(key, dist, detail)
}

// AddRatio adds |diff| scaled down by scale, clamped to 1.
func (d *Distance) AddRatio(key string, diff, scale float64) {
	if scale <= 0 {
		return
	}
	if diff < 0 {
		diff = -diff
	}
	d.add(key, clamp(diff/scale), "")
}

// AddBool adds a full penalty if penalise is set, otherwise records a zero
// cost so the field still participates in normalization.
func (d *Distance) AddBool(key string, penalise bool) {
	if penalise {
		d.add(key, 1, "")
		return
	}
	d.add(key, 0, "")
}

func (d *Distance) add(key string, dist float64, detail string) {
	weight := d.weights.For(key)
	if weight == 0 {
		return
	}
	d.penalties = append(d.penalties, Penalty{Key: key, Dist: dist, Weight: weight, Detail: detail})
}

// Dist is the aggregate in [0, 1], the weighted sum normalized by the total
// weight seen. No penalties at all means a perfect 0.
func (d *Distance) Dist() float64 {
	var raw, total float64
	for _, p := range d.penalties {
		raw += p.Dist * p.Weight
		total += p.Weight
	}
	if total == 0 {
		return 0
	}
	return raw / total
}

// Items returns the penalties ordered by weight descending then key, so
// explanations come out the same every run.
func (d *Distance) Items() []Penalty {
	items := slices.Clone(d.penalties)
	slices.SortStableFunc(items, func(a, b Penalty) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return items
}

var dmp = diffmatchpatch.New()

// sdPatterns dampen mismatches confined to common title decorations. The
// share is how much of the distance saved by ignoring the decoration gets
// refunded.
var sdPatterns = []struct {
	expr  *regexp.Regexp
	share float64
}{
	{regexp.MustCompile(`^the `), 0.1},
	{regexp.MustCompile(`[\[(]?(featuring|feat|ft)[. :][^)\]]*[\])]?`), 0.1},
	{regexp.MustCompile(`\(.*?\)`), 0.3},
	{regexp.MustCompile(`\[.*?\]`), 0.6},
	{regexp.MustCompile(`(, )?(pt\.|part) .+`), 0.2},
}

// StringDistance is a normalized Levenshtein distance after case and
// diacritic folding. 0 means identical, 1 completely dissimilar, and
// decoration-only mismatches (parentheticals, feat. credits, part suffixes)
// are partially forgiven.
func StringDistance(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if a == "" || b == "" {
		return MissingValuePenalty
	}

	a, b = Norm(a), Norm(b)
	base := editRatio(a, b)
	if base == 0 {
		return 0
	}

	var refund float64
	for _, p := range sdPatterns {
		sa, sb := p.expr.ReplaceAllString(a, ""), p.expr.ReplaceAllString(b, "")
		if sa == a && sb == b {
			continue
		}
		if saved := base - editRatio(strings.TrimSpace(sa), strings.TrimSpace(sb)); saved > 0 {
			refund += p.share * saved
		}
	}
	return clamp(base - refund)
}

func editRatio(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	diffs := dmp.DiffMain(a, b, false)
	return clamp(float64(dmp.DiffLevenshtein(diffs)) / float64(longest))
}

// Norm folds a string for comparison: transliterate to ASCII, lowercase,
// fold ampersands and punctuation, rotate a trailing article ("Beatles,
// The" becomes "the beatles"). Parens and brackets survive so the pattern
// table above can see them.
func Norm(input string) string {
	s := unidecode.Unidecode(input)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "&", "and")

	for _, article := range []string{"the", "a", "an"} {
		if rest, ok := strings.CutSuffix(s, ", "+article); ok {
			s = article + " " + rest
			break
		}
	}

	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			return r
		case strings.ContainsRune("()[].,:", r):
			return r
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
