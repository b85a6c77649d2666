// Package airports resolves airport codes and runs ranked fuzzy text
// search over a static dataset. The dataset is loaded from a YAML file
// so deployments can ship their own list; a built-in set is used when
// no file is configured.
package airports

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

// Airport is one entry of the dataset.
type Airport struct {
	Code    string `yaml:"code"` // IATA code, upper case
	City    string `yaml:"city"`
	Country string `yaml:"country"`
}

// Label returns the display form used in prompts, e.g. "Lisbon (LIS)".
func (a Airport) Label() string {
	return fmt.Sprintf("%s (%s)", a.City, a.Code)
}

// Index is an immutable, queryable airport dataset.
type Index struct {
	byCode  map[string]Airport
	ordered []Airport
}

// NewIndex builds an index over the given airports. Later duplicates
// of a code are dropped.
func NewIndex(list []Airport) *Index {
	ix := &Index{byCode: make(map[string]Airport, len(list))}
	for _, a := range list {
		a.Code = strings.ToUpper(strings.TrimSpace(a.Code))
		if a.Code == "" {
			continue
		}
		if _, ok := ix.byCode[a.Code]; ok {
			continue
		}
		ix.byCode[a.Code] = a
		ix.ordered = append(ix.ordered, a)
	}
	return ix
}

// Load reads a YAML airport list from path. An empty path yields the
// built-in dataset.
func Load(path string) (*Index, error) {
	if path == "" {
		return NewIndex(builtin), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read airports file %s: %w", path, err)
	}
	var list []Airport
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse airports file %s: %w", path, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("airports file %s contains no entries", path)
	}
	return NewIndex(list), nil
}

// ResolveByCode looks an airport up by its IATA code,
// case-insensitively. The second return value reports whether the code
// is known.
func (ix *Index) ResolveByCode(code string) (Airport, bool) {
	a, ok := ix.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return a, ok
}

// searchRank orders match quality: exact code, then city prefix, then
// city substring, then small edit distance.
const (
	rankCode = iota
	rankPrefix
	rankSubstring
	rankFuzzyBase
)

// maxEditDistance bounds how far a fuzzy match may drift from the query.
const maxEditDistance = 2

// SearchByText returns up to limit airports matching the free-text
// query, best match first. Matching is case-insensitive over code and
// city; near-misses are admitted by Levenshtein distance so that
// "Lisbin" still finds Lisbon. An empty query returns no matches.
func (ix *Index) SearchByText(query string, limit int) []Airport {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return nil
	}

	type scored struct {
		airport Airport
		rank    int
		pos     int
	}
	var matches []scored
	for pos, a := range ix.ordered {
		city := strings.ToLower(a.City)
		code := strings.ToLower(a.Code)
		switch {
		case q == code:
			matches = append(matches, scored{a, rankCode, pos})
		case strings.HasPrefix(city, q):
			matches = append(matches, scored{a, rankPrefix, pos})
		case strings.Contains(city, q):
			matches = append(matches, scored{a, rankSubstring, pos})
		default:
			if dist := levenshtein.ComputeDistance(q, city); dist <= maxEditDistance {
				matches = append(matches, scored{a, rankFuzzyBase + dist, pos})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return matches[i].pos < matches[j].pos
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Airport, len(matches))
	for i, m := range matches {
		out[i] = m.airport
	}
	return out
}
