package catalog

import (
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// SymptomMatch is a disease whose symptom text contains at least one of the
// queried symptoms.
type SymptomMatch struct {
	Record
	MatchScore      float64  `json:"match_score"`
	MatchedSymptoms []string `json:"matched_symptoms"`
}

// SearchBySymptoms finds diseases whose symptom descriptions contain the
// queried symptoms as case-insensitive substrings. MatchScore is the share of
// non-blank queries that matched. crop, when set, restricts the search.
// Results are ordered by score, then id.
func (c *Catalog) SearchBySymptoms(symptoms []string, crop string) []SymptomMatch {
	queries := make([]string, 0, len(symptoms))
	for _, s := range symptoms {
		if q := strings.ToLower(strings.TrimSpace(s)); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return []SymptomMatch{}
	}

	// The matcher needs a unique dictionary; duplicates still count once per
	// query toward the score.
	index := make(map[string]int, len(queries))
	keywords := make([]string, 0, len(queries))
	for _, q := range queries {
		if _, ok := index[q]; !ok {
			index[q] = len(keywords)
			keywords = append(keywords, q)
		}
	}
	matcher := ahocorasick.NewStringMatcher(keywords)

	ids := c.ids
	if crop != "" {
		ids = c.byCrop[strings.ToLower(strings.TrimSpace(crop))]
	}

	results := make([]SymptomMatch, 0)
	for _, id := range ids {
		r := c.records[id]

		hit := make(map[int]bool, len(keywords))
		for _, symptom := range r.Symptoms {
			for _, k := range matcher.Match([]byte(strings.ToLower(symptom))) {
				hit[k] = true
			}
		}
		if len(hit) == 0 {
			continue
		}

		matches := 0
		matched := make([]string, 0, len(hit))
		for _, q := range queries {
			if hit[index[q]] {
				matches++
				matched = append(matched, q)
			}
		}
		results = append(results, SymptomMatch{
			Record:          r,
			MatchScore:      float64(matches) / float64(len(queries)),
			MatchedSymptoms: matched,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})
	return results
}
