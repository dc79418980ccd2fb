package search

import "strings"

// maxQueries caps how many candidate queries one input produces.
const maxQueries = 3

// ExtractQueries derives up to three search queries from text by taking its
// leading sentences. A cheap placeholder for real claim extraction; kept
// separate so it can be swapped without touching callers. Never fails;
// empty input yields nil.
func ExtractQueries(text string) []string {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	var queries []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		queries = append(queries, s)
		if len(queries) == maxQueries {
			break
		}
	}
	return queries
}
