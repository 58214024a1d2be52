package discover

import "strings"

// Queries builds the search terms, keyword-major: every level for the first
// keyword, then every level for the second, and so on. Some portals preserve
// the term orientation in ranking, so the order is part of the contract.
func Queries(keywords, levels []string) []string {
	if len(levels) == 0 {
		levels = []string{""}
	}
	out := make([]string, 0, len(keywords)*len(levels))
	for _, kw := range keywords {
		for _, lvl := range levels {
			term := strings.TrimSpace(kw + " " + lvl)
			if term == "" {
				continue
			}
			out = append(out, term)
		}
	}
	return out
}
