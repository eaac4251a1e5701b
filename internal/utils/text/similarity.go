package text

import (
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// MatchThreshold is the token-set score at or above which an identity probe
// counts as a blacklist hit.
const MatchThreshold = 90

// Similarity scores a blacklist term against a probe string on a 0-100 scale.
// Token-set comparison: order-insensitive and tolerant of extra tokens, so
// "scammer" scores 100 against "john scammer" and word order never matters.
func Similarity(term, probe string) int {
	return fuzzy.TokenSetRatio(term, probe)
}

// BuildProbe joins the available identity fields into one lower-cased,
// space-separated probe string, skipping empty fields.
func BuildProbe(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, " ")
}
