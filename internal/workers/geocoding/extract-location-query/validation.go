// internal/workers/geocoding/extract-location-query/validation.go
package extractlocationquery

import "strings"

const defaultMaxLocationWords = 5

var nonLocationPhrases = map[string]struct{}{
	"none":  {},
	"hello": {},
	"hi":    {},
	"what":  {},
	"how":   {},
	"when":  {},
	"why":   {},
}

// IsPlausibleLocation is the syntactic filter applied before asking the
// model: rejects filler words and anything longer than maxWords tokens.
func IsPlausibleLocation(text string, maxWords int) bool {
	if maxWords <= 0 {
		maxWords = defaultMaxLocationWords
	}
	if _, rejected := nonLocationPhrases[strings.ToLower(text)]; rejected {
		return false
	}
	return len(strings.Fields(text)) <= maxWords
}

// isAffirmative accepts only a bare "yes", case and whitespace aside.
func isAffirmative(answer string) bool {
	return strings.ToLower(strings.TrimSpace(answer)) == "yes"
}
