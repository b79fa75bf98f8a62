package textsim

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Trailing version qualifiers, e.g. "(Radio Edit)" or "[Extended Mix] - 2012 remaster".
// Anything after the qualifier is dropped along with it.
var qualifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*\(.*?(?:remix|mix|edit|version|original|radio|extended|club|dub|instrumental)\).*$`),
	regexp.MustCompile(`(?i)\s*\[.*?(?:remix|mix|edit|version|original|radio|extended|club|dub|instrumental)\].*$`),
}

// Featuring clause running to the end of the string.
var featuringPattern = regexp.MustCompile(`(?i)\s*\b(?:feat\.|featuring|ft\.|with)\s+.+$`)

// Normalize canonicalizes a title, artist or album for comparison.
// The result is lowercase, free of trailing version qualifiers and featuring
// clauses, and contains only letters, digits, underscores and single spaces.
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	// Stripping punctuation can expose a new featuring clause ("a(with) b"
	// becomes "a with b"), so repeat until nothing changes. Passes after the
	// first only ever remove characters.
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	s = strings.ToLower(norm.NFC.String(s))

	for _, p := range qualifierPatterns {
		s = p.ReplaceAllString(s, "")
	}

	s = featuringPattern.ReplaceAllString(s, "")

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsNumber(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)

	return strings.Join(strings.Fields(s), " ")
}
