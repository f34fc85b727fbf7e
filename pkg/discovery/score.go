package discovery

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	titleMatchPoints  = 50
	authorMatchPoints = 50
	minAuthorLength   = 3
)

// Normalize folds s for comparison: accents dropped, lowercased,
// punctuation turned into spaces, whitespace collapsed.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Score rates a candidate against the query: 50 points when the candidate
// title contains the query title, 50 more when one of its authors contains
// the query author.
func Score(candTitle string, candAuthors []string, qTitle, qAuthor string) int {
	score := 0

	if t := Normalize(qTitle); t != "" && strings.Contains(Normalize(candTitle), t) {
		score += titleMatchPoints
	}

	if a := Normalize(qAuthor); a != "" {
		for _, ca := range candAuthors {
			if strings.Contains(Normalize(ca), a) {
				score += authorMatchPoints
				break
			}
		}
	}

	return score
}

// usableAuthor reports whether author is worth sending to a search API.
// Placeholders like "Unknown Author" only narrow results to nothing.
func usableAuthor(author string) bool {
	n := Normalize(author)
	return len(n) >= minAuthorLength && !strings.Contains(n, "unknown")
}
