// Package filename turns the names people give downloaded book files into a
// display title and author.
package filename

import (
	"path"
	"regexp"
	"strings"

	"github.com/foliobooks/folio/pkg/models"
)

const (
	untitled       = "Untitled"
	maxAuthorWords = 4
	maxCleanPasses = 8
)

var (
	letterRE      = regexp.MustCompile(`[A-Za-z]`)
	bracketedRE   = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\{[^}]*\}`)
	hexRunRE      = regexp.MustCompile(`\b[0-9A-Fa-f]{8,}\b`)
	isbnRunRE     = regexp.MustCompile(`\b97[89][- ]?\d{1,5}[- ]?\d{1,7}[- ]?\d{1,7}[- ]?\d\b|\b\d{13}\b`)
	separatorRE   = regexp.MustCompile(`\s+[-–—]\s+`)
	spacingDashRE = regexp.MustCompile(`(^|\s)[-–—]+|[-–—]+(\s|$)`)
	whitespaceRE  = regexp.MustCompile(`\s+`)
	digitRE       = regexp.MustCompile(`\d`)
	stoplistRE    = regexp.MustCompile(`(?i)\b(?:free download|download|full edition|complete edition|retail|ebook|e-book|epub|pdf|z-lib|zlibrary|z-library|libgen|annas archive|www\.[a-z0-9-]+\.[a-z]{2,})\b`)
)

const edgePunctuation = " ,.;:|-–—"

type Parsed struct {
	Title  string
	Author string
}

// ParseFilename derives a display title and author from a file name such
// as "Isaac_Asimov_-_Foundation_(retail)_9780553293357.epub". It never
// fails: the worst case is the cleaned name with an unknown author.
func ParseFilename(name string) Parsed {
	base := stripExtension(path.Base(strings.ReplaceAll(name, `\`, "/")))
	if base == "." || base == "/" {
		base = ""
	}

	stripped := bracketedRE.ReplaceAllString(strings.ReplaceAll(base, "_", " "), " ")
	stripped = hexRunRE.ReplaceAllStringFunc(stripped, func(run string) string {
		// Plain words like "accede" are hex too; ids always carry a digit.
		if digitRE.MatchString(run) {
			return " "
		}
		return run
	})
	stripped = isbnRunRE.ReplaceAllString(stripped, " ")
	stripped = whitespaceRE.ReplaceAllString(stripped, " ")

	var parts []string
	for _, part := range separatorRE.Split(" "+stripped+" ", -1) {
		if cleaned := CleanDisplayText(part); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}

	parsed := Parsed{Author: models.UnknownAuthor}
	if len(parts) > 1 {
		for i, part := range parts {
			if !looksLikeAuthor(part) {
				continue
			}
			parsed.Author = part
			parts = append(parts[:i:i], parts[i+1:]...)
			break
		}
	}
	parsed.Title = strings.Join(parts, " - ")

	if parsed.Title == "" {
		parsed.Title = CleanDisplayText(base)
	}
	if parsed.Title == "" {
		parsed.Title = untitled
	}
	return parsed
}

// CleanDisplayText normalizes text for display: underscores and hyphens
// used as spacing become spaces, promotional tokens are removed, and
// whitespace is collapsed. CleanDisplayText(CleanDisplayText(s)) ==
// CleanDisplayText(s).
func CleanDisplayText(text string) string {
	out := text
	for i := 0; i < maxCleanPasses; i++ {
		next := cleanOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func cleanOnce(text string) string {
	s := strings.ReplaceAll(text, "_", " ")
	s = spacingDashRE.ReplaceAllString(s, " ")
	s = stoplistRE.ReplaceAllString(s, " ")
	s = whitespaceRE.ReplaceAllString(s, " ")
	return strings.Trim(s, edgePunctuation)
}

func looksLikeAuthor(part string) bool {
	words := len(strings.Fields(part))
	return words > 0 && words <= maxAuthorWords && !strings.Contains(strings.ToLower(part), "library")
}

// stripExtension drops a trailing extension like ".epub" but keeps
// numbering like "Vol 2.5".
func stripExtension(name string) string {
	ext := path.Ext(name)
	if len(ext) < 2 || len(ext) > 6 || !letterRE.MatchString(ext) || strings.ContainsAny(ext, " _") {
		return name
	}
	return strings.TrimSuffix(name, ext)
}
