package linkform

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxExtractedTitle caps the title taken from the text before the URL, in runes.
const MaxExtractedTitle = 100

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Extraction is what a pasted message yields.
type Extraction struct {
	URL   string
	Title string
}

// Extract finds the first http(s) URL in text. Title is the trimmed text
// before it and may be empty.
func Extract(text string) (Extraction, bool) {
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		// \S only stops at ASCII whitespace
		if end := strings.IndexFunc(match, isSpace); end >= 0 {
			match = match[:end]
		}
		if strings.HasSuffix(match, "://") {
			continue
		}

		title := strings.TrimFunc(text[:loc[0]], isSpace)
		if runes := []rune(title); len(runes) > MaxExtractedTitle {
			title = string(runes[:MaxExtractedTitle])
		}
		return Extraction{URL: match, Title: title}, true
	}
	return Extraction{}, false
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
