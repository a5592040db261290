package telegram

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength is the Bot API limit for one text message
const MaxMessageLength = 4096

// splitSeparators are tried in order when looking for a natural break
var splitSeparators = []string{"\n\n", "\n", ". ", " "}

// SplitMessage cuts content into parts of at most max characters (runes),
// breaking at the last paragraph, line, sentence or word boundary in each window.
// Every part is trimmed and, when there is more than one, suffixed with "[חלק i/N]"
// where N is ceil(len/max).
func SplitMessage(content string, max int) []string {
	if max <= 0 {
		max = MaxMessageLength
	}
	runes := []rune(content)
	if len(runes) <= max {
		return []string{content}
	}

	total := int(math.Ceil(float64(len(runes)) / float64(max)))
	var parts []string
	pos := 0
	for pos < len(runes) {
		end := pos + max
		if end > len(runes) {
			end = len(runes)
		}
		if end < len(runes) {
			window := string(runes[pos:end])
			for _, sep := range splitSeparators {
				if i := strings.LastIndex(window, sep); i != -1 {
					end = pos + utf8.RuneCountInString(window[:i]) + utf8.RuneCountInString(sep)
					break
				}
			}
		}

		part := strings.TrimSpace(string(runes[pos:end]))
		parts = append(parts, part+fmt.Sprintf("\n[חלק %d/%d]", len(parts)+1, total))
		pos = end
	}
	return parts
}

var (
	htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	boldDouble  = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	boldSingle  = regexp.MustCompile(`\*([^*\n]+)\*`)
	italic      = regexp.MustCompile(`(^|[\s(])_([^_\n]+)_($|[\s.,!?:;)])`)
)

// EscapeHTML escapes the characters the HTML parse mode treats as markup
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

// FormatHTML escapes text and turns **x** / *x* into <b>x</b> and _x_ into <i>x</i>.
// Underscores inside words (URLs, identifiers) are left alone.
func FormatHTML(text string) string {
	out := EscapeHTML(text)
	out = boldDouble.ReplaceAllString(out, "<b>$1</b>")
	out = boldSingle.ReplaceAllString(out, "<b>$1</b>")
	out = italic.ReplaceAllString(out, "${1}<i>${2}</i>${3}")
	return out
}
