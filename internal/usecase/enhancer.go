package usecase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"sommelier-core/internal/domain/entity"
)

const closingSentence = "Enjoy the wine, and feel free to ask if you would like further guidance."

var closingPhrases = []string{"enjoy", "cheers", "feel free to ask", "happy to help", "let me know", "santé"}

var (
	reTrailingSpace    = regexp.MustCompile(`[ \t]+\n`)
	reSpaceBeforePunct = regexp.MustCompile(`[ \t]+([.!?,;:])`)
	reInlineSpaces     = regexp.MustCompile(`(\S)[ \t]{2,}`)
	reMissingSpace     = regexp.MustCompile(`([.!?])(\p{Lu})`)
	reExtraNewlines    = regexp.MustCompile(`\n{3,}`)
	reSentenceStart    = regexp.MustCompile(`[.!?]\s+\p{Ll}`)
)

// ResponseEnhancer tidies validated model output. Enhance is idempotent.
type ResponseEnhancer struct{}

func NewResponseEnhancer() *ResponseEnhancer {
	return &ResponseEnhancer{}
}

func (e *ResponseEnhancer) Enhance(text string, _ entity.ResponseGuidelines) string {
	out := stripEmojis(text)

	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = reTrailingSpace.ReplaceAllString(out, "\n")
	out = reSpaceBeforePunct.ReplaceAllString(out, "$1")
	out = reInlineSpaces.ReplaceAllString(out, "$1 ")

	out = reMissingSpace.ReplaceAllString(out, "$1 $2")
	out = reExtraNewlines.ReplaceAllString(out, "\n\n")

	out = capitalizeFirstLetter(out)
	out = reSentenceStart.ReplaceAllStringFunc(out, upperLastRune)

	out = strings.TrimSpace(out)

	if !hasClosing(out) && !endsWithTerminal(out) {
		if out == "" {
			return closingSentence
		}
		out += "\n\n" + closingSentence
	}
	return out
}

func stripEmojis(text string) string {
	return strings.Map(func(r rune) rune {
		if isEmoji(r) || r == '\uFE0F' || r == '\u200D' {
			return -1
		}
		return r
	}, text)
}

func capitalizeFirstLetter(s string) string {
	for i, r := range s {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return s[:i] + string(unicode.ToUpper(r)) + s[i+utf8.RuneLen(r):]
			}
			return s
		}
	}
	return s
}

func upperLastRune(m string) string {
	r, size := utf8.DecodeLastRuneInString(m)
	return m[:len(m)-size] + string(unicode.ToUpper(r))
}

func hasClosing(s string) bool {
	return containsAny(strings.ToLower(s), closingPhrases)
}

func endsWithTerminal(s string) bool {
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
