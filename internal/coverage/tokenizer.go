package coverage

import (
	"strings"
	"unicode"
)

// SentenceSpan is a sentence with its position in the normalized page text.
type SentenceSpan struct {
	Text  string
	Start int
	End   int
	Index int
}

// minSentenceLength filters noise like headers and list labels.
const minSentenceLength = 10

// abbreviations that end with a period but do not end a sentence. Lowercase,
// without the trailing period.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "etc": true,
	"e.g": true, "i.e": true, "cf": true, "al": true, "ca": true,
	"approx": true, "fig": true, "vol": true, "no": true, "pp": true,
	"inc": true, "ltd": true, "co": true,
}

// NormalizeText collapses all whitespace runs to single spaces and trims the
// ends. Sentence offsets refer to this normalized form.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// SplitSentences splits text into sentences with character (rune) offsets
// into the normalized text and a stable zero-based index. Character offsets
// keep highlighting correct for consumers that index strings by character,
// including non-ASCII content. The boundary heuristic is deterministic: a
// terminator (. ! ?) ends a sentence when followed by whitespace or end of
// text, unless the period closes a known abbreviation or a single-letter
// initial. Decimal points never precede whitespace after normalization, so
// numbers are not split. Sentences shorter than minSentenceLength characters
// are dropped.
func SplitSentences(text string) []SentenceSpan {
	normalized := []rune(NormalizeText(text))
	if len(normalized) < minSentenceLength {
		return nil
	}

	var spans []SentenceSpan
	start := 0
	i := 0
	for i < len(normalized) {
		r := normalized[i]
		if r != '.' && r != '!' && r != '?' {
			i++
			continue
		}

		// Absorb closing quotes and brackets after the terminator.
		end := i + 1
		for end < len(normalized) && isClosing(normalized[end]) {
			end++
		}

		atEnd := end == len(normalized)
		followedBySpace := !atEnd && unicode.IsSpace(normalized[end])
		if !atEnd && !followedBySpace {
			i = end
			continue
		}
		if r == '.' && !atEnd && isAbbreviation(normalized[start:i]) {
			i = end
			continue
		}

		spans = appendSpan(spans, normalized, start, end)
		// Skip the separating space.
		start = end
		for start < len(normalized) && normalized[start] == ' ' {
			start++
		}
		i = start
	}

	if start < len(normalized) {
		spans = appendSpan(spans, normalized, start, len(normalized))
	}
	return spans
}

func appendSpan(spans []SentenceSpan, normalized []rune, start, end int) []SentenceSpan {
	text := strings.TrimSpace(string(normalized[start:end]))
	if len([]rune(text)) < minSentenceLength {
		return spans
	}
	return append(spans, SentenceSpan{
		Text:  text,
		Start: start,
		End:   end,
		Index: len(spans),
	})
}

// isAbbreviation reports whether the word ending at the period that follows
// sentence[start:periodPos] is an abbreviation or single-letter initial.
func isAbbreviation(beforePeriod []rune) bool {
	word := beforePeriod
	for i := len(beforePeriod) - 1; i >= 0; i-- {
		if beforePeriod[i] == ' ' {
			word = beforePeriod[i+1:]
			break
		}
	}
	if len(word) == 0 {
		return false
	}
	if len(word) == 1 {
		return unicode.IsLetter(word[0])
	}
	return abbreviations[strings.ToLower(string(word))]
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '»':
		return true
	}
	return false
}
