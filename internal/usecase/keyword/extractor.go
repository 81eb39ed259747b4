// Package keyword turns document text into a ranked keyword list.
package keyword

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/affilink/internal/domain/document"
	"github.com/kailas-cloud/affilink/internal/domain/keyword"
	"github.com/kailas-cloud/affilink/internal/usecase/structure"
)

const (
	// MaxRanked is the number of frequency-ranked terms kept after the title.
	MaxRanked = 10
	// MinTermLength is the minimum term length in runes.
	MinTermLength = 3
)

var stopWords = toSet(strings.Fields(`
	the and for are but not you all can her was one our out day get has him his
	how man new now old see two way who boy did its let put say she too use with
	this that from they have been what when your more will than these those into
	very about there`))

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// IsStopWord reports whether a lowercase term is in the fixed stop-word set.
func IsStopWord(term string) bool {
	_, ok := stopWords[term]
	return ok
}

// Extract builds the keyword set of a document: the raw title first (even when
// empty), then up to MaxRanked terms by descending frequency (ties keep first-seen
// order).
// Invalid UTF-8 in the title or body yields an empty set.
func Extract(doc document.Document) keyword.Set {
	title, body := doc.Title(), doc.Body()
	if !utf8.ValidString(title) || !utf8.ValidString(body) {
		return keyword.Set{}
	}

	var tokens []string
	tokens = append(tokens, Tokenize(title)...)
	tokens = append(tokens, Tokenize(structure.PlainText(body))...)
	for _, tag := range doc.Tags() {
		tokens = append(tokens, Tokenize(tag)...)
	}

	counts := make(map[string]int)
	var order []string
	for _, tok := range tokens {
		if IsStopWord(tok) {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return counts[b] - counts[a]
	})
	if len(order) > MaxRanked {
		order = order[:MaxRanked]
	}

	out := make(keyword.Set, 0, len(order)+1)
	out = append(out, keyword.Keyword{Term: title})
	for _, term := range order {
		out = append(out, keyword.Keyword{Term: term, Frequency: counts[term]})
	}
	return dedupe(out)
}

// Tokenize drops every rune that is not a letter, digit, hyphen or space, splits on
// whitespace, lowercases, and discards terms shorter than MinTermLength.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)

	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, f := range fields {
		f = strings.ToLower(f)
		if utf8.RuneCountInString(f) < MinTermLength {
			continue
		}
		out = append(out, f)
	}
	return out
}

// dedupe keeps the first occurrence of each exact term. A title differing from a
// ranked term only in case keeps both.
func dedupe(set keyword.Set) keyword.Set {
	seen := make(map[string]struct{}, len(set))
	out := set[:0]
	for _, k := range set {
		if _, ok := seen[k.Term]; ok {
			continue
		}
		seen[k.Term] = struct{}{}
		out = append(out, k)
	}
	return out
}
