// Package structure splits document markup into paragraphs and headings.
package structure

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/kailas-cloud/affilink/internal/domain/content"
)

// paragraphEnd matches a closing paragraph tag, tolerant of case and trailing whitespace.
var paragraphEnd = regexp.MustCompile(`(?i)</p\s*>`)

// Analyze derives the paragraph/heading layout of a body.
// A body that is not valid UTF-8 yields an empty structure.
func Analyze(body string) content.Structure {
	if !utf8.ValidString(body) {
		return content.Structure{}
	}

	var out content.Structure
	for _, seg := range SplitParagraphs(body) {
		text := strings.TrimSpace(PlainText(seg))
		if text == "" {
			continue
		}
		out.Paragraphs = append(out.Paragraphs, content.Paragraph{
			Index:      len(out.Paragraphs),
			Raw:        seg,
			TextLength: utf8.RuneCountInString(text),
		})
	}

	out.Headings = Headings(body)
	out.TotalLength = utf8.RuneCountInString(PlainText(body))
	return out
}

// SplitParagraphs splits a body on closing paragraph tags. The closing tags are
// consumed; the trailing remainder is kept as the last segment.
func SplitParagraphs(body string) []string {
	return paragraphEnd.Split(body, -1)
}

// ParagraphEnds returns, for every paragraph Analyze would report, the byte offset in
// body right after its closing tag (len(body) for an unterminated trailing paragraph).
func ParagraphEnds(body string) []int {
	if !utf8.ValidString(body) {
		return nil
	}

	var ends []int
	start := 0
	for _, loc := range paragraphEnd.FindAllStringIndex(body, -1) {
		if strings.TrimSpace(PlainText(body[start:loc[0]])) != "" {
			ends = append(ends, loc[1])
		}
		start = loc[1]
	}
	if strings.TrimSpace(PlainText(body[start:])) != "" {
		ends = append(ends, len(body))
	}
	return ends
}

// PlainText strips all markup, dropping script and style content.
func PlainText(markup string) string {
	if markup == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// Headings returns the h2-h4 headings of a body in document order.
func Headings(body string) []content.Heading {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var out []content.Heading
	doc.Find("h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		level := int(goquery.NodeName(s)[1] - '0')
		out = append(out, content.Heading{
			Level: level,
			Text:  strings.TrimSpace(s.Text()),
		})
	})
	return out
}
