package placement

import (
	"slices"
	"strings"

	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/usecase/structure"
)

// Renderer turns one placement into product HTML.
type Renderer func(p placement.Placed) string

// Inject splices rendered placements into body in top-to-bottom order. After-paragraph
// indices refer to the paragraphs structure.Analyze reports; an index past the last
// paragraph is rendered at the end. Placements sharing a point keep their given order.
func Inject(body string, placements []placement.Placed, render Renderer) string {
	if len(placements) == 0 {
		return body
	}

	ordered := slices.Clone(placements)
	slices.SortStableFunc(ordered, func(a, b placement.Placed) int {
		switch {
		case a.Point.Less(b.Point):
			return -1
		case b.Point.Less(a.Point):
			return 1
		default:
			return 0
		}
	})

	ends := structure.ParagraphEnds(body)
	var head, tail strings.Builder
	after := make(map[int]*strings.Builder)

	for _, p := range ordered {
		html := render(p)
		switch {
		case p.Point.Kind == placement.KindStart:
			head.WriteString(html)
		case p.Point.Kind == placement.KindAfterParagraph && p.Point.Paragraph < len(ends):
			off := ends[p.Point.Paragraph]
			if after[off] == nil {
				after[off] = &strings.Builder{}
			}
			after[off].WriteString(html)
		default:
			tail.WriteString(html)
		}
	}

	var out strings.Builder
	out.Grow(len(body) + head.Len() + tail.Len())
	out.WriteString(head.String())
	prev := 0
	for _, off := range ends {
		b, ok := after[off]
		if !ok {
			continue
		}
		out.WriteString(body[prev:off])
		out.WriteString(b.String())
		prev = off
	}
	out.WriteString(body[prev:])
	out.WriteString(tail.String())
	return out.String()
}
