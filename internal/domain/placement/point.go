package placement

import (
	"fmt"

	"github.com/kailas-cloud/affilink/internal/domain"
)

// Kind is where a product card is grafted into the document.
type Kind string

// Insertion kinds.
const (
	KindStart          Kind = "start"
	KindEnd            Kind = "end"
	KindAfterParagraph Kind = "after_paragraph"
)

// Point is one insertion point produced by the planner.
type Point struct {
	Kind      Kind `json:"position"`
	Paragraph int  `json:"paragraph_index,omitempty"`
}

// Start returns a point at the top of the document.
func Start() Point { return Point{Kind: KindStart} }

// End returns a point appended after the last paragraph.
func End() Point { return Point{Kind: KindEnd} }

// AfterParagraph returns a point after the paragraph with the given index.
func AfterParagraph(index int) Point { return Point{Kind: KindAfterParagraph, Paragraph: index} }

// Validate checks the point is well-formed.
func (p Point) Validate() error {
	switch p.Kind {
	case KindStart, KindEnd:
		return nil
	case KindAfterParagraph:
		if p.Paragraph < 0 {
			return fmt.Errorf("paragraph index must be non-negative, got %d: %w", p.Paragraph, domain.ErrInvalidInput)
		}
		return nil
	default:
		return fmt.Errorf("unknown insertion kind %q: %w", p.Kind, domain.ErrInvalidInput)
	}
}

// sortKey orders points top-to-bottom: start, paragraphs ascending, end.
func (p Point) sortKey() int {
	switch p.Kind {
	case KindStart:
		return -1
	case KindAfterParagraph:
		return p.Paragraph
	default:
		return int(^uint(0) >> 1)
	}
}

// Less reports whether p renders above q.
func (p Point) Less(q Point) bool { return p.sortKey() < q.sortKey() }

func (p Point) String() string {
	if p.Kind == KindAfterParagraph {
		return fmt.Sprintf("%s:%d", p.Kind, p.Paragraph)
	}
	return string(p.Kind)
}
