package content

// Paragraph is one retained paragraph segment of a document body.
type Paragraph struct {
	Index      int
	Raw        string
	TextLength int
}

// Heading is an h2-h4 heading of a document body.
type Heading struct {
	Level int
	Text  string
}

// Structure is the paragraph/heading layout of one document body.
// Derived on every planning run, never cached.
type Structure struct {
	Paragraphs  []Paragraph
	Headings    []Heading
	TotalLength int
}

// ParagraphCount returns the number of retained paragraphs.
func (s Structure) ParagraphCount() int { return len(s.Paragraphs) }
