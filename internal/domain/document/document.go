package document

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/kailas-cloud/affilink/internal/domain"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxBodySize is the maximum document body size in bytes.
const MaxBodySize = 1 << 20 // 1MB

// DefaultType is the post type assumed when none is supplied.
const DefaultType = "post"

// Document is an article owned by the content store (read-only value object).
type Document struct {
	id         string
	title      string
	body       string
	docType    string
	tags       []string
	categories []int
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars. Body: max 1MB. Empty type falls back to "post".
func New(id, title, body, docType string, tags []string, categories []int) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required: %w", domain.ErrInvalidInput)
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("document ID too long (max 256): %w", domain.ErrInvalidInput)
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with underscores and hyphens: %w", domain.ErrInvalidInput)
	}
	if len(body) > MaxBodySize {
		return Document{}, fmt.Errorf("body too large (max %d bytes): %w", MaxBodySize, domain.ErrInvalidInput)
	}
	if docType == "" {
		docType = DefaultType
	}

	return Document{
		id:         id,
		title:      title,
		body:       body,
		docType:    docType,
		tags:       slices.Clone(tags),
		categories: slices.Clone(categories),
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(id, title, body, docType string, tags []string, categories []int) Document {
	return Document{id: id, title: title, body: body, docType: docType, tags: tags, categories: categories}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Body returns the raw markup body.
func (d *Document) Body() string { return d.body }

// Type returns the post type (post, page, review...).
func (d *Document) Type() string { return d.docType }

// Tags returns the taxonomy tags in their original order.
func (d *Document) Tags() []string { return d.tags }

// Categories returns the category identifiers.
func (d *Document) Categories() []int { return d.categories }

// InCategory reports whether the document carries any of the given categories.
// An empty allow-list matches every document.
func (d *Document) InCategory(allowed []int) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, c := range d.categories {
		if slices.Contains(allowed, c) {
			return true
		}
	}
	return false
}
