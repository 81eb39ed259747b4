// Package patch describes partial updates of a placed product.
package patch

import (
	"fmt"

	"github.com/kailas-cloud/affilink/internal/domain"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
)

// MaxTextSize is the maximum size in bytes of an operator text override.
const MaxTextSize = 4096

// Patch is a partial placement update.
// Nil fields are unchanged; an empty string clears an override.
type Patch struct {
	point             *placement.Point
	layout            *string
	badge             *string
	customTitle       *string
	customDescription *string
}

// New validates and creates a Patch. At least one field must be provided.
func New(point *placement.Point, layout, badge, customTitle, customDescription *string) (Patch, error) {
	if point == nil && layout == nil && badge == nil && customTitle == nil && customDescription == nil {
		return Patch{}, fmt.Errorf("at least one field must be provided: %w", domain.ErrInvalidInput)
	}
	if point != nil {
		if err := point.Validate(); err != nil {
			return Patch{}, err
		}
	}
	for _, s := range []*string{badge, customTitle, customDescription} {
		if s != nil && len(*s) > MaxTextSize {
			return Patch{}, fmt.Errorf("override too large (max %d bytes): %w", MaxTextSize, domain.ErrInvalidInput)
		}
	}
	return Patch{
		point:             point,
		layout:            layout,
		badge:             badge,
		customTitle:       customTitle,
		customDescription: customDescription,
	}, nil
}

// Point returns the new insertion point, or nil if unchanged.
func (p Patch) Point() *placement.Point { return p.point }

// Apply returns a copy of pl with the patch applied.
func (p Patch) Apply(pl placement.Placed) placement.Placed {
	if p.point != nil {
		pl.Point = *p.point
	}
	if p.layout != nil {
		pl.Display.Layout = *p.layout
		if pl.Display.Layout == "" {
			pl.Display.Layout = placement.DefaultLayout
		}
	}
	if p.badge != nil {
		pl.Display.Badge = *p.badge
	}
	if p.customTitle != nil {
		pl.Display.CustomTitle = *p.customTitle
	}
	if p.customDescription != nil {
		pl.Display.CustomDescription = *p.customDescription
	}
	return pl
}
