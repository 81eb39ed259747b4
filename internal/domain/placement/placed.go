package placement

import (
	"time"

	"github.com/kailas-cloud/affilink/internal/domain/product"
)

// Display layouts.
const (
	LayoutCard       = "card"
	LayoutInline     = "inline"
	LayoutGrid       = "grid"
	LayoutComparison = "comparison"
)

// DefaultLayout is the card layout used by auto-inserted placements.
const DefaultLayout = LayoutCard

// Display holds operator-set presentation settings of one placement.
type Display struct {
	Layout            string `json:"layout"`
	Badge             string `json:"badge,omitempty"`
	CustomTitle       string `json:"custom_title,omitempty"`
	CustomDescription string `json:"custom_description,omitempty"`
}

// Placed is one product instance placed in one document.
// InstanceID is the identity refresh and removal key on.
type Placed struct {
	InstanceID   string          `json:"instance_id"`
	Product      product.Product `json:"product"`
	Point        Point           `json:"point"`
	Display      Display         `json:"display"`
	AutoInserted bool            `json:"auto_inserted"`
	AddedAt      time.Time       `json:"added_at"`
	UpdatedAt    time.Time       `json:"updated_at,omitzero"`
}

// Refreshed returns a copy carrying the fresh product snapshot while keeping every
// operator-owned field (instance, point, display, auto flag, added_at).
func (p Placed) Refreshed(fresh product.Product, now time.Time) Placed {
	out := p
	out.Product = fresh
	out.UpdatedAt = now
	return out
}

// LastRefresh returns the most recent data timestamp of the placement.
func (p Placed) LastRefresh() time.Time {
	if p.UpdatedAt.IsZero() {
		return p.AddedAt
	}
	return p.UpdatedAt
}

// Title returns the operator title override or the product title.
func (p Placed) Title() string {
	if p.Display.CustomTitle != "" {
		return p.Display.CustomTitle
	}
	return p.Product.Title
}

// Set maps instance IDs to placements of one document.
type Set map[string]Placed
