package patch

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/affilink/internal/domain"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
)

func strPtr(s string) *string { return &s }

func TestNew_Empty(t *testing.T) {
	_, err := New(nil, nil, nil, nil, nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNew_InvalidPoint(t *testing.T) {
	pt := placement.AfterParagraph(-1)
	if _, err := New(&pt, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for negative paragraph")
	}
}

func TestNew_OversizedOverride(t *testing.T) {
	big := strings.Repeat("x", MaxTextSize+1)
	if _, err := New(nil, nil, nil, &big, nil); err == nil {
		t.Fatal("expected error for oversized title")
	}
}

func TestApply(t *testing.T) {
	base := placement.Placed{
		InstanceID: "i1",
		Point:      placement.End(),
		Display:    placement.Display{Layout: "card", Badge: "Top pick", CustomTitle: "Old"},
	}
	pt := placement.AfterParagraph(2)

	p, err := New(&pt, strPtr(""), nil, strPtr(""), strPtr("Short blurb"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got := p.Apply(base)

	if got.Point != pt {
		t.Errorf("Point = %v", got.Point)
	}
	if got.Display.Layout != placement.DefaultLayout {
		t.Errorf("Layout = %q, want default", got.Display.Layout)
	}
	if got.Display.Badge != "Top pick" {
		t.Errorf("Badge changed: %q", got.Display.Badge)
	}
	if got.Display.CustomTitle != "" {
		t.Errorf("CustomTitle = %q, want cleared", got.Display.CustomTitle)
	}
	if got.Display.CustomDescription != "Short blurb" {
		t.Errorf("CustomDescription = %q", got.Display.CustomDescription)
	}
	if got.InstanceID != "i1" {
		t.Error("instance id must be kept")
	}
	if base.Point != placement.End() {
		t.Error("Apply must not mutate its input")
	}
}
