package document

import (
	"strings"
	"testing"
)

func TestNew_Valid(t *testing.T) {
	doc, err := New("post-1", "Best Hiking Boots", "<p>hello</p>", "review",
		[]string{"boots", "outdoor"}, []int{3, 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != "post-1" {
		t.Errorf("ID() = %q", doc.ID())
	}
	if doc.Title() != "Best Hiking Boots" {
		t.Errorf("Title() = %q", doc.Title())
	}
	if doc.Type() != "review" {
		t.Errorf("Type() = %q", doc.Type())
	}
	if len(doc.Tags()) != 2 || doc.Tags()[0] != "boots" {
		t.Errorf("Tags() = %v", doc.Tags())
	}
	if len(doc.Categories()) != 2 {
		t.Errorf("Categories() = %v", doc.Categories())
	}
}

func TestNew_DefaultType(t *testing.T) {
	doc, err := New("post-1", "t", "b", "", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Type() != DefaultType {
		t.Errorf("Type() = %q, want %q", doc.Type(), DefaultType)
	}
}

func TestNew_ClonesSlices(t *testing.T) {
	tags := []string{"a"}
	cats := []int{1}

	doc, _ := New("post-1", "t", "b", "", tags, cats)

	tags[0] = "mutated"
	cats[0] = 99

	if doc.Tags()[0] != "a" {
		t.Error("tag mutation leaked into document")
	}
	if doc.Categories()[0] != 1 {
		t.Error("category mutation leaked into document")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		id   string
		body string
	}{
		{"empty id", "", "b"},
		{"long id", strings.Repeat("a", 257), "b"},
		{"bad chars", "a b", "b"},
		{"body too large", "ok", strings.Repeat("x", MaxBodySize+1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.id, "t", tc.body, "", nil, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestInCategory(t *testing.T) {
	doc := Reconstruct("p", "t", "b", "post", nil, []int{4, 9})

	if !doc.InCategory(nil) {
		t.Error("empty allow-list must match")
	}
	if !doc.InCategory([]int{1, 9}) {
		t.Error("expected match on 9")
	}
	if doc.InCategory([]int{1, 2}) {
		t.Error("unexpected match")
	}
}
