package relevance

import (
	"fmt"
	"math"
	"testing"

	"github.com/kailas-cloud/affilink/internal/domain/keyword"
	"github.com/kailas-cloud/affilink/internal/domain/product"
)

const eps = 1e-9

func kw(terms ...string) keyword.Set {
	out := make(keyword.Set, len(terms))
	for i, t := range terms {
		out[i] = keyword.Keyword{Term: t}
	}
	return out
}

func approx(a, b float64) bool { return math.Abs(a-b) < eps }

func TestWeight(t *testing.T) {
	tests := []struct {
		i    int
		want float64
	}{{0, 1.0}, {1, 0.9}, {9, 0.1}, {10, 0}, {25, 0}}

	for _, tc := range tests {
		if got := Weight(tc.i); !approx(got, tc.want) {
			t.Errorf("Weight(%d) = %v, want %v", tc.i, got, tc.want)
		}
	}
}

func TestScore_KeywordMatches(t *testing.T) {
	p := product.Product{Title: "Trail Hiking BOOTS", Description: "waterproof leather"}

	got := Score(p, kw("boots", "tent", "Waterproof"))
	// 1.0 (boots) + 0.8 (waterproof)
	if !approx(got, 1.8) {
		t.Errorf("Score = %v, want 1.8", got)
	}
}

func TestScore_Bonuses(t *testing.T) {
	base := product.Product{Title: "x", Rating: 4.0}

	if got := Score(base, nil); got != 0 {
		t.Errorf("base score = %v", got)
	}

	avail := base
	avail.Available = true
	if got := Score(avail, nil) - Score(base, nil); !approx(got, AvailableBonus) {
		t.Errorf("availability delta = %v", got)
	}

	rated := base
	rated.Rating = 4.01
	if got := Score(rated, nil) - Score(base, nil); !approx(got, HighRatingBonus) {
		t.Errorf("rating delta = %v", got)
	}
}

func TestScore_OnlyFirstTenContribute(t *testing.T) {
	var terms []string
	for i := range 15 {
		terms = append(terms, fmt.Sprintf("miss%d", i))
	}
	terms[12] = "match"
	p := product.Product{Title: "match"}

	if got := Score(p, kw(terms...)); got != 0 {
		t.Errorf("keyword at rank 12 contributed %v", got)
	}
}

func TestScore_EmptyKeywordIgnored(t *testing.T) {
	p := product.Product{Title: "anything"}
	if got := Score(p, kw("", "thing")); !approx(got, 0.9) {
		t.Errorf("Score = %v, want 0.9", got)
	}
}

func TestScore_MonotonicInMatches(t *testing.T) {
	keywords := kw("alpha", "beta", "gamma", "delta")
	texts := []string{"", "alpha", "alpha beta", "alpha beta gamma", "alpha beta gamma delta"}

	prev := -1.0
	for _, text := range texts {
		s := Score(product.Product{Title: text}, keywords)
		if s < 0 {
			t.Fatalf("negative score %v", s)
		}
		if s < prev {
			t.Fatalf("score decreased: %v < %v for %q", s, prev, text)
		}
		prev = s
	}
}
