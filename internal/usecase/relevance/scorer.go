// Package relevance scores catalog products against ranked keywords.
package relevance

import (
	"strings"

	"github.com/kailas-cloud/affilink/internal/domain/keyword"
	"github.com/kailas-cloud/affilink/internal/domain/product"
)

// Score bonuses.
const (
	AvailableBonus   = 0.5
	HighRatingBonus  = 0.3
	HighRatingCutoff = 4.0
)

// Weight returns the contribution of the keyword at rank i: (10-i)/10, never below zero.
func Weight(i int) float64 {
	return max(0, float64(10-i)/10)
}

// Score sums the weights of keywords found (case-insensitive substring) in the product
// title and description, then adds availability and rating bonuses.
func Score(p product.Product, keywords keyword.Set) float64 {
	text := strings.ToLower(p.Text())

	var score float64
	for i, k := range keywords {
		w := Weight(i)
		if w == 0 {
			break
		}
		term := strings.ToLower(k.Term)
		if term == "" {
			continue
		}
		if strings.Contains(text, term) {
			score += w
		}
	}

	if p.Available {
		score += AvailableBonus
	}
	if p.Rating > HighRatingCutoff {
		score += HighRatingBonus
	}
	return score
}
