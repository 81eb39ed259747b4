package placement

import "github.com/kailas-cloud/affilink/internal/domain/placement"

// MinInterleaveParagraphs is the paragraph count below which every product is appended.
const MinInterleaveParagraphs = 3

// Plan spreads count products evenly over totalParagraphs, keeping at least minSpacing
// paragraphs between insertions. It always returns exactly count points (none for
// count <= 0); slots that do not fit are filled with End.
func Plan(totalParagraphs, count, minSpacing int) []placement.Point {
	if count <= 0 {
		return []placement.Point{}
	}

	points := make([]placement.Point, 0, count)
	if totalParagraphs >= MinInterleaveParagraphs {
		step := max(minSpacing, totalParagraphs/(count+1), 1)
		for i := range count {
			// (i+1)*step < totalParagraphs, without overflowing for large spacings.
			if step > (totalParagraphs-1)/(i+1) {
				break
			}
			points = append(points, placement.AfterParagraph((i+1)*step))
		}
	}

	for len(points) < count {
		points = append(points, placement.End())
	}
	return points
}
