package content

import (
	"encoding/json"
	"fmt"

	domdoc "github.com/kailas-cloud/affilink/internal/domain/document"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
)

// documentDTO is the stored JSON form of a document.
type documentDTO struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Type       string   `json:"type"`
	Tags       []string `json:"tags,omitempty"`
	Categories []int    `json:"categories,omitempty"`
}

func encodeDocument(doc domdoc.Document) ([]byte, error) {
	data, err := json.Marshal(documentDTO{
		ID:         doc.ID(),
		Title:      doc.Title(),
		Body:       doc.Body(),
		Type:       doc.Type(),
		Tags:       doc.Tags(),
		Categories: doc.Categories(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

func decodeDocument(data []byte) (domdoc.Document, error) {
	var dto documentDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return domdoc.Document{}, fmt.Errorf("unmarshal document: %w", err)
	}
	return domdoc.Reconstruct(dto.ID, dto.Title, dto.Body, dto.Type, dto.Tags, dto.Categories), nil
}

// buildPlacementFields converts a placement set into hash fields keyed by instance ID.
func buildPlacementFields(set placement.Set) (map[string]string, error) {
	fields := make(map[string]string, len(set))
	for id, p := range set {
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal placement %s: %w", id, err)
		}
		fields[id] = string(data)
	}
	return fields, nil
}

// parsePlacementFields converts hash fields back into a placement set.
// Undecodable entries are returned in bad so the caller can log them.
func parsePlacementFields(fields map[string]string) (set placement.Set, bad []string) {
	set = make(placement.Set, len(fields))
	for id, raw := range fields {
		var p placement.Placed
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			bad = append(bad, id)
			continue
		}
		p.InstanceID = id
		set[id] = p
	}
	return set, bad
}
