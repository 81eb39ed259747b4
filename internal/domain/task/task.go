package task

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/affilink/internal/domain"
)

// Action tags the work a queued task performs.
type Action string

// Task actions.
const (
	ActionAutoLink       Action = "auto_link"
	ActionRefreshProduct Action = "refresh_product"
)

// Task is one queued unit of background work.
type Task struct {
	Action     Action    `json:"action"`
	DocumentID string    `json:"document_id"`
	InstanceID string    `json:"instance_id,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// AutoLink creates an auto-link task for a document.
func AutoLink(documentID string, now time.Time) Task {
	return Task{Action: ActionAutoLink, DocumentID: documentID, EnqueuedAt: now}
}

// RefreshProduct creates a refresh task for one placement instance.
func RefreshProduct(documentID, instanceID string, now time.Time) Task {
	return Task{
		Action:     ActionRefreshProduct,
		DocumentID: documentID,
		InstanceID: instanceID,
		EnqueuedAt: now,
	}
}

// Validate checks the payload matches the action.
func (t Task) Validate() error {
	if t.DocumentID == "" {
		return fmt.Errorf("document_id is required: %w", domain.ErrInvalidTask)
	}
	switch t.Action {
	case ActionAutoLink:
		return nil
	case ActionRefreshProduct:
		if t.InstanceID == "" {
			return fmt.Errorf("instance_id is required for %s: %w", t.Action, domain.ErrInvalidTask)
		}
		return nil
	default:
		return fmt.Errorf("unknown action %q: %w", t.Action, domain.ErrInvalidTask)
	}
}
