package chi

import (
	"time"

	domdoc "github.com/kailas-cloud/affilink/internal/domain/document"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/placement/patch"
	"github.com/kailas-cloud/affilink/internal/domain/product"
	"github.com/kailas-cloud/affilink/internal/domain/task"
)

// ErrorCode is a machine-readable error code.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeDocumentNotFound  ErrorCode = "document_not_found"
	CodePlacementNotFound ErrorCode = "placement_not_found"
	CodeProductNotFound   ErrorCode = "product_not_found"
	CodeSourceNotFound    ErrorCode = "source_not_found"
	CodeSourceUnavailable ErrorCode = "source_unavailable"
	CodeQueueBusy         ErrorCode = "queue_busy"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type documentRequest struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Type       string   `json:"type"`
	Tags       []string `json:"tags"`
	Categories []int    `json:"categories"`
}

type documentResponse struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Type       string   `json:"type"`
	Tags       []string `json:"tags"`
	Categories []int    `json:"categories"`
}

func documentToResponse(d *domdoc.Document) documentResponse {
	return documentResponse{
		ID:         d.ID(),
		Title:      d.Title(),
		Body:       d.Body(),
		Type:       d.Type(),
		Tags:       nonNil(d.Tags()),
		Categories: nonNil(d.Categories()),
	}
}

type stateResponse struct {
	DocumentID string     `json:"document_id"`
	State      task.State `json:"state"`
}

type publishResponse struct {
	DocumentID string `json:"document_id"`
	Result     string `json:"result"`
}

type resetResponse struct {
	DocumentID string `json:"document_id"`
	Removed    int    `json:"removed"`
}

type placementRequest struct {
	Source    string            `json:"source"`
	ProductID string            `json:"product_id"`
	Point     *placement.Point  `json:"point"`
	Display   placement.Display `json:"display"`
}

type placementPatchRequest struct {
	Point             *placement.Point `json:"point"`
	Layout            *string          `json:"layout"`
	Badge             *string          `json:"badge"`
	CustomTitle       *string          `json:"custom_title"`
	CustomDescription *string          `json:"custom_description"`
}

func (r placementPatchRequest) toPatch() (patch.Patch, error) {
	return patch.New(r.Point, r.Layout, r.Badge, r.CustomTitle, r.CustomDescription)
}

type placementListResponse struct {
	Items []placement.Placed `json:"items"`
	Total int                `json:"total"`
}

type queueTask struct {
	Action     task.Action `json:"action"`
	DocumentID string      `json:"document_id"`
	InstanceID string      `json:"instance_id,omitempty"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
}

type queueResponse struct {
	Size  int         `json:"size"`
	Tasks []queueTask `json:"tasks"`
}

type sourcesResponse struct {
	Sources []string `json:"sources"`
}

type productListResponse struct {
	Items []product.Product `json:"items"`
	Total int               `json:"total"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
