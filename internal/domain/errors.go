package domain

import "errors"

// KeyPrefix is the default namespace for every key the engine writes.
const KeyPrefix = "affilink:"

var (
	// ErrDocumentNotFound signals a missing document in the content store.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrPlacementNotFound signals a missing product placement instance.
	ErrPlacementNotFound = errors.New("placement not found")
	// ErrProductNotFound signals that a catalog source has no such product.
	ErrProductNotFound = errors.New("product not found")
	// ErrSourceNotFound signals an unknown or disabled catalog source.
	ErrSourceNotFound = errors.New("source not found")
	// ErrSourceUnavailable signals a network, auth or payload failure of one catalog source.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMalformedDocument signals a document body that cannot be analyzed.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrNoCandidates signals that aggregation produced no products.
	ErrNoCandidates = errors.New("no candidates")
	// ErrQueueBusy signals that another drain holds the queue lease.
	ErrQueueBusy = errors.New("queue busy")
	// ErrInvalidTask signals a queue task with an unknown action or missing payload.
	ErrInvalidTask = errors.New("invalid task")
	// ErrInvalidInput signals a request that failed validation.
	ErrInvalidInput = errors.New("invalid input")
)
