package affilink

import (
	"github.com/kailas-cloud/affilink/internal/domain"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/product"
	"github.com/kailas-cloud/affilink/internal/domain/task"
	autolinkuc "github.com/kailas-cloud/affilink/internal/usecase/autolink"
	cataloguc "github.com/kailas-cloud/affilink/internal/usecase/catalog"
	queueuc "github.com/kailas-cloud/affilink/internal/usecase/queue"
)

// Document is an article handed to the engine.
type Document struct {
	ID         string
	Title      string
	Body       string
	Type       string // defaults to "post"
	Tags       []string
	Categories []int
}

type (
	// Source is a catalog provider. Expected failures should wrap ErrSourceUnavailable,
	// a missing product ErrProductNotFound.
	Source = cataloguc.Source
	// Product is a catalog item snapshot.
	Product = product.Product
	// SearchOptions narrows a catalog search.
	SearchOptions = product.SearchOptions
	// Placement is a product placed in a document.
	Placement = placement.Placed
	// State is the auto-link state of a document.
	State = task.State
	// PublishResult explains what a publish did.
	PublishResult = autolinkuc.Eligibility
	// DrainResult summarizes one queue drain.
	DrainResult = queueuc.DrainResult
	// AutoLinkSettings controls which documents are auto-linked and how densely.
	AutoLinkSettings = autolinkuc.Settings
	// QueueSettings tunes the drain loop.
	QueueSettings = queueuc.Config
)

// Document states.
const (
	StateUnlinked   = task.StateUnlinked
	StateQueued     = task.StateQueued
	StateProcessing = task.StateProcessing
	StateLinked     = task.StateLinked
)

// Publish results.
const (
	Enqueued         = autolinkuc.Enqueued
	Disabled         = autolinkuc.Disabled
	TypeNotAllowed   = autolinkuc.TypeNotAllowed
	CategoryExcluded = autolinkuc.CategoryExcluded
	AlreadyLinked    = autolinkuc.AlreadyLinked
	AlreadyQueued    = autolinkuc.AlreadyQueued
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrDocumentNotFound  = domain.ErrDocumentNotFound
	ErrPlacementNotFound = domain.ErrPlacementNotFound
	ErrProductNotFound   = domain.ErrProductNotFound
	ErrSourceNotFound    = domain.ErrSourceNotFound
	ErrSourceUnavailable = domain.ErrSourceUnavailable
	ErrInvalidInput      = domain.ErrInvalidInput
)

// DefaultAutoLinkSettings returns enabled settings for the "post" type.
func DefaultAutoLinkSettings() AutoLinkSettings { return autolinkuc.DefaultSettings() }

// DefaultQueueSettings returns the default queue settings.
func DefaultQueueSettings() QueueSettings { return queueuc.DefaultConfig() }
