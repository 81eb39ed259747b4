// Package autolink decides which documents get products and places them.
package autolink

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/domain"
	domdoc "github.com/kailas-cloud/affilink/internal/domain/document"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/task"
	"github.com/kailas-cloud/affilink/internal/usecase/keyword"
	planner "github.com/kailas-cloud/affilink/internal/usecase/placement"
	"github.com/kailas-cloud/affilink/internal/usecase/structure"
)

// Default settings.
const (
	DefaultMaxProducts = 5
	DefaultMinSpacing  = 3
)

// Settings controls which documents are auto-linked and how densely.
type Settings struct {
	Enabled bool
	// PostTypes lists the eligible document types.
	PostTypes []string
	// Categories restricts eligibility to these categories; empty allows all.
	Categories  []int
	MaxProducts int
	MinSpacing  int
}

// DefaultSettings returns enabled settings for the "post" type.
func DefaultSettings() Settings {
	return Settings{
		Enabled:     true,
		PostTypes:   []string{domdoc.DefaultType},
		MaxProducts: DefaultMaxProducts,
		MinSpacing:  DefaultMinSpacing,
	}
}

// Eligibility explains the outcome of a publish event.
type Eligibility string

// Publish outcomes.
const (
	Enqueued         Eligibility = "enqueued"
	Disabled         Eligibility = "disabled"
	TypeNotAllowed   Eligibility = "post_type_not_allowed"
	CategoryExcluded Eligibility = "category_not_allowed"
	AlreadyLinked    Eligibility = "already_linked"
	AlreadyQueued    Eligibility = "already_queued"
)

// Result summarizes one auto-link run.
type Result struct {
	Skipped  bool `json:"skipped"`
	Keywords int  `json:"keywords"`
	Placed   int  `json:"placed"`
}

// Service runs the auto-linking pipeline.
type Service struct {
	content    ContentStore
	search     Searcher
	placements Placements
	queue      Queue
	trigger    Trigger
	settings   Settings
	logger     *zap.Logger
}

// New creates an auto-link service.
func New(content ContentStore, search Searcher, placements Placements, queue Queue, settings Settings, logger *zap.Logger) *Service {
	if settings.MaxProducts <= 0 {
		settings.MaxProducts = DefaultMaxProducts
	}
	if settings.MinSpacing <= 0 {
		settings.MinSpacing = DefaultMinSpacing
	}
	if len(settings.PostTypes) == 0 {
		settings.PostTypes = []string{domdoc.DefaultType}
	}
	return &Service{
		content:    content,
		search:     search,
		placements: placements,
		queue:      queue,
		settings:   settings,
		logger:     logger.With(zap.String("component", "autolink")),
	}
}

// WithTrigger sets the worker woken after an enqueue.
func (s *Service) WithTrigger(t Trigger) *Service {
	s.trigger = t
	return s
}

// Settings returns the effective settings.
func (s *Service) Settings() Settings { return s.settings }

// OnDocumentPublished enqueues the document for auto-linking when it is eligible and
// not already linked or pending.
func (s *Service) OnDocumentPublished(ctx context.Context, documentID string) (Eligibility, error) {
	if !s.settings.Enabled {
		return Disabled, nil
	}

	doc, err := s.content.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	if !slices.Contains(s.settings.PostTypes, doc.Type()) {
		return TypeNotAllowed, nil
	}
	if !doc.InCategory(s.settings.Categories) {
		return CategoryExcluded, nil
	}

	linked, err := s.content.IsProcessed(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("check linked: %w", err)
	}
	if linked {
		return AlreadyLinked, nil
	}

	enqueued, err := s.queue.EnqueueAutoLink(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("enqueue: %w", err)
	}
	if !enqueued {
		return AlreadyQueued, nil
	}

	s.logger.Info("Document queued for auto-linking", zap.String("document_id", documentID))
	if s.trigger != nil {
		s.trigger.Trigger()
	}
	return Enqueued, nil
}

// State returns the link state of a document.
func (s *Service) State(ctx context.Context, documentID string) (task.State, error) {
	if _, err := s.content.GetDocument(ctx, documentID); err != nil {
		return "", err
	}
	linked, err := s.content.IsProcessed(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("check linked: %w", err)
	}
	if linked {
		return task.StateLinked, nil
	}
	return s.queue.State(ctx, documentID)
}

// Process runs the auto-link pipeline for one document: extract keywords, aggregate
// candidates, plan insertion points and store the placements. A document that yields
// no candidates is still marked linked. Already linked documents are skipped.
func (s *Service) Process(ctx context.Context, documentID string) (Result, error) {
	log := s.logger.With(zap.String("document_id", documentID))

	doc, err := s.content.GetDocument(ctx, documentID)
	if err != nil {
		return Result{}, err
	}
	linked, err := s.content.IsProcessed(ctx, documentID)
	if err != nil {
		return Result{}, fmt.Errorf("check linked: %w", err)
	}
	if linked {
		log.Debug("Document already linked")
		return Result{Skipped: true}, nil
	}

	keywords := keyword.Extract(doc)
	res := Result{Keywords: len(keywords)}

	candidates := s.search.SearchRelevant(ctx, keywords, s.settings.MaxProducts)
	if len(candidates) == 0 {
		log.Info("Auto-link found nothing", zap.Int("keywords", len(keywords)), zap.Error(domain.ErrNoCandidates))
		return res, s.markLinked(ctx, documentID)
	}

	layout := structure.Analyze(doc.Body())
	if layout.ParagraphCount() == 0 && doc.Body() != "" {
		log.Warn("No paragraphs found, appending products", zap.Error(domain.ErrMalformedDocument))
	}
	points := planner.Plan(layout.ParagraphCount(), len(candidates), s.settings.MinSpacing)

	// A previous run may have stored placements before failing to set the flag.
	if n, err := s.placements.RemoveAuto(ctx, documentID); err != nil {
		return res, fmt.Errorf("clear previous run: %w", err)
	} else if n > 0 {
		log.Warn("Replacing placements of an unfinished run", zap.Int("removed", n))
	}

	items := make([]placement.Placed, len(candidates))
	for i, c := range candidates {
		items[i] = placement.Placed{
			Product:      c.Product,
			Point:        points[i],
			Display:      placement.Display{Layout: placement.DefaultLayout},
			AutoInserted: true,
		}
	}
	added, err := s.placements.Add(ctx, documentID, items...)
	if err != nil {
		return res, fmt.Errorf("store placements: %w", err)
	}
	res.Placed = len(added)

	if err := s.markLinked(ctx, documentID); err != nil {
		return res, err
	}
	log.Info("Document auto-linked",
		zap.Int("keywords", res.Keywords),
		zap.Int("placed", res.Placed),
		zap.Int("paragraphs", layout.ParagraphCount()),
	)
	return res, nil
}

// Reset removes the auto-inserted placements of a document and returns it to the
// unlinked state. Manually added placements are kept.
func (s *Service) Reset(ctx context.Context, documentID string) (int, error) {
	if _, err := s.content.GetDocument(ctx, documentID); err != nil {
		return 0, err
	}
	removed, err := s.placements.RemoveAuto(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("remove auto placements: %w", err)
	}
	if err := s.content.MarkProcessed(ctx, documentID, false); err != nil {
		return removed, fmt.Errorf("clear linked: %w", err)
	}
	if err := s.queue.ClearState(ctx, documentID); err != nil {
		return removed, fmt.Errorf("clear marker: %w", err)
	}
	s.logger.Info("Auto-link reset",
		zap.String("document_id", documentID),
		zap.Int("removed", removed),
	)
	return removed, nil
}

// Refresh replaces the product data of one placement with fresh source data.
func (s *Service) Refresh(ctx context.Context, documentID, instanceID string) (placement.Placed, error) {
	return s.placements.Refresh(ctx, documentID, instanceID)
}

// HandleAutoLink is the queue handler of auto_link tasks.
func (s *Service) HandleAutoLink(ctx context.Context, t task.Task) error {
	_, err := s.Process(ctx, t.DocumentID)
	return err
}

// HandleRefresh is the queue handler of refresh_product tasks. Placements removed
// since the task was queued are ignored.
func (s *Service) HandleRefresh(ctx context.Context, t task.Task) error {
	_, err := s.Refresh(ctx, t.DocumentID, t.InstanceID)
	if errors.Is(err, domain.ErrPlacementNotFound) {
		s.logger.Debug("Refresh target gone",
			zap.String("document_id", t.DocumentID),
			zap.String("instance_id", t.InstanceID),
		)
		return nil
	}
	return err
}

func (s *Service) markLinked(ctx context.Context, documentID string) error {
	if err := s.content.MarkProcessed(ctx, documentID, true); err != nil {
		return fmt.Errorf("mark linked: %w", err)
	}
	return nil
}
