// Package chi exposes the affiliate linking engine over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/domain"
	domdoc "github.com/kailas-cloud/affilink/internal/domain/document"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/product"
	logpkg "github.com/kailas-cloud/affilink/internal/logger"
	"github.com/kailas-cloud/affilink/internal/repository/content"
	autolinkuc "github.com/kailas-cloud/affilink/internal/usecase/autolink"
	cataloguc "github.com/kailas-cloud/affilink/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/affilink/internal/usecase/health"
	placementuc "github.com/kailas-cloud/affilink/internal/usecase/placement"
	queueuc "github.com/kailas-cloud/affilink/internal/usecase/queue"
)

const (
	maxRequestBody   = 2 << 20
	defaultListLimit = 100
	maxListLimit     = 1000
	maxSearchLimit   = 50
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the document, placement, queue and catalog API.
type Server struct {
	documents     *content.Repo
	autolink      *autolinkuc.Service
	placements    *placementuc.Manager
	queue         *queueuc.Service
	catalog       *cataloguc.Aggregator
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	documents *content.Repo,
	autolink *autolinkuc.Service,
	placements *placementuc.Manager,
	queue *queueuc.Service,
	catalog *cataloguc.Aggregator,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		documents:  documents,
		autolink:   autolink,
		placements: placements,
		queue:      queue,
		catalog:    catalog,
		health:     health,
		logger:     logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrPlacementNotFound, http.StatusNotFound, CodePlacementNotFound),
		sentinelHandler(domain.ErrProductNotFound, http.StatusNotFound, CodeProductNotFound),
		sentinelHandler(domain.ErrSourceNotFound, http.StatusNotFound, CodeSourceNotFound),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidTask, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrSourceUnavailable, http.StatusBadGateway, CodeSourceUnavailable),
		sentinelHandler(domain.ErrQueueBusy, http.StatusConflict, CodeQueueBusy),
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/documents/{document}", func(r chi.Router) {
		r.Use(documentLogger)
		r.Put("/", s.PutDocument)
		r.Get("/", s.GetDocument)
		r.Post("/publish", s.PublishDocument)
		r.Post("/reset", s.ResetDocument)
		r.Get("/state", s.GetState)
		r.Get("/rendered", s.RenderDocument)

		r.Get("/placements", s.ListPlacements)
		r.Post("/placements", s.AddPlacement)
		r.Patch("/placements/{instance}", s.UpdatePlacement)
		r.Delete("/placements/{instance}", s.DeletePlacement)
		r.Post("/placements/{instance}/refresh", s.RefreshPlacement)
	})

	r.Get("/queue", s.GetQueue)
	r.Post("/queue/drain", s.DrainQueue)
	r.Delete("/queue", s.ClearQueue)

	r.Get("/sources", s.ListSources)
	r.Get("/sources/{source}/search", s.SearchSource)
	r.Get("/sources/{source}/products/{product}", s.GetProduct)
}

// PutDocument handles PUT /documents/{document}.
func (s *Server) PutDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	doc, err := domdoc.New(chi.URLParam(r, "document"), req.Title, req.Body, req.Type, req.Tags, req.Categories)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	created, err := s.documents.SaveDocument(r.Context(), doc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, documentToResponse(&doc))
}

// GetDocument handles GET /documents/{document}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.GetDocument(r.Context(), chi.URLParam(r, "document"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(&doc))
}

// PublishDocument handles POST /documents/{document}/publish.
func (s *Server) PublishDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "document")
	outcome, err := s.autolink.OnDocumentPublished(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if outcome == autolinkuc.Enqueued {
		status = http.StatusAccepted
	}
	logpkg.FromContext(r.Context()).Debug("Publish handled", zap.String("outcome", string(outcome)))
	writeJSON(w, status, publishResponse{DocumentID: id, Result: string(outcome)})
}

// ResetDocument handles POST /documents/{document}/reset.
func (s *Server) ResetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "document")
	removed, err := s.autolink.Reset(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{DocumentID: id, Removed: removed})
}

// GetState handles GET /documents/{document}/state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "document")
	st, err := s.autolink.State(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{DocumentID: id, State: st})
}

// RenderDocument handles GET /documents/{document}/rendered.
func (s *Server) RenderDocument(w http.ResponseWriter, r *http.Request) {
	html, err := s.placements.Render(r.Context(), chi.URLParam(r, "document"), nil)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

// ListPlacements handles GET /documents/{document}/placements.
func (s *Server) ListPlacements(w http.ResponseWriter, r *http.Request) {
	items, err := s.placements.List(r.Context(), chi.URLParam(r, "document"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, placementListResponse{Items: nonNil(items), Total: len(items)})
}

// AddPlacement handles POST /documents/{document}/placements.
// The product is fetched from its source so the placement holds a full snapshot.
func (s *Server) AddPlacement(w http.ResponseWriter, r *http.Request) {
	var req placementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Source == "" || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "source and product_id are required")
		return
	}
	if req.Point == nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "point is required")
		return
	}

	p, err := s.catalog.Fetch(r.Context(), req.Source, req.ProductID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	added, err := s.placements.Add(r.Context(), chi.URLParam(r, "document"), placement.Placed{
		Product: p,
		Point:   *req.Point,
		Display: req.Display,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added[0])
}

// UpdatePlacement handles PATCH /documents/{document}/placements/{instance}.
func (s *Server) UpdatePlacement(w http.ResponseWriter, r *http.Request) {
	var req placementPatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := req.toPatch()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	updated, err := s.placements.Update(r.Context(),
		chi.URLParam(r, "document"), chi.URLParam(r, "instance"), p)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeletePlacement handles DELETE /documents/{document}/placements/{instance}.
func (s *Server) DeletePlacement(w http.ResponseWriter, r *http.Request) {
	err := s.placements.Remove(r.Context(), chi.URLParam(r, "document"), chi.URLParam(r, "instance"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshPlacement handles POST /documents/{document}/placements/{instance}/refresh.
func (s *Server) RefreshPlacement(w http.ResponseWriter, r *http.Request) {
	refreshed, err := s.autolink.Refresh(r.Context(),
		chi.URLParam(r, "document"), chi.URLParam(r, "instance"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshed)
}

// GetQueue handles GET /queue.
func (s *Server) GetQueue(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", defaultListLimit, maxListLimit)
	if !ok {
		return
	}

	size, err := s.queue.Size(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	tasks, err := s.queue.List(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := queueResponse{Size: size, Tasks: make([]queueTask, len(tasks))}
	for i, t := range tasks {
		resp.Tasks[i] = queueTask{
			Action:     t.Action,
			DocumentID: t.DocumentID,
			InstanceID: t.InstanceID,
			EnqueuedAt: t.EnqueuedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// DrainQueue handles POST /queue/drain. A drain already in progress is reported as busy.
func (s *Server) DrainQueue(w http.ResponseWriter, r *http.Request) {
	batch, ok := intParam(w, r, "batch", 0, maxListLimit)
	if !ok {
		return
	}
	res, err := s.queue.Drain(r.Context(), batch)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ClearQueue handles DELETE /queue.
func (s *Server) ClearQueue(w http.ResponseWriter, r *http.Request) {
	if err := s.queue.Clear(r.Context()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSources handles GET /sources.
func (s *Server) ListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sourcesResponse{Sources: nonNil(s.catalog.Sources())})
}

// SearchSource handles GET /sources/{source}/search?q=.
func (s *Server) SearchSource(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query parameter q is required")
		return
	}
	limit, ok := intParam(w, r, "limit", 10, maxSearchLimit)
	if !ok {
		return
	}

	items, err := s.catalog.Search(r.Context(), chi.URLParam(r, "source"), q, product.SearchOptions{
		Limit:   limit,
		Country: r.URL.Query().Get("country"),
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, productListResponse{Items: nonNil(items), Total: len(items)})
}

// GetProduct handles GET /sources/{source}/products/{product}.
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Fetch(r.Context(), chi.URLParam(r, "source"), chi.URLParam(r, "product"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// documentLogger tags the request logger with the addressed document.
func documentLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logpkg.With(r.Context(), zap.String("document_id", chi.URLParam(r, "document")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// intParam parses an optional positive query parameter capped at limit.
func intParam(w http.ResponseWriter, r *http.Request, name string, def, limit int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, name+" must be a non-negative integer")
		return 0, false
	}
	return min(n, limit), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message. Validation errors carry their
// detail; every other error collapses to its sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrInvalidTask) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrPlacementNotFound,
		domain.ErrProductNotFound,
		domain.ErrSourceNotFound,
		domain.ErrSourceUnavailable,
		domain.ErrQueueBusy,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
