package chi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/task"
	queueuc "github.com/kailas-cloud/affilink/internal/usecase/queue"
)

func TestPutDocument_CreateThenReplace(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPut, "/documents/d1", map[string]any{"title": "A", "body": "<p>x</p>"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	doc := decode[documentResponse](t, rr)
	if doc.Type != "post" || doc.Tags == nil {
		t.Errorf("document = %+v", doc)
	}

	rr = f.do(http.MethodPut, "/documents/d1", map[string]any{"title": "B"})
	if rr.Code != http.StatusOK {
		t.Fatalf("replace: %d", rr.Code)
	}

	rr = f.do(http.MethodGet, "/documents/d1", nil)
	if got := decode[documentResponse](t, rr); got.Title != "B" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestPutDocument_Validation(t *testing.T) {
	f := newFixture(t)

	expectError(t, f.do(http.MethodPut, "/documents/bad%20id", map[string]any{"title": "x"}),
		http.StatusBadRequest, CodeValidationFailed)
	expectError(t, f.do(http.MethodPut, "/documents/d1", map[string]any{"unknown": 1}),
		http.StatusBadRequest, CodeBadRequest)
}

func TestGetDocument_NotFound(t *testing.T) {
	f := newFixture(t)
	expectError(t, f.do(http.MethodGet, "/documents/missing", nil), http.StatusNotFound, CodeDocumentNotFound)
}

func TestPublishDrainRender(t *testing.T) {
	f := newFixture(t)
	f.putDocument("d1")

	rr := f.do(http.MethodPost, "/documents/d1/publish", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("publish: %d %s", rr.Code, rr.Body.String())
	}
	if got := decode[publishResponse](t, rr); got.Result != "enqueued" {
		t.Errorf("result = %q", got.Result)
	}

	rr = f.do(http.MethodPost, "/documents/d1/publish", nil)
	if got := decode[publishResponse](t, rr); got.Result != "already_queued" {
		t.Errorf("second publish = %q", got.Result)
	}

	rr = f.do(http.MethodGet, "/documents/d1/state", nil)
	if got := decode[stateResponse](t, rr); got.State != task.StateQueued {
		t.Errorf("state = %q", got.State)
	}

	rr = f.do(http.MethodPost, "/queue/drain", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("drain: %d %s", rr.Code, rr.Body.String())
	}
	res := decode[queueuc.DrainResult](t, rr)
	if res.Processed != 1 || res.Remaining != 0 {
		t.Errorf("drain = %+v", res)
	}

	rr = f.do(http.MethodGet, "/documents/d1/state", nil)
	if got := decode[stateResponse](t, rr); got.State != task.StateLinked {
		t.Errorf("state after drain = %q", got.State)
	}

	rr = f.do(http.MethodGet, "/documents/d1/placements", nil)
	list := decode[placementListResponse](t, rr)
	if list.Total == 0 {
		t.Fatal("expected auto placements")
	}
	for _, p := range list.Items {
		if !p.AutoInserted {
			t.Errorf("placement %s not auto inserted", p.InstanceID)
		}
	}

	rr = f.do(http.MethodGet, "/documents/d1/rendered", nil)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "Espresso Grinder Pro") {
		t.Errorf("rendered body lacks product: %s", rr.Body.String())
	}

	rr = f.do(http.MethodPost, "/documents/d1/reset", nil)
	if got := decode[resetResponse](t, rr); got.Removed != list.Total {
		t.Errorf("reset removed %d, want %d", got.Removed, list.Total)
	}
	rr = f.do(http.MethodGet, "/documents/d1/state", nil)
	if got := decode[stateResponse](t, rr); got.State != task.StateUnlinked {
		t.Errorf("state after reset = %q", got.State)
	}
}

func TestPublish_UnknownDocument(t *testing.T) {
	f := newFixture(t)
	expectError(t, f.do(http.MethodPost, "/documents/nope/publish", nil), http.StatusNotFound, CodeDocumentNotFound)
}

func TestManualPlacementLifecycle(t *testing.T) {
	f := newFixture(t)
	f.putDocument("d1")

	rr := f.do(http.MethodPost, "/documents/d1/placements", map[string]any{
		"source":     "shop",
		"product_id": "p1",
		"point":      map[string]any{"position": "after_paragraph", "paragraph_index": 1},
		"display":    map[string]any{"layout": "inline", "badge": "best-overall"},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rr.Code, rr.Body.String())
	}
	added := decode[placement.Placed](t, rr)
	if added.InstanceID == "" || added.AutoInserted || added.Product.Title != "Espresso Grinder Pro" {
		t.Errorf("added = %+v", added)
	}

	rr = f.do(http.MethodPatch, "/documents/d1/placements/"+added.InstanceID, map[string]any{
		"point":        map[string]any{"position": "end"},
		"custom_title": "Our pick",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", rr.Code, rr.Body.String())
	}
	updated := decode[placement.Placed](t, rr)
	if updated.Point.Kind != placement.KindEnd || updated.Display.CustomTitle != "Our pick" {
		t.Errorf("updated = %+v", updated)
	}

	rr = f.do(http.MethodPost, "/documents/d1/placements/"+added.InstanceID+"/refresh", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rr.Code, rr.Body.String())
	}

	rr = f.do(http.MethodDelete, "/documents/d1/placements/"+added.InstanceID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rr.Code)
	}
	expectError(t, f.do(http.MethodDelete, "/documents/d1/placements/"+added.InstanceID, nil),
		http.StatusNotFound, CodePlacementNotFound)
}

func TestAddPlacement_Errors(t *testing.T) {
	f := newFixture(t)
	f.putDocument("d1")
	point := map[string]any{"position": "start"}

	expectError(t, f.do(http.MethodPost, "/documents/d1/placements", map[string]any{"source": "shop"}),
		http.StatusBadRequest, CodeValidationFailed)
	expectError(t, f.do(http.MethodPost, "/documents/d1/placements", map[string]any{
		"source": "nope", "product_id": "p1", "point": point,
	}), http.StatusNotFound, CodeSourceNotFound)
	expectError(t, f.do(http.MethodPost, "/documents/d1/placements", map[string]any{
		"source": "shop", "product_id": "p9", "point": point,
	}), http.StatusNotFound, CodeProductNotFound)

	f.source.setFail(true)
	expectError(t, f.do(http.MethodPost, "/documents/d1/placements", map[string]any{
		"source": "shop", "product_id": "p1", "point": point,
	}), http.StatusBadGateway, CodeSourceUnavailable)
}

func TestUpdatePlacement_EmptyPatch(t *testing.T) {
	f := newFixture(t)
	f.putDocument("d1")
	expectError(t, f.do(http.MethodPatch, "/documents/d1/placements/x", map[string]any{}),
		http.StatusBadRequest, CodeValidationFailed)
}

func TestQueueEndpoints(t *testing.T) {
	f := newFixture(t)
	f.putDocument("d1")
	f.putDocument("d2")
	_ = f.do(http.MethodPost, "/documents/d1/publish", nil)
	_ = f.do(http.MethodPost, "/documents/d2/publish", nil)

	rr := f.do(http.MethodGet, "/queue?limit=1", nil)
	q := decode[queueResponse](t, rr)
	if q.Size != 2 || len(q.Tasks) != 1 || q.Tasks[0].DocumentID != "d1" {
		t.Errorf("queue = %+v", q)
	}

	expectError(t, f.do(http.MethodGet, "/queue?limit=-1", nil), http.StatusBadRequest, CodeValidationFailed)

	rr = f.do(http.MethodDelete, "/queue", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("clear: %d", rr.Code)
	}
	rr = f.do(http.MethodGet, "/queue", nil)
	if q := decode[queueResponse](t, rr); q.Size != 0 || len(q.Tasks) != 0 {
		t.Errorf("queue after clear = %+v", q)
	}
}

func TestSources(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/sources", nil)
	if got := decode[sourcesResponse](t, rr); len(got.Sources) != 1 || got.Sources[0] != "shop" {
		t.Errorf("sources = %+v", got)
	}

	rr = f.do(http.MethodGet, "/sources/shop/search?q=grinder&limit=5", nil)
	if got := decode[productListResponse](t, rr); got.Total != 1 {
		t.Errorf("search = %+v", got)
	}

	expectError(t, f.do(http.MethodGet, "/sources/shop/search", nil), http.StatusBadRequest, CodeValidationFailed)
	expectError(t, f.do(http.MethodGet, "/sources/nope/search?q=x", nil), http.StatusNotFound, CodeSourceNotFound)

	rr = f.do(http.MethodGet, "/sources/shop/products/p1", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("get product: %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health: %d", rr.Code)
	}
	if got := decode[healthResponse](t, rr); got.Status != "ok" || got.Checks["source:shop"] != "ok" {
		t.Errorf("health = %+v", got)
	}

	f.source.setFail(true)
	rr = f.do(http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("degraded health must stay 200, got %d", rr.Code)
	}
	if got := decode[healthResponse](t, rr); got.Status != "degraded" {
		t.Errorf("status = %q", got.Status)
	}
}

func TestRouter_AuthAndRequestID(t *testing.T) {
	f := newFixture(t, "secret")

	expectError(t, f.do(http.MethodGet, "/sources", nil), http.StatusUnauthorized, CodeUnauthorized)

	rr := f.do(http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("health must bypass auth, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := newFixture(t)
	rr := f.do(http.MethodGet, "/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	expectError(t, rr, http.StatusInternalServerError, CodeInternalError)
}
