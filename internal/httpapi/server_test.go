package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smallcodebases/shopping/internal/shopping"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store, err := shopping.Open("memory://")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server, err := NewServer(store, logger)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	return server.Router()
}

func doPost(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postOK(t *testing.T, h http.Handler, path, body string) map[string]int64 {
	t.Helper()
	rec := doPost(t, h, path, body)
	if rec.Code != http.StatusOK && rec.Code != http.StatusCreated {
		t.Fatalf("POST %s: got %d, body %q", path, rec.Code, rec.Body.String())
	}
	var out map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("POST %s: decoding response: %v", path, err)
	}
	return out
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
}

func TestGetItemsConditional(t *testing.T) {
	h := newTestHandler(t)
	postOK(t, h, "/api/create-item", `{"name": "Milk"}`)

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag header")
	}
	var snap shopping.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.DataVersion != 1 || len(snap.Items) != 1 || snap.Items[0].Name != "Milk" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// Same version: no body is transferred.
	req = httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("got %d, want 304", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("304 response carried a body: %q", rec.Body.String())
	}

	// Stale version: the full snapshot comes back.
	postOK(t, h, "/api/create-item", `{"name": "Eggs"}`)
	req = httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
}

func TestMutationResponsesCarryVersion(t *testing.T) {
	h := newTestHandler(t)

	item := postOK(t, h, "/api/create-item", `{"name": "Milk", "on_list": true}`)
	if item["data_version"] != 1 {
		t.Fatalf("create-item version = %d, want 1", item["data_version"])
	}
	store := postOK(t, h, "/api/create-store", `{"name": "Corner Shop"}`)
	if store["data_version"] != 2 {
		t.Fatalf("create-store version = %d, want 2", store["data_version"])
	}
	section := postOK(t, h, "/api/create-section", fmt.Sprintf(`{"store": %d, "name": "Dairy"}`, store["id"]))
	if section["data_version"] != 3 || section["position"] != 0 {
		t.Fatalf("create-section response = %v", section)
	}
	link := postOK(t, h, "/api/item-in-store", fmt.Sprintf(
		`{"item": %d, "store": %d, "section": %d}`, item["id"], store["id"], section["id"]))
	if link["data_version"] != 4 {
		t.Fatalf("item-in-store version = %d, want 4", link["data_version"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var snap shopping.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if len(snap.ItemStores) != 1 {
		t.Fatalf("got %d item_stores, want 1", len(snap.ItemStores))
	}
	is := snap.ItemStores[0]
	if is.Item != item["id"] || is.Store != store["id"] || is.Section == nil || *is.Section != section["id"] {
		t.Fatalf("unexpected association: %+v", is)
	}
}

func TestConflictResponsesAreEmpty(t *testing.T) {
	h := newTestHandler(t)
	postOK(t, h, "/api/create-item", `{"name": "Milk"}`)

	rec := doPost(t, h, "/api/create-item", `{"name": "Milk"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("got %d, want 409", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "" {
		t.Fatalf("409 response carried a body: %q", rec.Body.String())
	}

	rec = doPost(t, h, "/api/delete-item", `{"id": 99}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("delete of missing item: got %d, want 409", rec.Code)
	}
}

func TestValidationRejectsMalformedBodies(t *testing.T) {
	h := newTestHandler(t)

	cases := []struct {
		name string
		path string
		body string
	}{
		{"not json", "/api/create-item", `{"name":`},
		{"missing name", "/api/create-item", `{"on_list": true}`},
		{"wrong type", "/api/create-item", `{"name": 7}`},
		{"empty name", "/api/create-item", `{"name": "   "}`},
		{"unknown field", "/api/item-on", `{"item": 1, "extra": true}`},
		{"missing id", "/api/rename-item", `{"name": "Milk"}`},
		{"sections not array", "/api/reorder-sections", `{"store": 1, "sections": 3}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doPost(t, h, tc.path, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400 (body %q)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestReorderSectionsEndpoint(t *testing.T) {
	h := newTestHandler(t)
	store := postOK(t, h, "/api/create-store", `{"name": "Market"}`)
	a := postOK(t, h, "/api/create-section", fmt.Sprintf(`{"store": %d, "name": "Produce"}`, store["id"]))
	b := postOK(t, h, "/api/create-section", fmt.Sprintf(`{"store": %d, "name": "Bakery"}`, store["id"]))

	out := postOK(t, h, "/api/reorder-sections", fmt.Sprintf(
		`{"store": %d, "sections": [%d, %d]}`, store["id"], b["id"], a["id"]))
	if out["data_version"] != 4 {
		t.Fatalf("reorder version = %d, want 4", out["data_version"])
	}

	// An id set that does not match the store's sections conflicts.
	rec := doPost(t, h, "/api/reorder-sections", fmt.Sprintf(
		`{"store": %d, "sections": [%d]}`, store["id"], a["id"]))
	if rec.Code != http.StatusConflict {
		t.Fatalf("got %d, want 409", rec.Code)
	}
}
