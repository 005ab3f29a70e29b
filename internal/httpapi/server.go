package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/smallcodebases/shopping/internal/shopping"
)

const maxBodyBytes = 1 << 20

// Server exposes the store over the fixed request/response contract: one
// conditional full-state read plus one endpoint per mutation, each
// returning the data version that resulted from it.
type Server struct {
	store   *shopping.SQLStore
	logger  *slog.Logger
	schemas *schemaSet
	watch   *watchHub
}

func NewServer(store *shopping.SQLStore, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, fmt.Errorf("compiling request schemas: %w", err)
	}
	return &Server{
		store:   store,
		logger:  logger,
		schemas: schemas,
		watch:   newWatchHub(),
	}, nil
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/items", s.handleGetItems).Methods(http.MethodGet)
	api.HandleFunc("/create-item", s.handleCreateItem).Methods(http.MethodPost)
	api.HandleFunc("/create-section", s.handleCreateSection).Methods(http.MethodPost)
	api.HandleFunc("/create-store", s.handleCreateStore).Methods(http.MethodPost)
	api.HandleFunc("/delete-item", s.handleDeleteItem).Methods(http.MethodPost)
	api.HandleFunc("/delete-section", s.handleDeleteSection).Methods(http.MethodPost)
	api.HandleFunc("/delete-store", s.handleDeleteStore).Methods(http.MethodPost)
	api.HandleFunc("/item-in-store", s.handleItemInStore).Methods(http.MethodPost)
	api.HandleFunc("/item-not-in-store", s.handleItemNotInStore).Methods(http.MethodPost)
	api.HandleFunc("/item-off", s.handleItemOff).Methods(http.MethodPost)
	api.HandleFunc("/item-on", s.handleItemOn).Methods(http.MethodPost)
	api.HandleFunc("/rename-item", s.handleRenameItem).Methods(http.MethodPost)
	api.HandleFunc("/rename-section", s.handleRenameSection).Methods(http.MethodPost)
	api.HandleFunc("/rename-store", s.handleRenameStore).Methods(http.MethodPost)
	api.HandleFunc("/reorder-sections", s.handleReorderSections).Methods(http.MethodPost)
	api.HandleFunc("/watch", s.handleWatch).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	return crashOnPanic(requestLogging(s.logger, r))
}

// GET /api/items
//
// The full-state read. The client's last known version arrives as an
// If-None-Match entity tag; when it matches the current version no body is
// transferred.
func (s *Server) handleGetItems(w http.ResponseWriter, r *http.Request) {
	ifVersion := int64(-1)
	if tag := r.Header.Get("If-None-Match"); tag != "" {
		if v, err := parseVersionTag(tag); err == nil {
			ifVersion = v
		}
	}

	snap, version, err := s.store.Snapshot(r.Context(), ifVersion)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if snap == nil {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", versionTag(version))
	writeJSON(w, http.StatusOK, snap)
}

// POST /api/create-item
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   string `json:"name"`
		OnList bool   `json:"on_list"`
		Store  *int64 `json:"store"`
	}
	if !s.decodeBody(w, r, "create-item", &body) {
		return
	}
	id, version, err := s.store.CreateItem(r.Context(), body.Name, body.OnList, body.Store)
	if err != nil {
		s.mutationError(w, err)
		return
	}
	s.watch.broadcast(version)
	writeJSON(w, http.StatusCreated, struct {
		DataVersion int64 `json:"data_version"`
		ID          int64 `json:"id"`
	}{version, id})
}

// POST /api/create-section
func (s *Server) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Store int64  `json:"store"`
		Name  string `json:"name"`
	}
	if !s.decodeBody(w, r, "create-section", &body) {
		return
	}
	id, position, version, err := s.store.CreateSection(r.Context(), body.Store, body.Name)
	if err != nil {
		s.mutationError(w, err)
		return
	}
	s.watch.broadcast(version)
	writeJSON(w, http.StatusCreated, struct {
		DataVersion int64 `json:"data_version"`
		ID          int64 `json:"id"`
		Position    int64 `json:"position"`
	}{version, id, position})
}

// POST /api/create-store
func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
		Item *int64 `json:"item"`
	}
	if !s.decodeBody(w, r, "create-store", &body) {
		return
	}
	id, version, err := s.store.CreateStore(r.Context(), body.Name, body.Item)
	if err != nil {
		s.mutationError(w, err)
		return
	}
	s.watch.broadcast(version)
	writeJSON(w, http.StatusCreated, struct {
		DataVersion int64 `json:"data_version"`
		ID          int64 `json:"id"`
	}{version, id})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, schema string, del func(int64) (int64, error)) {
	var body struct {
		ID int64 `json:"id"`
	}
	if !s.decodeBody(w, r, schema, &body) {
		return
	}
	version, err := del(body.ID)
	if err != nil {
		s.mutationError(w, err)
		return
	}
	s.watch.broadcast(version)
	writeVersion(w, version)
}

// POST /api/delete-item
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, "delete-item", func(id int64) (int64, error) {
		return s.store.DeleteItem(r.Context(), id)
	})
}

// POST /api/delete-section
func (s *Server) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, "delete-section", func(id int64) (int64, error) {
		return s.store.DeleteSection(r.Context(), id)
	})
}

// POST /api/delete-store
func (s *Server) handleDeleteStore(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, "delete-store", func(id int64) (int64, error) {
		return s.store.DeleteStore(r.Context(), id)
	})
}

// POST /api/item-in-store
func (s *Server) handleItemInStore(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Item    int64  `json:"item"`
		Store   int64  `json:"store"`
		Section *int64 `json:"section"`
	}
	if !s.decodeBody(w, r, "item-in-store", &body) {
		return
	}
	version, err := s.store.ItemInStore(r.Context(), body.Item, body.Store, body.Section)
	if err != nil {
		s.mutationError(w, err)
		return
	}
	s.watch.broadcast(version)
	writeVersion(w, version)
}

// POST /api/item-not-in-store
func (s *Server) handleItemNotInStore(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Item  int64 `json:"item"`
		Store int64 `json:"store"`
	}
	if !s.decodeBody(w, r, "item-not-in-store", &body) {
		return
	}
	version, err := s.store.ItemNotInStore(r.Context(), body.Item, body.Store)
	if err != nil {
		s.mutationError(w, err)
		return
	}
	s.watch.broadcast(version)
	writeVersion(w, version)
}

func (s *Server) handleOnOff(w http.ResponseWriter, r *http.Request, schema string, set func(int64) (int64, error)) {
	var body struct {
		Item int64 `json:"item"`
	}
	if !s.decodeBody(w, r, schema, &body) {
		return
	}
	version, err := set(body.Item)
	if err != nil {
		s.mutationError(w, err)
		return
	}
	s.watch.broadcast(version)
	writeVersion(w, version)
}

// POST /api/item-off
func (s *Server) handleItemOff(w http.ResponseWriter, r *http.Request) {
	s.handleOnOff(w, r, "item-off", func(id int64) (int64, error) {
		return s.store.ItemOffList(r.Context(), id)
	})
}

// POST /api/item-on
func (s *Server) handleItemOn(w http.ResponseWriter, r *http.Request) {
	s.handleOnOff(w, r, "item-on", func(id int64) (int64, error) {
		return s.store.ItemOnList(r.Context(), id)
	})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request, schema string, rename func(int64, string) (int64, error)) {
	var body struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if !s.decodeBody(w, r, schema, &body) {
		return
	}
	version, err := rename(body.ID, body.Name)
	if err != nil {
		s.mutationError(w, err)
		return
	}
	s.watch.broadcast(version)
	writeVersion(w, version)
}

// POST /api/rename-item
func (s *Server) handleRenameItem(w http.ResponseWriter, r *http.Request) {
	s.handleRename(w, r, "rename-item", func(id int64, name string) (int64, error) {
		return s.store.RenameItem(r.Context(), id, name)
	})
}

// POST /api/rename-section
func (s *Server) handleRenameSection(w http.ResponseWriter, r *http.Request) {
	s.handleRename(w, r, "rename-section", func(id int64, name string) (int64, error) {
		return s.store.RenameSection(r.Context(), id, name)
	})
}

// POST /api/rename-store
func (s *Server) handleRenameStore(w http.ResponseWriter, r *http.Request) {
	s.handleRename(w, r, "rename-store", func(id int64, name string) (int64, error) {
		return s.store.RenameStore(r.Context(), id, name)
	})
}

// POST /api/reorder-sections
func (s *Server) handleReorderSections(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Store    int64   `json:"store"`
		Sections []int64 `json:"sections"`
	}
	if !s.decodeBody(w, r, "reorder-sections", &body) {
		return
	}
	version, err := s.store.ReorderSections(r.Context(), body.Store, body.Sections)
	if err != nil {
		s.mutationError(w, err)
		return
	}
	s.watch.broadcast(version)
	writeVersion(w, version)
}

// decodeBody reads the request body, validates it against the endpoint's
// schema, then unmarshals it into dst. A false return means a response has
// already been written.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return false
	}
	if err := s.schemas.validate(schema, body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) mutationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shopping.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, shopping.ErrConflict):
		// Conflicts are expected under concurrent edits; the body stays empty.
		w.WriteHeader(http.StatusConflict)
	default:
		s.internalError(w, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("unexpected error", "error", err)
	w.WriteHeader(http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeVersion(w http.ResponseWriter, version int64) {
	writeJSON(w, http.StatusOK, struct {
		DataVersion int64 `json:"data_version"`
	}{version})
}

func versionTag(version int64) string {
	return fmt.Sprintf("%q", strconv.FormatInt(version, 10))
}

func parseVersionTag(tag string) (int64, error) {
	unquoted, err := strconv.Unquote(tag)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(unquoted, 10, 64)
}

// Middleware

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func requestLogging(logger *slog.Logger, inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		inner.ServeHTTP(recorder, r)
		logger.Info(
			"request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"duration", time.Since(start),
		)
	})
}

// crashOnPanic exits instead of letting net/http swallow the panic and keep
// serving. The supervisor restarts the process with a consistent store.
func crashOnPanic(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if value := recover(); value != nil {
				slog.Error("panic", "value", value)
				os.Exit(1)
			}
		}()
		inner.ServeHTTP(w, r)
	})
}
