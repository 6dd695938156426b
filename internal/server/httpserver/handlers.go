// Package httpserver exposes the document lifecycle and the taxonomies over
// HTTP: multipart create and update, JSON reads, guarded taxonomy deletes.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
	"github.com/dmitrijs2005/contentkeeper/internal/logging"
	"github.com/dmitrijs2005/contentkeeper/internal/server/kinds"
	"github.com/dmitrijs2005/contentkeeper/internal/server/lifecycle"
	"github.com/dmitrijs2005/contentkeeper/internal/server/models"
	"github.com/dmitrijs2005/contentkeeper/internal/server/taxonomy"
)

// DocumentService is the lifecycle of one document kind.
type DocumentService interface {
	Kind() kinds.Kind
	Create(ctx context.Context, sub lifecycle.Submission) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context) ([]*models.Document, error)
	Update(ctx context.Context, id string, sub lifecycle.Submission) (*lifecycle.UpdateResult, error)
	Delete(ctx context.Context, id string) error
}

// TaxonomyService manages categories and tags.
type TaxonomyService interface {
	Create(ctx context.Context, t taxonomy.Taxonomy, name string) (*models.Term, error)
	List(ctx context.Context, t taxonomy.Taxonomy) ([]models.Term, error)
	Delete(ctx context.Context, t taxonomy.Taxonomy, id string) error
}

// Pinger checks database connectivity.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// collectionAliases maps legacy collection names accepted by bulk reads.
var collectionAliases = map[string]string{"blogs": kinds.ArticlesName}

// Handler serves the HTTP API.
type Handler struct {
	docs          map[string]DocumentService
	taxonomy      TaxonomyService
	db            Pinger
	logger        logging.Logger
	maxUploadSize int64
}

// NewHandler builds a Handler serving every given document kind.
func NewHandler(logger logging.Logger, db Pinger, tax TaxonomyService, maxUploadSize int64, docs ...DocumentService) *Handler {
	h := &Handler{
		docs:          make(map[string]DocumentService, len(docs)),
		taxonomy:      tax,
		db:            db,
		logger:        logger.With("module", "http"),
		maxUploadSize: maxUploadSize,
	}
	for _, d := range docs {
		h.docs[d.Kind().Name] = d
	}
	return h
}

// Routes registers every endpoint on a new ServeMux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Read endpoints answer cross-origin requests and their preflights.
	read := func(pattern string, fn http.HandlerFunc) {
		mux.Handle("GET "+pattern, CORS(fn))
		mux.Handle("OPTIONS "+pattern, CORS(fn))
	}

	for name, svc := range h.docs {
		mux.HandleFunc("POST /"+name, h.createDocument(svc))
		read("/"+name, h.listDocuments(svc))
		read("/"+name+"/{id}", h.getDocument(svc))
		mux.HandleFunc("PUT /"+name, h.updateDocument(svc))
		mux.HandleFunc("PUT /"+name+"/{id}", h.updateDocument(svc))
		mux.HandleFunc("DELETE /"+name, h.deleteDocument(svc))
		mux.HandleFunc("DELETE /"+name+"/{id}", h.deleteDocument(svc))
	}

	for _, t := range []taxonomy.Taxonomy{taxonomy.Categories, taxonomy.Tags} {
		mux.HandleFunc("POST /"+t.Name, h.createTerm(t))
		read("/"+t.Name, h.listTerms(t))
		mux.HandleFunc("DELETE /"+t.Name, h.deleteTerm(t))
		mux.HandleFunc("DELETE /"+t.Name+"/{id}", h.deleteTerm(t))
	}

	read("/collections/{name}", h.collection)
	mux.HandleFunc("GET /healthz", h.health)

	return mux
}

// requestID reads the id from the path, falling back to ?id=.
func requestID(r *http.Request) string {
	if id := r.PathValue("id"); id != "" {
		return id
	}
	return r.URL.Query().Get("id")
}

func (h *Handler) createDocument(svc DocumentService) http.HandlerFunc {
	kind := svc.Kind()
	return func(w http.ResponseWriter, r *http.Request) {
		form, err := parseForm(w, r, h.maxUploadSize)
		if err != nil {
			h.respondError(w, r, err, "failed to add "+kind.Label, http.StatusConflict)
			return
		}
		defer form.Close()

		sub, err := form.submission(kind)
		if err != nil {
			h.respondError(w, r, err, "failed to add "+kind.Label, http.StatusConflict)
			return
		}

		doc, err := svc.Create(r.Context(), sub)
		if err != nil {
			h.respondError(w, r, err, "failed to add "+kind.Label, http.StatusConflict)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"message": kind.Label + " added successfully",
			"data":    doc,
		})
	}
}

func (h *Handler) getDocument(svc DocumentService) http.HandlerFunc {
	kind := svc.Kind()
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := svc.Get(r.Context(), requestID(r))
		if err != nil {
			h.respondError(w, r, err, "failed to fetch "+kind.Label, http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

func (h *Handler) listDocuments(svc DocumentService) http.HandlerFunc {
	kind := svc.Kind()
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := svc.List(r.Context())
		if err != nil {
			h.respondError(w, r, err, "failed to fetch "+kind.Name, http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": docs})
	}
}

func (h *Handler) updateDocument(svc DocumentService) http.HandlerFunc {
	kind := svc.Kind()
	return func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		form, err := parseForm(w, r, h.maxUploadSize)
		if err != nil {
			h.respondError(w, r, err, "failed to update "+kind.Label, http.StatusConflict)
			return
		}
		defer form.Close()

		if id == "" {
			id, _ = form.value("id")
		}

		sub, err := form.submission(kind)
		if err != nil {
			h.respondError(w, r, err, "failed to update "+kind.Label, http.StatusConflict)
			return
		}

		res, err := svc.Update(r.Context(), id, sub)
		if err != nil {
			h.respondError(w, r, err, "failed to update "+kind.Label, http.StatusConflict)
			return
		}

		msg := kind.Label + " updated successfully"
		if len(res.Changed) == 0 {
			msg = "no changes"
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": msg,
			"changed": res.Changed,
			"data":    res.Document,
		})
	}
}

func (h *Handler) deleteDocument(svc DocumentService) http.HandlerFunc {
	kind := svc.Kind()
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), requestID(r)); err != nil {
			h.respondError(w, r, err, "failed to delete "+kind.Label, http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": kind.Label + " deleted successfully"})
	}
}

// termName reads the name from a JSON body or a form, under "name" or the
// singular taxonomy key ("category", "tag").
func (h *Handler) termName(w http.ResponseWriter, r *http.Request, t taxonomy.Taxonomy) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body map[string]string
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", common.NewValidationError("body", "malformed JSON")
		}
		if v, ok := body["name"]; ok {
			return v, nil
		}
		return body[t.Singular], nil
	}

	form, err := parseForm(w, r, 1<<20)
	if err != nil {
		return "", err
	}
	defer form.Close()
	if v, ok := form.value("name"); ok {
		return v, nil
	}
	v, _ := form.value(t.Singular)
	return v, nil
}

func (h *Handler) createTerm(t taxonomy.Taxonomy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := h.termName(w, r, t)
		if err != nil {
			h.respondError(w, r, err, "failed to add "+t.Singular, http.StatusBadRequest)
			return
		}
		term, err := h.taxonomy.Create(r.Context(), t, name)
		if err != nil {
			h.respondError(w, r, err, "failed to add "+t.Singular, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": t.Singular + " added successfully",
			"data":    term,
		})
	}
}

func (h *Handler) listTerms(t taxonomy.Taxonomy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		terms, err := h.taxonomy.List(r.Context(), t)
		if err != nil {
			h.respondError(w, r, err, "failed to fetch "+t.Name, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": terms})
	}
}

func (h *Handler) deleteTerm(t taxonomy.Taxonomy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.taxonomy.Delete(r.Context(), t, requestID(r)); err != nil {
			h.respondError(w, r, err, "failed to delete "+t.Singular, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": t.Singular + " deleted successfully"})
	}
}

// collection serves bulk reads of an allow-listed collection.
func (h *Handler) collection(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(r.PathValue("name"))
	if alias, ok := collectionAliases[name]; ok {
		name = alias
	}

	var (
		data any
		err  error
	)
	switch {
	case h.docs[name] != nil:
		data, err = h.docs[name].List(r.Context())
	case name == taxonomy.Categories.Name:
		data, err = h.taxonomy.List(r.Context(), taxonomy.Categories)
	case name == taxonomy.Tags.Name:
		data, err = h.taxonomy.List(r.Context(), taxonomy.Tags)
	default:
		writeError(w, http.StatusBadRequest, "invalid collection requested", name)
		return
	}
	if err != nil {
		h.respondError(w, r, err, fmt.Sprintf("failed to fetch %s", name), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warn(ctx, "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
