package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/dispatch"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/projection"
	"github.com/shopspring/decimal"
)

// Viewer computes the derived views of a collection.
type Viewer func(records []model.Record, set projection.Settings) any

// ViewOf builds a Viewer from a projection lens.
func ViewOf[T model.Record](lens projection.Lens[T]) Viewer {
	return func(records []model.Record, set projection.Settings) any {
		return projection.Compute(lens, snapshot[T](records), set)
	}
}

// PriceView adds the cheapest store per item to the price views.
func PriceView(records []model.Record, set projection.Settings) any {
	snap := snapshot[model.PriceEntry](records)
	return struct {
		projection.Views[model.PriceEntry]
		Cheapest []model.PriceEntry `json:"cheapest"`
	}{
		Views:    projection.Compute(projection.Prices(), snap, set),
		Cheapest: projection.Cheapest(projection.Flatten(snap)),
	}
}

func snapshot[T model.Record](records []model.Record) projection.Snapshot[T] {
	snap := make(projection.Snapshot[T], len(records))
	for _, r := range records {
		if v, ok := r.(T); ok {
			snap[v.RecordID()] = v
		}
	}
	return snap
}

// CollectionHandler serves CRUD and views for one collection.
type CollectionHandler struct {
	collection model.Collection
	schema     dispatch.Schema
	repo       Repo
	view       Viewer
	notifier   Notifier
	defaults   projection.Settings
	now        func() time.Time
	logger     *slog.Logger
}

func NewCollectionHandler(c model.Collection, repo Repo, view Viewer, notifier Notifier, defaults projection.Settings, logger *slog.Logger) (*CollectionHandler, error) {
	schema, ok := dispatch.SchemaFor(c)
	if !ok {
		return nil, fmt.Errorf("no schema for collection %q", c)
	}
	return &CollectionHandler{
		collection: c,
		schema:     schema,
		repo:       repo,
		view:       view,
		notifier:   notifier,
		defaults:   defaults,
		now:        time.Now,
		logger:     logger,
	}, nil
}

func (h *CollectionHandler) Collection() model.Collection {
	return h.collection
}

func (h *CollectionHandler) notify(r *http.Request, userID int64) {
	if h.notifier != nil {
		h.notifier.Notify(r.Context(), userID, h.collection)
	}
}

// List handles GET /api/{collection}
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.List(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list records", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if records == nil {
		records = []model.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Get handles GET /api/{collection}/{id}
func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.repo.Get(auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.logger.Error("get record", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get record")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Create handles POST /api/{collection}
func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	fields, ok := h.parse(w, r, false)
	if !ok {
		return
	}

	rec, err := h.repo.Create(userID, fields)
	if err != nil {
		h.logger.Error("create record", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create record")
		return
	}
	h.notify(r, userID)
	writeJSON(w, http.StatusCreated, rec)
}

// Update handles PATCH /api/{collection}/{id}. Only the fields in the body
// are written.
func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	fields, ok := h.parse(w, r, true)
	if !ok {
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, dispatch.ErrEmptyUpdate.Error())
		return
	}

	rec, err := h.repo.Update(userID, r.PathValue("id"), fields)
	if err != nil {
		h.logger.Error("update record", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update record")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	h.notify(r, userID)
	writeJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/{collection}/{id}
func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	deleted, err := h.repo.Delete(userID, r.PathValue("id"))
	if err != nil {
		h.logger.Error("delete record", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete record")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	h.notify(r, userID)
	w.WriteHeader(http.StatusNoContent)
}

// View handles GET /api/{collection}/view?filter=&sort=&threshold=&days=
func (h *CollectionHandler) View(w http.ResponseWriter, r *http.Request) {
	set, err := h.settings(r)
	if err != nil {
		writeValidation(w, err, "invalid view settings")
		return
	}

	records, err := h.repo.List(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list records for view", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load records")
		return
	}
	writeJSON(w, http.StatusOK, h.view(records, set))
}

func (h *CollectionHandler) settings(r *http.Request) (projection.Settings, error) {
	q := r.URL.Query()
	set := h.defaults
	set.Today = h.now()
	set.Filter = q.Get("filter")
	set.SortKey = q.Get("sort")

	if v := strings.TrimSpace(q.Get("threshold")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return set, &dispatch.ValidationError{Field: "threshold", Message: "must be a number"}
		}
		set.LowStockThreshold = d
	}
	if v := strings.TrimSpace(q.Get("days")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return set, &dispatch.ValidationError{Field: "days", Message: "must be a non-negative integer"}
		}
		set.ExpiringDays = n
	}
	return set, nil
}

// parse decodes and validates the body, answering the request itself when it
// fails.
func (h *CollectionHandler) parse(w http.ResponseWriter, r *http.Request, partial bool) (map[string]any, bool) {
	form, err := decodeForm(w, r)
	if err != nil {
		var ve *dispatch.ValidationError
		if errors.As(err, &ve) {
			writeValidation(w, err, "")
		} else {
			writeError(w, http.StatusBadRequest, "invalid JSON")
		}
		return nil, false
	}

	fields, err := h.schema.Parse(form, partial)
	if err != nil {
		writeValidation(w, err, "invalid request")
		return nil, false
	}
	return fields, true
}
