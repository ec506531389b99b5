package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/blob"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/store"
)

const maxImageSize = 10 << 20

// Images stores item pictures.
type Images interface {
	Configured() bool
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	URL(ctx context.Context, key string) (string, error)
}

// ShoppingHandler serves the shopping routes that go beyond plain CRUD.
type ShoppingHandler struct {
	shopping *store.ShoppingStore
	images   Images
	notifier Notifier
	logger   *slog.Logger
}

func NewShoppingHandler(ss *store.ShoppingStore, images Images, notifier Notifier, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{shopping: ss, images: images, notifier: notifier, logger: logger}
}

func (h *ShoppingHandler) notify(r *http.Request, userID int64) {
	if h.notifier != nil {
		h.notifier.Notify(r.Context(), userID, model.CollectionShopping)
	}
}

// Purchase handles POST /api/shopping/{id}/purchase. It only marks the item
// purchased; the resulting snapshot moves it into the inventory.
func (h *ShoppingHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	purchased := true
	item, err := h.shopping.Update(userID, id, model.ShoppingPatch{Purchased: &purchased})
	if err != nil {
		h.logger.Error("mark purchased", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark purchased")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	h.notify(r, userID)

	if fresh, err := h.shopping.GetByID(userID, id); err == nil && fresh != nil {
		item = fresh
	}
	writeJSON(w, http.StatusOK, resolveImage(r.Context(), h.images, *item))
}

// UploadImage handles PUT /api/shopping/{id}/image with a multipart "image"
// file.
func (h *ShoppingHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil || !h.images.Configured() {
		writeError(w, http.StatusServiceUnavailable, blob.ErrNotConfigured.Error())
		return
	}

	userID := auth.UserID(r.Context())
	id := r.PathValue("id")

	existing, err := h.shopping.GetByID(userID, id)
	if err != nil {
		h.logger.Error("get item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "file must be an image")
		return
	}

	handle, err := h.images.Upload(r.Context(), blob.ImageKey(userID, id), file, header.Size, contentType)
	if err != nil {
		h.logger.Error("upload image", "item_id", id, "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, blob.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "failed to upload image")
		return
	}

	// The handle is stored, not the URL: presigned URLs expire.
	item, err := h.shopping.Update(userID, id, model.ShoppingPatch{Image: &handle})
	if err != nil {
		h.logger.Error("set image", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	h.notify(r, userID)
	writeJSON(w, http.StatusOK, resolveImage(r.Context(), h.images, *item))
}
